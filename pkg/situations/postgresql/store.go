// Package postgresql provides the PostgreSQL situation store backend.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations"
	"github.com/epnlabs/sitrep/pkg/situations/sqlbase"
)

const uniqueViolationCode = "23505"

// Store implements situations.Store on PostgreSQL. Lifecycle mutations run
// inside a transaction with a row lock, which makes each read-modify-write
// atomic per situation id.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to PostgreSQL and runs schema migrations.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database, logger: logger}, nil
}

func (s *Store) Store(ctx context.Context, situation *models.Situation) error {
	if situation == nil || situation.ID == "" {
		return situations.NewSituationError("Store", "", situations.ErrInvalidSituation)
	}

	record := situation.Clone()
	situations.PrepareForStore(record)

	situationProps, err := json.Marshal(record.SituationProperties)
	if err != nil {
		return fmt.Errorf("failed to marshal situation properties: %w", err)
	}

	bookkeeping, err := json.Marshal(record.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal bookkeeping properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO situations (id, type, severity, subject, description, timestamp, situation_properties, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.Type, record.Severity, record.Subject,
		record.Description, record.Timestamp, situationProps, bookkeeping,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return situations.NewSituationError("Store", record.ID, situations.ErrDuplicateSituation)
		}

		return fmt.Errorf("failed to insert situation %s: %w", record.ID, err)
	}

	return nil
}

func (s *Store) GetSituation(ctx context.Context, id string) (*models.Situation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, severity, subject, description, timestamp, situation_properties, properties
		FROM situations WHERE id = $1`, id)

	situation, err := scanSituation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, situations.NewSituationError("GetSituation", id, situations.ErrSituationNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query situation %s: %w", id, err)
	}

	return situation, nil
}

func (s *Store) GetSituations(ctx context.Context, query *situations.Query) ([]*models.Situation, error) {
	err := query.Validate()
	if err != nil {
		return nil, err
	}

	where, args := buildPredicates(query)

	offset := 0
	if query != nil {
		offset = query.Offset
	}

	statement := fmt.Sprintf(`
		SELECT id, type, severity, subject, description, timestamp, situation_properties, properties
		FROM situations%s
		ORDER BY timestamp DESC
		OFFSET $%d LIMIT $%d`,
		where, len(args)+1, len(args)+2)

	args = append(args, offset, query.Limit())

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query situations: %w", err)
	}
	defer rows.Close()

	matched := []*models.Situation{}

	for rows.Next() {
		situation, scanErr := scanSituation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan situation: %w", scanErr)
		}

		matched = append(matched, situation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate situations: %w", err)
	}

	return matched, nil
}

func (s *Store) AssignSituation(ctx context.Context, id, userName string) error {
	return s.mutate(ctx, "Assign", id, func(record *models.Situation) {
		situations.Assign(record, userName)
	})
}

func (s *Store) UnassignSituation(ctx context.Context, id string) error {
	return s.mutate(ctx, "Unassign", id, situations.Unassign)
}

func (s *Store) UpdateResolutionState(ctx context.Context, id string, state models.ResolutionState) error {
	if !state.Valid() {
		return &situations.QueryError{Field: "resolution_state", Message: "unknown state " + string(state)}
	}

	return s.mutate(ctx, "UpdateResolutionState", id, func(record *models.Situation) {
		situations.SetResolutionState(record, state)
	})
}

func (s *Store) RecordSuccessfulResubmit(ctx context.Context, id, userName string) error {
	return s.mutate(ctx, "RecordSuccessfulResubmit", id, func(record *models.Situation) {
		situations.MarkResubmitSuccess(record, userName)
	})
}

func (s *Store) RecordResubmitFailure(ctx context.Context, id, errorMessage, userName string) error {
	return s.mutate(ctx, "RecordResubmitFailure", id, func(record *models.Situation) {
		situations.MarkResubmitFailure(record, errorMessage, userName)
	})
}

func (s *Store) Delete(ctx context.Context, situation *models.Situation) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM situations WHERE id = $1", situation.ID)
	if err != nil {
		return fmt.Errorf("failed to delete situation %s: %w", situation.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deleted row count: %w", err)
	}

	if affected == 0 {
		return situations.NewSituationError("Delete", situation.ID, situations.ErrSituationNotFound)
	}

	return nil
}

func (s *Store) DeleteMatching(ctx context.Context, query *situations.Query) (int, error) {
	err := query.Validate()
	if err != nil {
		return 0, err
	}

	where, args := buildPredicates(query)

	result, err := s.db.ExecContext(ctx, "DELETE FROM situations"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete situations: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}

	return int(affected), nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// mutate locks the situation row, applies the lifecycle mutation, and writes
// the bookkeeping properties back in one transaction.
func (s *Store) mutate(ctx context.Context, op, id string, fn func(*models.Situation)) error {
	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = transaction.Rollback() }()

	row := transaction.QueryRowContext(ctx, `
		SELECT id, type, severity, subject, description, timestamp, situation_properties, properties
		FROM situations WHERE id = $1 FOR UPDATE`, id)

	record, err := scanSituation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return situations.NewSituationError(op, id, situations.ErrSituationNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to lock situation %s: %w", id, err)
	}

	fn(record)

	bookkeeping, err := json.Marshal(record.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal bookkeeping properties: %w", err)
	}

	_, err = transaction.ExecContext(ctx,
		"UPDATE situations SET properties = $1 WHERE id = $2", bookkeeping, id)
	if err != nil {
		return fmt.Errorf("failed to update situation %s: %w", id, err)
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit situation mutation: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSituation(row rowScanner) (*models.Situation, error) {
	var (
		situation      models.Situation
		situationProps []byte
		bookkeeping    []byte
	)

	err := row.Scan(
		&situation.ID, &situation.Type, &situation.Severity, &situation.Subject,
		&situation.Description, &situation.Timestamp, &situationProps, &bookkeeping,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(situationProps, &situation.SituationProperties)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal situation properties: %w", err)
	}

	err = json.Unmarshal(bookkeeping, &situation.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookkeeping properties: %w", err)
	}

	return &situation, nil
}

// buildPredicates translates the structured query into a WHERE clause. The
// semantics mirror Query.Matches; resolution state treats a missing property
// as unresolved.
func buildPredicates(query *situations.Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var (
		predicates []string
		args       []any
	)

	add := func(clause string, value any) {
		args = append(args, value)
		predicates = append(predicates, fmt.Sprintf(clause, len(args)))
	}

	if query.ID != "" {
		add("id = $%d", query.ID)
	}

	if query.Type != "" {
		add("type = $%d", query.Type)
	}

	if query.Severity != "" {
		add("severity = $%d", string(query.Severity))
	}

	if query.ResolutionState != "" {
		add("COALESCE(properties ->> 'resolutionState', 'unresolved') = $%d", string(query.ResolutionState))
	}

	if query.AssignedTo != "" {
		add("properties ->> 'assignedTo' = $%d", query.AssignedTo)
	}

	for key, value := range query.Properties {
		args = append(args, key, value)
		predicates = append(predicates, fmt.Sprintf("situation_properties ->> $%d = $%d", len(args)-1, len(args)))
	}

	if !query.From.IsZero() {
		add("timestamp >= $%d", query.From)
	}

	if !query.To.IsZero() {
		add("timestamp < $%d", query.To)
	}

	if len(predicates) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(predicates, " AND "), args
}
