// Package memory provides an in-memory situation store, used by tests and
// single-process deployments without a database.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations"
)

// Store implements situations.Store with a mutex-guarded map. The mutex
// makes every lifecycle mutation an atomic read-modify-write per id.
type Store struct {
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]*models.Situation
}

// NewStore creates an empty in-memory situation store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:  logger,
		records: make(map[string]*models.Situation),
	}
}

func (s *Store) Store(_ context.Context, situation *models.Situation) error {
	if situation == nil || situation.ID == "" {
		return situations.NewSituationError("Store", "", situations.ErrInvalidSituation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[situation.ID]; exists {
		return situations.NewSituationError("Store", situation.ID, situations.ErrDuplicateSituation)
	}

	record := situation.Clone()
	situations.PrepareForStore(record)

	s.records[situation.ID] = record

	s.logger.Debug("Stored situation", "situationId", situation.ID, "type", situation.Type)

	return nil
}

func (s *Store) GetSituation(_ context.Context, id string) (*models.Situation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, situations.NewSituationError("GetSituation", id, situations.ErrSituationNotFound)
	}

	return record.Clone(), nil
}

func (s *Store) GetSituations(_ context.Context, query *situations.Query) ([]*models.Situation, error) {
	err := query.Validate()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.matching(query)
	s.mu.RUnlock()

	offset := 0
	if query != nil {
		offset = query.Offset
	}

	if offset >= len(matched) {
		return []*models.Situation{}, nil
	}

	matched = matched[offset:]
	if limit := query.Limit(); len(matched) > limit {
		matched = matched[:limit]
	}

	page := make([]*models.Situation, len(matched))
	for i, record := range matched {
		page[i] = record.Clone()
	}

	return page, nil
}

// matching returns matching records newest first. Caller holds the lock.
func (s *Store) matching(query *situations.Query) []*models.Situation {
	var matched []*models.Situation

	for _, record := range s.records {
		if query.Matches(record) {
			matched = append(matched, record)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return matched
}

func (s *Store) AssignSituation(_ context.Context, id, userName string) error {
	return s.mutate("Assign", id, func(record *models.Situation) {
		situations.Assign(record, userName)
	})
}

func (s *Store) UnassignSituation(_ context.Context, id string) error {
	return s.mutate("Unassign", id, situations.Unassign)
}

func (s *Store) UpdateResolutionState(_ context.Context, id string, state models.ResolutionState) error {
	if !state.Valid() {
		return &situations.QueryError{Field: "resolution_state", Message: "unknown state " + string(state)}
	}

	return s.mutate("UpdateResolutionState", id, func(record *models.Situation) {
		situations.SetResolutionState(record, state)
	})
}

func (s *Store) RecordSuccessfulResubmit(_ context.Context, id, userName string) error {
	return s.mutate("RecordSuccessfulResubmit", id, func(record *models.Situation) {
		situations.MarkResubmitSuccess(record, userName)
	})
}

func (s *Store) RecordResubmitFailure(_ context.Context, id, errorMessage, userName string) error {
	return s.mutate("RecordResubmitFailure", id, func(record *models.Situation) {
		situations.MarkResubmitFailure(record, errorMessage, userName)
	})
}

func (s *Store) Delete(_ context.Context, situation *models.Situation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[situation.ID]; !ok {
		return situations.NewSituationError("Delete", situation.ID, situations.ErrSituationNotFound)
	}

	delete(s.records, situation.ID)

	return nil
}

func (s *Store) DeleteMatching(_ context.Context, query *situations.Query) (int, error) {
	err := query.Validate()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0

	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)

			deleted++
		}
	}

	return deleted, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

// mutate applies fn to the record under the store lock, making the
// read-modify-write atomic.
func (s *Store) mutate(op, id string, fn func(*models.Situation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return situations.NewSituationError(op, id, situations.ErrSituationNotFound)
	}

	fn(record)

	return nil
}
