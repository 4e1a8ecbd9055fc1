package situations_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations"
)

func TestQuery_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   *situations.Query
		wantErr bool
	}{
		{name: "nil query", query: nil},
		{name: "zero query matches all", query: &situations.Query{}},
		{name: "valid severity", query: &situations.Query{Severity: models.SeverityHigh}},
		{name: "unknown severity", query: &situations.Query{Severity: "urgent"}, wantErr: true},
		{name: "unknown state", query: &situations.Query{ResolutionState: "fixed"}, wantErr: true},
		{name: "negative offset", query: &situations.Query{Offset: -1}, wantErr: true},
		{name: "negative max count", query: &situations.Query{MaxCount: -5}, wantErr: true},
		{
			name: "inverted time range",
			query: &situations.Query{
				From: time.Now(),
				To:   time.Now().Add(-time.Hour),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.query.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, situations.IsQueryError(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situation.SituationProperties["service"] = "orders"
	situation.Properties[models.AssignedToProperty] = "alice"

	assert.True(t, (*situations.Query)(nil).Matches(situation))
	assert.True(t, (&situations.Query{Type: "ResponseTime"}).Matches(situation))
	assert.False(t, (&situations.Query{Type: "SLAViolation"}).Matches(situation))
	assert.True(t, (&situations.Query{Severity: models.SeverityHigh}).Matches(situation))
	assert.True(t, (&situations.Query{AssignedTo: "alice"}).Matches(situation))
	assert.False(t, (&situations.Query{AssignedTo: "bob"}).Matches(situation))
	assert.True(t, (&situations.Query{Properties: map[string]string{"service": "orders"}}).Matches(situation))
	assert.False(t, (&situations.Query{Properties: map[string]string{"service": "billing"}}).Matches(situation))

	// Unset resolution state matches unresolved.
	assert.True(t, (&situations.Query{ResolutionState: models.ResolutionUnresolved}).Matches(situation))
	assert.False(t, (&situations.Query{ResolutionState: models.ResolutionResolved}).Matches(situation))
}

func TestQuery_MatchesTimeRange(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situation.Timestamp = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	inRange := &situations.Query{
		From: situation.Timestamp.Add(-time.Minute),
		To:   situation.Timestamp.Add(time.Minute),
	}
	assert.True(t, inRange.Matches(situation))

	// From is inclusive, To is exclusive.
	assert.True(t, (&situations.Query{From: situation.Timestamp}).Matches(situation))
	assert.False(t, (&situations.Query{To: situation.Timestamp}).Matches(situation))
}

func TestQuery_Limit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, situations.DefaultMaxCount, (*situations.Query)(nil).Limit())
	assert.Equal(t, situations.DefaultMaxCount, (&situations.Query{}).Limit())
	assert.Equal(t, 10, (&situations.Query{MaxCount: 10}).Limit())
}

func TestSituationError_Is(t *testing.T) {
	t.Parallel()

	err := situations.NewSituationError("Assign", "s-1", situations.ErrSituationNotFound)

	assert.True(t, situations.IsSituationNotFound(err))
	assert.False(t, situations.IsDuplicateSituation(err))
	assert.Contains(t, err.Error(), "Assign")
	assert.Contains(t, err.Error(), "s-1")
}
