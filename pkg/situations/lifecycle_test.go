package situations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations"
)

func TestPrepareForStore_PromotesInternalProperties(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situation.SituationProperties[models.InternalPropertyPrefix+"duration"] = "500"
	situation.SituationProperties["service"] = "orders"

	situations.PrepareForStore(situation)

	// Promoted under the suffix, internal copy retained.
	assert.Equal(t, "500", situation.SituationProperties["duration"])
	assert.Equal(t, "500", situation.SituationProperties[models.InternalPropertyPrefix+"duration"])
	assert.Equal(t, "orders", situation.SituationProperties["service"])
}

func TestPrepareForStore_DefaultsResolutionState(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situations.PrepareForStore(situation)

	assert.Equal(t, string(models.ResolutionUnresolved),
		situation.Properties[models.ResolutionStateProperty])

	// An explicit state is untouched.
	resolved := models.NewSituation("ResponseTime", models.SeverityHigh)
	resolved.Properties[models.ResolutionStateProperty] = string(models.ResolutionResolved)
	situations.PrepareForStore(resolved)

	assert.Equal(t, string(models.ResolutionResolved),
		resolved.Properties[models.ResolutionStateProperty])
}

func TestPrepareForStore_NilMaps(t *testing.T) {
	t.Parallel()

	situation := &models.Situation{ID: "s-1", Type: "ResponseTime", Severity: models.SeverityLow}
	situations.PrepareForStore(situation)

	assert.NotNil(t, situation.SituationProperties)
	assert.Equal(t, models.ResolutionUnresolved, situation.ResolutionState())
}

func TestUnassign_ClearsNonResolvedState(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situations.Assign(situation, "alice")
	situations.SetResolutionState(situation, models.ResolutionInProgress)

	situations.Unassign(situation)

	assert.Empty(t, situation.AssignedTo())

	// The in-progress determination is stale once unassigned.
	_, present := situation.Properties[models.ResolutionStateProperty]
	assert.False(t, present)
}

func TestUnassign_ResolvedIsSticky(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)
	situations.Assign(situation, "alice")
	situations.SetResolutionState(situation, models.ResolutionResolved)

	situations.Unassign(situation)

	assert.Empty(t, situation.AssignedTo())
	assert.Equal(t, models.ResolutionResolved, situation.ResolutionState())
}

func TestMarkResubmit_SuccessClearsErrorMessage(t *testing.T) {
	t.Parallel()

	situation := models.NewSituation("ResponseTime", models.SeverityHigh)

	situations.MarkResubmitFailure(situation, "timeout", "bob")

	assert.Equal(t, models.ResubmitResultError, situation.Properties[models.ResubmitResultProperty])
	assert.Equal(t, "timeout", situation.Properties[models.ResubmitErrorMessageProperty])
	assert.Equal(t, "bob", situation.Properties[models.ResubmitByProperty])
	assert.NotEmpty(t, situation.Properties[models.ResubmitAtProperty])

	situations.MarkResubmitSuccess(situation, "bob")

	assert.Equal(t, models.ResubmitResultSuccess, situation.Properties[models.ResubmitResultProperty])

	// Error message is per-outcome, not cumulative.
	_, present := situation.Properties[models.ResubmitErrorMessageProperty]
	assert.False(t, present)
}
