package situations

import (
	"strconv"
	"time"

	"github.com/epnlabs/sitrep/pkg/models"
)

// Lifecycle helpers shared by every store backend. Each helper mutates a
// situation the backend has already fetched; the backend is responsible for
// making the surrounding read-modify-write atomic per id.

// PrepareForStore promotes internal-prefixed situation properties to their
// public suffix name, keeping the internal copy as a record of the value at
// creation time, and defaults the resolution state. Runs exactly once, when
// the situation is first persisted.
func PrepareForStore(situation *models.Situation) {
	if situation.SituationProperties == nil {
		situation.SituationProperties = map[string]string{}
	}

	if situation.Properties == nil {
		situation.Properties = map[string]string{}
	}

	for key, value := range situation.SituationProperties {
		if publicName, ok := models.InternalPropertyName(key); ok && publicName != "" {
			situation.SituationProperties[publicName] = value
		}
	}

	if _, ok := situation.Properties[models.ResolutionStateProperty]; !ok {
		situation.Properties[models.ResolutionStateProperty] = string(models.ResolutionUnresolved)
	}
}

// Assign sets the assignment owner.
func Assign(situation *models.Situation, userName string) {
	situation.Properties[models.AssignedToProperty] = userName
}

// Unassign clears the assignment owner. It also clears the resolution state
// unless it is already resolved: a prior in-progress determination is stale
// once nobody owns the situation, but a resolution stands on its own.
func Unassign(situation *models.Situation) {
	delete(situation.Properties, models.AssignedToProperty)

	if state, ok := situation.Properties[models.ResolutionStateProperty]; ok {
		if models.ResolutionState(state) != models.ResolutionResolved {
			delete(situation.Properties, models.ResolutionStateProperty)
		}
	}
}

// SetResolutionState records the given state, with no state-machine legality
// checks beyond the enum domain.
func SetResolutionState(situation *models.Situation, state models.ResolutionState) {
	situation.Properties[models.ResolutionStateProperty] = string(state)
}

// MarkResubmitSuccess records a successful operator resubmission, clearing
// any error message from an earlier failed attempt.
func MarkResubmitSuccess(situation *models.Situation, userName string) {
	stampResubmit(situation, userName)
	situation.Properties[models.ResubmitResultProperty] = models.ResubmitResultSuccess
	delete(situation.Properties, models.ResubmitErrorMessageProperty)
}

// MarkResubmitFailure records a failed operator resubmission with its error
// message.
func MarkResubmitFailure(situation *models.Situation, errorMessage, userName string) {
	stampResubmit(situation, userName)
	situation.Properties[models.ResubmitResultProperty] = models.ResubmitResultError
	situation.Properties[models.ResubmitErrorMessageProperty] = errorMessage
}

func stampResubmit(situation *models.Situation, userName string) {
	situation.Properties[models.ResubmitByProperty] = userName
	situation.Properties[models.ResubmitAtProperty] = strconv.FormatInt(time.Now().UnixMilli(), 10)
}
