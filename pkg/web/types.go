package web

// AssignRequest assigns a situation to a user.
type AssignRequest struct {
	UserName string `json:"user_name" validate:"required"`
}

// ResolutionRequest updates a situation's resolution state.
type ResolutionRequest struct {
	State string `json:"state" validate:"required,oneof=unresolved in_progress resolved"`
}

// ResubmitRequest records the outcome of an operator resubmission.
type ResubmitRequest struct {
	UserName     string `json:"user_name"               validate:"required"`
	Result       string `json:"result"                  validate:"required,oneof=success failure"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DeleteResponse reports how many situations a bulk delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}
