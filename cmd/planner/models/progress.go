package models

// StartCardRequest assigns a READY card to a machine and operator
type StartCardRequest struct {
	MachineID  *string `json:"machine_id,omitempty"`
	OperatorID *string `json:"operator_id,omitempty"`
	Actor      string  `json:"actor"`
}

// ProgressRequest is one production-floor progress report
type ProgressRequest struct {
	CompletedDelta int64 `json:"completed_delta"`
	RejectedDelta  int64 `json:"rejected_delta"`

	// AcceptScrap writes the rejected pieces off instead of spawning rework
	AcceptScrap bool `json:"accept_scrap,omitempty"`

	// RestartFromStep positions the rework card; defaults to the rejected step
	RestartFromStep *int `json:"restart_from_step,omitempty"`

	Actor string `json:"actor"`
}

// ReworkRequest spawns a rework card for an already rejected card
type ReworkRequest struct {
	Quantity        int64  `json:"quantity"`
	RestartFromStep *int   `json:"restart_from_step,omitempty"`
	Actor           string `json:"actor"`
}

// ActorRequest carries only the acting identity
type ActorRequest struct {
	Actor string `json:"actor"`
}

// StatusResponse reports a card's status after an operation
type StatusResponse struct {
	CardID string `json:"card_id"`
	Status string `json:"status"`
}
