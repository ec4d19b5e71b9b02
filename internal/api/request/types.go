package request

// PushRequest is the request body for POST /api/push
type PushRequest struct {
	LocalDate string `json:"localDate"`
}

// AcknowledgeRollbackRequest is the optional request body for
// POST /api/push/acknowledge-rollback
type AcknowledgeRollbackRequest struct {
	LocalDate string `json:"localDate,omitempty"`
}
