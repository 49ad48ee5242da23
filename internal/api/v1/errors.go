package v1

// ErrorResponse mirrors the body the error-rendering middleware writes
// for failed requests.
type ErrorResponse struct {
	Success bool        `json:"success" example:"false"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the caller-safe message and structured fields.
type ErrorDetail struct {
	Message string         `json:"message" example:"Page count must be a positive integer"`
	Details map[string]any `json:"details,omitempty"`
}
