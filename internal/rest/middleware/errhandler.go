package middleware

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	ierr "github.com/forgia-ai/bank-convert-billing/internal/errors"
)

const safeDetailsPrefix = "__json__:"

// ErrorResponse is the body written for any request that attached an
// error to the gin context.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the caller-safe message and structured fields.
type ErrorDetail struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error a handler attached via c.Error
// into a JSON body with the status mapped from the error's sentinel.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		c.JSON(ierr.HTTPStatusFromErr(err), ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Message: displayMessage(err),
				Details: safeDetails(err),
			},
		})
	}
}

// displayMessage picks the innermost non-empty hint. The raw error text
// never reaches the caller.
func displayMessage(err error) string {
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

// safeDetails merges every reportable-details payload attached along
// the error chain.
func safeDetails(err error) map[string]any {
	details := make(map[string]any)
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if !strings.HasPrefix(payload, safeDetailsPrefix) {
				continue
			}
			var fields map[string]any
			if err := json.Unmarshal([]byte(payload[len(safeDetailsPrefix):]), &fields); err != nil {
				continue
			}
			for k, v := range fields {
				details[k] = v
			}
		}
	}
	return details
}
