package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	// Success is false on every error; trade endpoints use it to separate
	// rejected orders from executed ones.
	Success bool               `json:"success"`
	Error   types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondServiceError maps a service error onto the wire. Business rule
// rejections (insufficient funds, overselling) come back as 422 with the
// structured code; faults keep their categorized status.
func respondServiceError(w http.ResponseWriter, err error) {
	catErr := apperrors.Categorize(err)

	status := catErr.StatusCode
	if apperrors.IsBusinessRule(err) {
		status = http.StatusUnprocessableEntity
	}

	message := catErr.Message
	if apperrors.IsSystemError(err) {
		// Internal details stay in the logs.
		message = "An internal error occurred"
	}

	respondError(w, status, catErr.Code, message, catErr.Details)
}
