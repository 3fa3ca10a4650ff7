package api

import (
	"encoding/json"
	"net/http"

	domerrors "github.com/ewallet-backend/internal/errors"
)

// APIError is the error payload returned to clients.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data) // nolint:errcheck // headers already sent
	}
}

// respondError sends an explicit error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: APIError{Code: code, Message: message, Details: details},
	})
}

// respondServiceError maps a service-layer error onto an HTTP response.
// Categorized errors carry their own status and code; anything else is a
// masked 500.
func respondServiceError(w http.ResponseWriter, err error) {
	categorized := domerrors.Categorize(err)
	message := categorized.Message
	if !domerrors.IsUserError(categorized) {
		// Never leak internals to clients.
		message = "an internal error occurred"
	}
	respondError(w, categorized.StatusCode, categorized.Code, message, categorized.Details)
}

// parseJSONBody parses a JSON request body, rejecting unknown fields.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
