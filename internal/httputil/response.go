// Package httputil provides the JSON response envelope shared by every HTTP
// handler. Failures always serialize as {"success":false,"message":...}.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the uniform failure envelope.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status. A nil v writes
// only the status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// Encoding failures at this point cannot be reported to the client; the
	// status line is already out.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes the uniform failure envelope.
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Success: false, Message: message})
}
