package utils

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	OK      bool       `json:"ok"`
	Error   string     `json:"error"`
	Message string     `json:"message,omitempty"`
	Fields  url.Values `json:"fields,omitempty"`
}

// RespondJSON writes data as JSON with the given status
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

// RespondError writes {ok:false, error:code}
func RespondError(w http.ResponseWriter, status int, code string) {
	RespondJSON(w, status, ErrorResponse{Error: code})
}

// RespondErrorMessage adds a human readable message to the error code
func RespondErrorMessage(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondValidationError writes per-field messages with status 400
func RespondValidationError(w http.ResponseWriter, fields url.Values) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_FAILED", Fields: fields})
}
