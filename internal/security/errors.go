package security

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the envelope every failed request is reported in.
type ErrorResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WriteJSONError writes a failure envelope with the given status and
// human-readable message.
func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	cid := CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success:       false,
		Message:       message,
		CorrelationID: cid,
	})
}
