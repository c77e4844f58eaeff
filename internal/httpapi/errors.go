package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"assistd/internal/completion"
	"assistd/internal/provider"
	"assistd/pkg/types"
)

// statusForError maps the completion-layer error taxonomy onto HTTP codes.
func statusForError(err error) int {
	switch {
	case completion.IsNoOfflineFallback(err):
		return http.StatusServiceUnavailable
	case completion.IsRetriesExhausted(err):
		return http.StatusBadGateway
	case completion.IsStreamInterrupted(err):
		return http.StatusBadGateway
	case provider.IsRateLimited(err):
		return http.StatusTooManyRequests
	case provider.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isEOF(err error) bool { return err == io.EOF }

// ignoreEOF keeps clean stream terminations out of error logs.
func ignoreEOF(err error) error {
	if isEOF(err) {
		return nil
	}
	return err
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
