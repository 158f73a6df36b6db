package main

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fabworks/printquote/internal/quote"
)

type errorBody struct {
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	Retryable bool     `json:"retryable"`
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

// writeError maps lifecycle errors to HTTP statuses. Raw internal errors are
// never rendered to the client.
func (s *server) writeError(w http.ResponseWriter, err error) {
	lifecycleErr, ok := quote.AsError(err)
	if !ok {
		s.log.Error("unhandled internal error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": errorBody{Kind: "internal", Message: "internal error"},
		})
		return
	}

	status := http.StatusInternalServerError
	switch lifecycleErr.Kind {
	case quote.KindValidation:
		status = http.StatusBadRequest
	case quote.KindNotFound:
		status = http.StatusNotFound
	case quote.KindConflict:
		status = http.StatusConflict
	case quote.KindSlicing:
		status = http.StatusBadGateway
	case quote.KindPersistence:
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]any{
		"error": errorBody{
			Kind:      string(lifecycleErr.Kind),
			Message:   lifecycleErr.Message,
			Details:   lifecycleErr.Details,
			Retryable: lifecycleErr.Retryable(),
		},
	})
}

// decodeStrict decodes a JSON body rejecting unknown fields, so mistyped
// patch fields fail loudly instead of merging as no-ops.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
