package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/podomall/podomall/internal/logging"
)

// envelope is the single response shape every endpoint uses: Ok plus Data on
// success, Ok false plus Error on failure.
type envelope struct {
	Ok    bool           `json:"ok"`
	Data  any            `json:"data,omitempty"`
	Error *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeEnvelope(ctx, w, status, envelope{Ok: true, Data: data})
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(ctx, w, status, envelope{Ok: false, Error: &responseError{Code: code, Message: message}})
}

func writeEnvelope(ctx context.Context, w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx, nil).Error("failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
