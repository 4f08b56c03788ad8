package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/session"
)

// sessionUser pulls the session identity placed by EnsureSession. A missing
// session means the middleware chain is miswired, so the caller answers 401
// rather than provisioning anything here.
func (h *Handlers) sessionUser(ctx context.Context, w http.ResponseWriter) (uuid.UUID, *session.Data, bool) {
	data := session.FromContext(ctx)
	if data == nil || data.UserID == uuid.Nil {
		respondError(ctx, w, http.StatusUnauthorized, "NO_SESSION", "session required")
		return uuid.Nil, nil, false
	}
	return data.UserID, data, true
}
