package session

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

// Ensure provisions a guest session when the request carries none, so every
// storefront request has a stable user id to key carts and coupons by.
func (m *Manager) Ensure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := m.GetSession(r.Context(), r)
		if err != nil {
			data = &Data{UserID: uuid.New(), Guest: true}
			if _, createErr := m.CreateSession(r.Context(), w, data); createErr != nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		}

		ctx := context.WithValue(r.Context(), contextKey{}, data)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext retrieves session data placed by Ensure.
func FromContext(ctx context.Context) *Data {
	if ctx == nil {
		return nil
	}
	data, ok := ctx.Value(contextKey{}).(*Data)
	if !ok {
		return nil
	}
	return data
}
