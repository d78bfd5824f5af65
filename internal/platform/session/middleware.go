package session

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/httpx"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/requestctx"
)

// Middleware loads or issues the session cookie and records the session id on the request
// context. The cookie is refreshed on every request so the idle window slides.
func Middleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			data, fresh := m.Load(r)
			if err := m.Save(w, data); err != nil {
				requestctx.Logger(ctx).Error("session save failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("session_error", "could not establish session", http.StatusInternalServerError))
				return
			}
			if fresh {
				requestctx.Logger(ctx).Debug("session started", zap.String("session_id", data.ID))
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(ctx, data.ID)))
		})
	}
}
