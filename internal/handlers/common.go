package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/httpx"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/requestctx"
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds limit")
)

// StoreProvider hands out the asset store owned by a session. *assets.Pool satisfies it.
type StoreProvider interface {
	Store(sessionID string) (assets.Store, error)
}

// sessionStore resolves the caller's store, writing an error response when it cannot.
func sessionStore(w http.ResponseWriter, r *http.Request, stores StoreProvider) (assets.Store, bool) {
	ctx := r.Context()
	if stores == nil {
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "asset store is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	store, err := stores.Store(requestctx.SessionID(ctx))
	if err != nil {
		if errors.Is(err, assets.ErrSessionRequired) {
			httpx.WriteError(ctx, w, httpx.NewError("session_required", "a presentation session is required", http.StatusUnauthorized))
			return nil, false
		}
		writeStoreError(ctx, w, err)
		return nil, false
	}
	return store, true
}

func writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var unknown *assets.UnknownSlotError
	var invalid *assets.InvalidImageError
	switch {
	case errors.As(err, &unknown):
		httpx.WriteError(ctx, w, httpx.NewError("slot_not_found", err.Error(), http.StatusNotFound).
			WithDetails(map[string]any{"slot": unknown.Key}))
	case errors.Is(err, assets.ErrImageTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("image_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	case errors.As(err, &invalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_image", err.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"reason": invalid.Reason}))
	default:
		requestctx.Logger(ctx).Error("asset store error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("asset_store_error", "asset store failed", http.StatusInternalServerError))
	}
}

func readLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}
