package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
	"github.com/Amrut-Prajapati/ReUpyog/internal/pages"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/httpx"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/requestctx"
)

const (
	multipartFileField = "file"
	multipartOverhead  = 1 << 20
)

// SlotHandlers exposes slot state, uploads, image bytes and progress for the caller's session.
type SlotHandlers struct {
	catalog       *pages.Catalog
	stores        StoreProvider
	maxUpload     int64
	uploadLimiter func(http.Handler) http.Handler
}

// SlotOption customises SlotHandlers.
type SlotOption func(*SlotHandlers)

// WithMaxUploadBytes caps accepted upload bodies.
func WithMaxUploadBytes(n int64) SlotOption {
	return func(h *SlotHandlers) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithUploadRateLimit limits uploads per client IP per minute. Zero disables limiting.
func WithUploadRateLimit(perMinute int) SlotOption {
	return func(h *SlotHandlers) {
		if perMinute <= 0 {
			h.uploadLimiter = nil
			return
		}
		h.uploadLimiter = httprate.Limit(perMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many uploads, slow down", http.StatusTooManyRequests))
			}),
		)
	}
}

// NewSlotHandlers constructs slot handlers over the catalog's registry.
func NewSlotHandlers(catalog *pages.Catalog, stores StoreProvider, opts ...SlotOption) *SlotHandlers {
	h := &SlotHandlers{
		catalog:   catalog,
		stores:    stores,
		maxUpload: assets.DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the slot endpoints on the provided router.
func (h *SlotHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/slots", h.listSlots)
	r.Get("/slots/{slotKey}", h.getSlot)
	r.Get("/slots/{slotKey}/image", h.getImage)
	upload := r
	if h.uploadLimiter != nil {
		upload = r.With(h.uploadLimiter)
	}
	upload.Put("/slots/{slotKey}/image", h.uploadImage)
	r.Post("/slots/{slotKey}:invalidate", h.invalidateSlot)
	r.Get("/progress", h.getProgress)
}

type slotListResponse struct {
	Slots    []pages.SlotView `json:"slots"`
	Progress pages.Progress   `json:"progress"`
}

// listSlots resolves every slot unless ?snapshot=true asks for cached state only.
func (h *SlotHandlers) listSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}

	reg := h.catalog.Registry()
	slots := reg.AllSlots()
	var states []assets.AssetState
	if snapshot, _ := strconv.ParseBool(r.URL.Query().Get("snapshot")); snapshot {
		states = store.Snapshot(ctx)
	} else {
		states = make([]assets.AssetState, 0, len(slots))
		for _, slot := range slots {
			state, err := store.Resolve(ctx, slot.Key)
			if err != nil {
				writeStoreError(ctx, w, err)
				return
			}
			states = append(states, state)
		}
	}

	resp := slotListResponse{Slots: make([]pages.SlotView, 0, len(slots))}
	resolved := 0
	for i, slot := range slots {
		if states[i].IsResolved() {
			resolved++
		}
		resp.Slots = append(resp.Slots, pages.NewSlotView(slot, states[i], h.catalog.HelpHTML(slot.Key)))
	}
	resp.Progress = pages.NewProgress(resolved, len(slots))
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *SlotHandlers) getSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slot, err := h.catalog.Registry().Lookup(chi.URLParam(r, "slotKey"))
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}
	state, err := store.Resolve(ctx, slot.Key)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pages.NewSlotView(slot, state, h.catalog.HelpHTML(slot.Key)))
}

func (h *SlotHandlers) getImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slot, err := h.catalog.Registry().Lookup(chi.URLParam(r, "slotKey"))
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}
	state, err := store.Resolve(ctx, slot.Key)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}

	switch state.Status {
	case assets.StatusUnresolved:
		details := map[string]any{"slot": slot.Key, "title": slot.Title}
		if page, err := h.catalog.Page(slot.Page); err == nil {
			details["hint"] = page.Hint
		}
		httpx.WriteError(ctx, w, httpx.NewError("image_unavailable", "no image has been provided for this slot", http.StatusNotFound).WithDetails(details))
		return
	case assets.StatusFetchFailed:
		httpx.WriteError(ctx, w, httpx.NewError("image_fetch_failed", "the published image could not be fetched", http.StatusBadGateway).
			WithDetails(map[string]any{"slot": slot.Key, "reason": state.Reason}))
		return
	}

	etag := strconv.Quote(state.Revision)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", state.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(state.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(state.Data)
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (h *SlotHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slot, err := h.catalog.Registry().Lookup(chi.URLParam(r, "slotKey"))
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}

	data, err := h.readUpload(w, r)
	if err != nil {
		status := http.StatusBadRequest
		code := "invalid_request"
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
			code = "image_too_large"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), status))
		return
	}

	state, err := store.Upload(ctx, slot.Key, data)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("slot image uploaded",
		zap.String("slot", slot.Key),
		zap.String("format", state.Format),
		zap.Int("bytes", len(state.Data)),
	)
	httpx.WriteJSON(w, http.StatusOK, pages.NewSlotView(slot, state, h.catalog.HelpHTML(slot.Key)))
}

// readUpload accepts either a raw image body or a multipart form with a "file" part.
func (h *SlotHandlers) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return readLimitedBody(r.Body, h.maxUpload)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := reader.NextPart()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, errBodyTooLarge
			}
			return nil, errors.New(`multipart field "file" is required`)
		}
		if part.FormName() != multipartFileField {
			_ = part.Close()
			continue
		}
		data, err := readLimitedBody(part, h.maxUpload)
		_ = part.Close()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return data, err
	}
}

func (h *SlotHandlers) invalidateSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}
	key := chi.URLParam(r, "slotKey")
	if err := store.Invalidate(ctx, key); err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("slot invalidated", zap.String("slot", key))
	w.WriteHeader(http.StatusNoContent)
}

type pageProgress struct {
	Page     string         `json:"page"`
	Title    string         `json:"title"`
	Progress pages.Progress `json:"progress"`
}

type progressResponse struct {
	Overall pages.Progress `json:"overall"`
	Pages   []pageProgress `json:"pages"`
}

func (h *SlotHandlers) getProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}
	tracker := assets.NewTracker(h.catalog.Registry(), store)

	resp := progressResponse{Overall: pages.NewProgress(tracker.Counts(ctx))}
	for _, page := range h.catalog.Pages() {
		resp.Pages = append(resp.Pages, pageProgress{
			Page:     page.Key,
			Title:    page.Title,
			Progress: pages.NewProgress(tracker.PageCounts(ctx, page.Key)),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
