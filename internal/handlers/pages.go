package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
	"github.com/Amrut-Prajapati/ReUpyog/internal/pages"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/httpx"
)

// PageHandlers serves the presentation sections and their view models.
type PageHandlers struct {
	catalog *pages.Catalog
	stores  StoreProvider
}

// NewPageHandlers constructs page handlers.
func NewPageHandlers(catalog *pages.Catalog, stores StoreProvider) *PageHandlers {
	return &PageHandlers{catalog: catalog, stores: stores}
}

// Routes registers the page endpoints on the provided router.
func (h *PageHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/pages", h.listPages)
	r.Get("/pages/{pageKey}", h.getPage)
}

type pageSummary struct {
	pages.Page
	Slots []string `json:"slots"`
}

func (h *PageHandlers) listPages(w http.ResponseWriter, _ *http.Request) {
	reg := h.catalog.Registry()
	list := h.catalog.Pages()
	out := make([]pageSummary, 0, len(list))
	for _, page := range list {
		summary := pageSummary{Page: page, Slots: []string{}}
		for _, slot := range reg.SlotsForPage(page.Key) {
			summary.Slots = append(summary.Slots, slot.Key)
		}
		out = append(out, summary)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"pages": out})
}

func (h *PageHandlers) getPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, ok := sessionStore(w, r, h.stores)
	if !ok {
		return
	}
	tracker := assets.NewTracker(h.catalog.Registry(), store)
	view, err := pages.Build(ctx, h.catalog, chi.URLParam(r, "pageKey"), store, tracker)
	if err != nil {
		if errors.Is(err, pages.ErrPageNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("page_not_found", err.Error(), http.StatusNotFound))
			return
		}
		writeStoreError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}
