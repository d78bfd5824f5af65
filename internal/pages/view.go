package pages

import (
	"context"
	"net/url"
	"time"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
)

// Progress summarises resolved slots over a set.
type Progress struct {
	Resolved int     `json:"resolved"`
	Total    int     `json:"total"`
	Ratio    float64 `json:"ratio"`
	Complete bool    `json:"complete"`
}

// NewProgress derives the ratio and completion flag from counts.
func NewProgress(resolved, total int) Progress {
	return Progress{
		Resolved: resolved,
		Total:    total,
		Ratio:    assets.Ratio(resolved, total),
		Complete: total > 0 && resolved == total,
	}
}

// SlotView is a slot's state without the image bytes.
type SlotView struct {
	Key         string        `json:"key"`
	Title       string        `json:"title"`
	Page        string        `json:"page"`
	HelpHTML    string        `json:"help_html,omitempty"`
	Status      assets.Status `json:"status"`
	Source      assets.Source `json:"source,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
	Bytes       int           `json:"bytes,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Revision    string        `json:"revision,omitempty"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
}

// ImagePath is the route serving a resolved slot's bytes.
func ImagePath(slotKey string) string {
	return "/api/v1/slots/" + url.PathEscape(slotKey) + "/image"
}

// NewSlotView summarises state for slot.
func NewSlotView(slot assets.Slot, state assets.AssetState, helpHTML string) SlotView {
	view := SlotView{
		Key:      slot.Key,
		Title:    slot.Title,
		Page:     slot.Page,
		HelpHTML: helpHTML,
		Status:   state.Status,
		Source:   state.Source,
		Reason:   state.Reason,
		Revision: state.Revision,
	}
	if !state.UpdatedAt.IsZero() {
		updated := state.UpdatedAt
		view.UpdatedAt = &updated
	}
	if state.IsResolved() {
		view.ContentType = state.ContentType
		view.Width = state.Width
		view.Height = state.Height
		view.Bytes = len(state.Data)
		view.ImageURL = ImagePath(slot.Key)
	}
	return view
}

// View is everything needed to render one page.
type View struct {
	Page         Page       `json:"page"`
	Slots        []SlotView `json:"slots"`
	PageProgress Progress   `json:"page_progress"`
	Overall      Progress   `json:"overall_progress"`
}

// Build resolves the page's slots against store. Fetch failures appear as slot states, so the
// only error is ErrPageNotFound.
func Build(ctx context.Context, catalog *Catalog, pageKey string, store assets.Store, tracker *assets.Tracker) (View, error) {
	page, err := catalog.Page(pageKey)
	if err != nil {
		return View{}, err
	}

	slots := catalog.registry.SlotsForPage(page.Key)
	view := View{Page: page, Slots: make([]SlotView, 0, len(slots))}
	resolved := 0
	for _, slot := range slots {
		state, err := store.Resolve(ctx, slot.Key)
		if err != nil {
			return View{}, err
		}
		if state.IsResolved() {
			resolved++
		}
		view.Slots = append(view.Slots, NewSlotView(slot, state, catalog.HelpHTML(slot.Key)))
	}
	view.PageProgress = NewProgress(resolved, len(slots))
	view.Overall = NewProgress(tracker.Counts(ctx))
	return view, nil
}
