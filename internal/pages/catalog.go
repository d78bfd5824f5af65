package pages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
)

// ErrPageNotFound is returned for a page key outside the catalog.
var ErrPageNotFound = errors.New("pages: page not found")

// Page is one section of the presentation.
type Page struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	// Hint tells the presenter what kind of images belong on the page.
	Hint string `json:"hint"`
}

// DefaultPages returns the presentation's five sections in navigation order.
func DefaultPages() []Page {
	return []Page{
		{
			Key:   "overview",
			Title: "Project Overview",
			Hint:  "Project logo, system architecture overview, or project summary infographics.",
		},
		{
			Key:   "dataset",
			Title: "Dataset Excellence",
			Hint:  "Dataset distribution charts, class samples, data split visualizations, or comparison graphs.",
		},
		{
			Key:   "technical",
			Title: "Technical Innovation",
			Hint:  "System architecture diagrams, pipeline flowcharts, model comparison charts, or technical specifications.",
		},
		{
			Key:   "results",
			Title: "Performance Results",
			Hint:  "Confusion matrices, training curves, accuracy plots, ROC curves, or performance comparison charts.",
		},
		{
			Key:   "applications",
			Title: "Applications & Impact",
			Hint:  "Use case diagrams, deployment scenarios, impact visualizations, or application mockups.",
		},
	}
}

// Catalog binds pages to the slot registry and holds pre-rendered slot help.
type Catalog struct {
	registry *assets.Registry
	pages    []Page
	index    map[string]int
	help     map[string]string
}

// NewCatalog checks that every slot targets a known page and renders slot help once.
func NewCatalog(reg *assets.Registry, pages []Page) (*Catalog, error) {
	if reg == nil {
		return nil, errors.New("pages: registry is required")
	}
	if len(pages) == 0 {
		return nil, errors.New("pages: at least one page is required")
	}

	c := &Catalog{
		registry: reg,
		pages:    make([]Page, 0, len(pages)),
		index:    make(map[string]int, len(pages)),
		help:     make(map[string]string, reg.Len()),
	}
	for _, page := range pages {
		page.Key = strings.TrimSpace(page.Key)
		if page.Key == "" {
			return nil, errors.New("pages: page key is required")
		}
		if _, dup := c.index[page.Key]; dup {
			return nil, fmt.Errorf("pages: duplicate page %q", page.Key)
		}
		c.index[page.Key] = len(c.pages)
		c.pages = append(c.pages, page)
	}

	renderer := newHelpRenderer()
	for _, slot := range reg.AllSlots() {
		if _, ok := c.index[slot.Page]; !ok {
			return nil, fmt.Errorf("pages: slot %q targets unknown page %q", slot.Key, slot.Page)
		}
		html, err := renderer.Render(slot.Help)
		if err != nil {
			return nil, fmt.Errorf("pages: render help for %q: %w", slot.Key, err)
		}
		c.help[slot.Key] = html
	}
	return c, nil
}

// Registry exposes the slot registry the catalog was built from.
func (c *Catalog) Registry() *assets.Registry { return c.registry }

// Pages lists pages in navigation order.
func (c *Catalog) Pages() []Page {
	out := make([]Page, len(c.pages))
	copy(out, c.pages)
	return out
}

// Page returns the page registered under key.
func (c *Catalog) Page(key string) (Page, error) {
	i, ok := c.index[strings.TrimSpace(key)]
	if !ok {
		return Page{}, fmt.Errorf("%w: %q", ErrPageNotFound, key)
	}
	return c.pages[i], nil
}

// HelpHTML returns the sanitised help markup for a slot.
func (c *Catalog) HelpHTML(slotKey string) string {
	return c.help[slotKey]
}
