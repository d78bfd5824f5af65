package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Amrut-Prajapati/ReUpyog/internal/assets"
	"github.com/Amrut-Prajapati/ReUpyog/internal/pages"
	"github.com/Amrut-Prajapati/ReUpyog/internal/platform/requestctx"
)

const testSessionID = "session-under-test"

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func withSession(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), id)))
		})
	}
}

type testEnv struct {
	router  chi.Router
	catalog *pages.Catalog
	pool    *assets.Pool
}

func newTestEnv(t *testing.T, factory func(*assets.Registry) assets.StoreFactory, opts ...SlotOption) testEnv {
	t.Helper()
	reg, err := assets.NewRegistry(
		assets.Slot{Key: "logo", Title: "Logo", Page: "overview", Help: "Square **logo**"},
		assets.Slot{Key: "architecture", Title: "Architecture", Page: "overview"},
		assets.Slot{Key: "confusion_matrix", Title: "Confusion matrix", Page: "results"},
	)
	require.NoError(t, err)
	catalog, err := pages.NewCatalog(reg, pages.DefaultPages())
	require.NoError(t, err)
	if factory == nil {
		factory = func(reg *assets.Registry) assets.StoreFactory { return assets.SessionFactory(reg) }
	}
	pool := assets.NewPool(factory(reg), time.Hour)

	router := NewRouter(
		WithMiddlewares(withSession(testSessionID)),
		WithSlotRoutes(NewSlotHandlers(catalog, pool, opts...).Routes),
		WithPageRoutes(NewPageHandlers(catalog, pool).Routes),
	)
	return testEnv{router: router, catalog: catalog, pool: pool}
}

func (e testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestUploadAndServeImage(t *testing.T) {
	env := newTestEnv(t, nil)
	img := testPNG(t)

	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(img)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.Equal(t, "resolved", body["status"])
	require.Equal(t, "uploaded", body["source"])
	require.Equal(t, "/api/v1/slots/logo/image", body["image_url"])
	require.Contains(t, body["help_html"], "<strong>logo</strong>")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo/image", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, img, rec.Body.Bytes())
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo/image", nil)
	req.Header.Set("If-None-Match", etag)
	rec = env.do(t, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}

func TestMultipartUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	part, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(testPNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/slots/architecture/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	store, err := env.pool.Store(testSessionID)
	require.NoError(t, err)
	state, err := store.Resolve(context.Background(), "architecture")
	require.NoError(t, err)
	require.True(t, state.IsResolved())
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, nil, WithMaxUploadBytes(64))

	cases := []struct {
		name   string
		path   string
		body   []byte
		status int
		code   string
	}{
		{name: "not an image", path: "/api/v1/slots/logo/image", body: []byte("plain text"), status: http.StatusBadRequest, code: "invalid_image"},
		{name: "empty", path: "/api/v1/slots/logo/image", body: nil, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "too large", path: "/api/v1/slots/logo/image", body: bytes.Repeat([]byte{0x89}, 65), status: http.StatusRequestEntityTooLarge, code: "image_too_large"},
		{name: "unknown slot", path: "/api/v1/slots/hero_banner/image", body: testPNG(t), status: http.StatusNotFound, code: "slot_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, httptest.NewRequest(http.MethodPut, tc.path, bytes.NewReader(tc.body)))
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, decodeBody(t, rec)["error"])
		})
	}
}

func TestImagePlaceholders(t *testing.T) {
	fetcher := assets.FetcherFunc(func(context.Context, assets.Slot) ([]byte, error) {
		return nil, errors.New("GET https://example.com/logo.png: unexpected status 404")
	})
	env := newTestEnv(t, func(reg *assets.Registry) assets.StoreFactory {
		shared, err := assets.NewRemoteStore(reg, fetcher)
		require.NoError(t, err)
		return assets.OverlayFactory(reg, shared)
	})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo/image", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "image_fetch_failed", body["error"])
	require.Contains(t, body["reason"], "404")

	local := newTestEnv(t, nil)
	rec = local.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo/image", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	body = decodeBody(t, rec)
	require.Equal(t, "image_unavailable", body["error"])
	require.Contains(t, body["hint"], "Project logo")
}

func TestInvalidateSlot(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(testPNG(t))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/slots/logo:invalidate", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "unresolved", decodeBody(t, rec)["status"])

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/slots/hero_banner:invalidate", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSlotsAndProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(testPNG(t))))
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/api/v1/slots", "/api/v1/slots?snapshot=true"} {
		rec = env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var list slotListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Slots, 3)
		require.Equal(t, "logo", list.Slots[0].Key)
		require.Equal(t, 1, list.Progress.Resolved)
		require.Equal(t, 3, list.Progress.Total)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var progress progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	require.InDelta(t, 1.0/3.0, progress.Overall.Ratio, 1e-9)
	require.False(t, progress.Overall.Complete)
	require.Len(t, progress.Pages, 5)
	require.Equal(t, pages.Progress{Resolved: 1, Total: 2, Ratio: 0.5}, progress.Pages[0].Progress)
	require.Equal(t, pages.Progress{}, progress.Pages[1].Progress)
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(testPNG(t))))
	require.Equal(t, http.StatusOK, rec.Code)

	other := NewRouter(
		WithMiddlewares(withSession("someone-else")),
		WithSlotRoutes(NewSlotHandlers(env.catalog, env.pool).Routes),
	)
	rec = httptest.NewRecorder()
	other.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo/image", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingSessionIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	router := NewRouter(WithSlotRoutes(NewSlotHandlers(env.catalog, env.pool).Routes))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "session_required", decodeBody(t, rec)["error"])
}

func TestUploadRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, WithUploadRateLimit(1))
	img := testPNG(t)

	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(img)))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(img)))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate_limited", decodeBody(t, rec)["error"])

	// Reads are not limited.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/slots/logo/image", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPageEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/slots/logo/image", bytes.NewReader(testPNG(t))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/pages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Pages []struct {
			Key   string   `json:"key"`
			Hint  string   `json:"hint"`
			Slots []string `json:"slots"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Pages, 5)
	require.Equal(t, []string{"logo", "architecture"}, list.Pages[0].Slots)
	require.Empty(t, list.Pages[1].Slots)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/pages/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view pages.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "Project Overview", view.Page.Title)
	require.Len(t, view.Slots, 2)
	require.Equal(t, assets.StatusResolved, view.Slots[0].Status)
	require.Equal(t, 0.5, view.PageProgress.Ratio)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/pages/pricing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "page_not_found", decodeBody(t, rec)["error"])
}

func TestRouterFallbacksAndHealth(t *testing.T) {
	failing := errors.New("manifest not loaded")
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(
		WithHealthVersion("test"),
		WithReadinessCheck("registry", func(context.Context) error { return failing }),
	)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", decodeBody(t, rec)["version"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "unavailable", body["status"])
	require.Equal(t, map[string]any{"registry": "manifest not loaded"}, body["checks"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, errorNotFoundCode, decodeBody(t, rec)["error"])
}
