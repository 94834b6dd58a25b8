package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/adapters/memory"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/application"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	docs := memory.NewDocumentStore()
	images := application.NewImageCache(application.ImageCacheDeps{Media: nopMediaStore{}, Dir: "cache"})
	subs := application.NewSubscriptionManager(application.SubscriptionManagerDeps{Documents: docs})
	chat := application.NewChatManager(application.ChatManagerDeps{})
	session := application.NewSession(application.SessionDeps{
		Chat:      chat,
		Subs:      subs,
		Images:    images,
		Documents: docs,
	})
	handler := NewHandler(session, subs, images, nil)
	return NewRouter(handler, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

type nopMediaStore struct{}

func (nopMediaStore) EnsureDir(string) error { return nil }
func (nopMediaStore) Download(_ context.Context, _, destPath string) (string, error) {
	return destPath, nil
}
func (nopMediaStore) ReadManifest(context.Context) ([]byte, error) { return []byte("{}"), nil }
func (nopMediaStore) WriteManifest(context.Context, []byte) error  { return nil }

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 from %s, got %d", path, rec.Code)
		}
	}
}

func TestResolveMediaRequiresURL(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/media/resolve", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", rec.Code)
	}
}

func TestResolveMediaUncachedFallsThrough(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/media/resolve?url=https://cdn.example.com/a.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data struct {
			Resolved string `json:"resolved"`
			Cached   bool   `json:"cached"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.Cached || body.Data.Resolved != "https://cdn.example.com/a.jpg" {
		t.Fatalf("expected source fallthrough, got %+v", body.Data)
	}
}

func TestSubscriptionsRequireSession(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}
}

func TestLoginRejectsBadBody(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/session", strings.NewReader("{broken")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}
