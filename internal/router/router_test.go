// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"quillpress/internal/blog"
	"quillpress/internal/handlers"
	"quillpress/internal/media"
	"quillpress/internal/middleware"
	"quillpress/internal/models"
	"quillpress/internal/session"
	"quillpress/internal/storage"
	"quillpress/internal/store/memstore"
)

const testProject = "blog"

// headerSessions resolves the session from a test header instead of Valkey.
type headerSessions map[string]*session.Data

func (s headerSessions) Get(_ context.Context, r *http.Request) (*session.Data, error) {
	return s[r.Header.Get("X-Test-Session")], nil
}

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter) (http.Handler, string) {
	t.Helper()
	return newConfiguredRouter(t, limiter, nil)
}

func newConfiguredRouter(t *testing.T, limiter *middleware.RateLimiter, configure func(*models.ProjectSettings)) (http.Handler, string) {
	t.Helper()

	settings := models.NewProjectSettings(testProject)
	settings.TimeZoneID = "UTC"
	if configure != nil {
		configure(settings)
	}
	projects := memstore.NewProjects(testProject)
	projects.Put(*settings)

	mediaDir := t.TempDir()
	local, err := storage.NewLocal(mediaDir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	svc := blog.NewService(memstore.NewPosts(), projects, media.NewProcessor(local, nil, testProject))

	sessions := headerSessions{
		"owner": {UserID: uuid.New(), Email: "owner@example.com", ProjectID: testProject, TwoFADone: true},
		"other": {UserID: uuid.New(), Email: "other@example.com", ProjectID: "elsewhere", TwoFADone: true},
		"half":  {UserID: uuid.New(), Email: "half@example.com", ProjectID: testProject},
	}

	h := New(Options{
		ProjectID:      testProject,
		CommentLimiter: limiter,
		MediaDir:       mediaDir,
	}, sessions,
		handlers.NewBlog(svc, testProject, nil, nil, "https://example.com"),
		handlers.NewAdmin(testProject, nil, nil, nil, nil, nil, nil),
		handlers.NewAuth(nil, nil),
	)
	return h, mediaDir
}

// send issues a request with a matching CSRF cookie and header.
func send(h http.Handler, method, path, body, sess string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: "tok"})
	req.Header.Set(middleware.CSRFHeaderName, "tok")
	if sess != "" {
		req.Header.Set("X-Test-Session", sess)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("content-type: got %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestRootRedirectsToBlog(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := send(h, http.MethodGet, "/", "", "")

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/blog" {
		t.Errorf("got %d to %q, want 302 to /blog", rec.Code, rec.Header().Get("Location"))
	}
}

func TestPublicBlogSetsCSRFCookie(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/blog", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var found bool
	for _, c := range rec.Result().Cookies() {
		found = found || c.Name == middleware.CSRFCookieName
	}
	if !found {
		t.Error("expected a CSRF cookie on the first page view")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestOwnerRoutesAccess(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	post := `{"title":"Routed","content":"<p>hi</p>","isPublished":true}`

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		session string
		want    int
	}{
		{"anonymous post", http.MethodPost, "/blog/ajax/post", post, "", http.StatusUnauthorized},
		{"2fa incomplete", http.MethodPost, "/blog/ajax/post", post, "half", http.StatusForbidden},
		{"other project", http.MethodPost, "/blog/ajax/post", post, "other", http.StatusForbidden},
		{"owner", http.MethodPost, "/blog/ajax/post", post, "owner", http.StatusOK},
		{"anonymous new", http.MethodGet, "/blog/new", "", "", http.StatusUnauthorized},
		{"anonymous admin", http.MethodGet, "/blog/admin/settings", "", "", http.StatusUnauthorized},
		{"other project admin", http.MethodGet, "/blog/admin/cache-log", "", "other", http.StatusForbidden},
		{"anonymous me", http.MethodGet, "/account/me", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(h, tt.method, tt.path, tt.body, tt.session)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPostTitledLikeARouteStaysReachable(t *testing.T) {
	h, _ := newConfiguredRouter(t, nil, func(s *models.ProjectSettings) {
		s.IncludePubDateInPostURLs = false
	})

	for _, title := range []string{"New", "Admin"} {
		rec := send(h, http.MethodPost, "/blog/ajax/post", `{"title":"`+title+`","content":"<p>hi</p>","isPublished":true}`, "owner")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: save status %d (%s)", title, rec.Code, rec.Body.String())
		}
		var saved map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
			t.Fatalf("%s: decode: %v", title, err)
		}
		want := "/blog/" + strings.ToLower(title) + "-2"
		if saved["url"] != want {
			t.Errorf("%s: url got %q, want %q", title, saved["url"], want)
		}

		if got := send(h, http.MethodGet, saved["url"], "", ""); got.Code != http.StatusOK {
			t.Errorf("%s: anonymous GET %s: got %d, want 200", title, saved["url"], got.Code)
		}
	}

	rec := send(h, http.MethodPost, "/blog/ajax/post", `{"title":"Hijack","slug":"admin"}`, "owner")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("explicit reserved slug: got %d, want 400", rec.Code)
	}
}

func TestUnsafeMethodsRequireCSRF(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/blog/ajax/comment", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}

func TestCommentRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	h, _ := newTestRouter(t, limiter)
	body := `{"postId":"missing","name":"Bo","email":"bo@example.com","content":"hi"}`

	first := send(h, http.MethodPost, "/blog/ajax/comment", body, "")
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first comment should not be limited")
	}
	second := send(h, http.MethodPost, "/blog/ajax/comment", body, "")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second comment: got %d, want 429", second.Code)
	}
}

func TestMediaFilesServed(t *testing.T) {
	h, dir := newTestRouter(t, nil)
	if err := os.MkdirAll(filepath.Join(dir, "media", "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "media", "images", "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := send(h, http.MethodGet, "/media/images/a.txt", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Errorf("got %d %q, want 200 %q", rec.Code, rec.Body.String(), "hello")
	}
}
