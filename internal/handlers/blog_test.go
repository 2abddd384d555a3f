// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quillpress/internal/blog"
	"quillpress/internal/media"
	"quillpress/internal/middleware"
	"quillpress/internal/models"
	"quillpress/internal/session"
	"quillpress/internal/storage"
	"quillpress/internal/store/memstore"
)

const testProject = "blog"

// memPageCache is an in-memory PageCache.
type memPageCache struct {
	mu          sync.Mutex
	pages       map[string][]byte
	invalidated int
}

func newMemPageCache() *memPageCache {
	return &memPageCache{pages: make(map[string][]byte)}
}

func (c *memPageCache) Get(_ context.Context, projectID, uri string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.pages[projectID+uri]
	return body, ok
}

func (c *memPageCache) Set(_ context.Context, projectID, uri string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[projectID+uri] = body
}

func (c *memPageCache) InvalidateProject(_ context.Context, projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.pages {
		if strings.HasPrefix(k, projectID) {
			delete(c.pages, k)
		}
	}
	c.invalidated++
}

// memLog is an in-memory InvalidationLog.
type memLog struct {
	entries []string
}

func (l *memLog) Log(projectID, entityType, entityID, action string) {
	l.entries = append(l.entries, projectID+"|"+entityType+"|"+action)
}

type blogEnv struct {
	handler  http.Handler
	posts    *memstore.Posts
	projects *memstore.Projects
	cache    *memPageCache
	log      *memLog
}

// newBlogEnv wires a Blog handler group over in-memory stores and local
// media storage, mounted on the same paths the router uses.
func newBlogEnv(t *testing.T, configure func(*models.ProjectSettings)) *blogEnv {
	t.Helper()

	settings := models.NewProjectSettings(testProject)
	settings.TimeZoneID = "UTC"
	settings.ModerateComments = false
	if configure != nil {
		configure(settings)
	}
	projects := memstore.NewProjects(testProject)
	projects.Put(*settings)
	posts := memstore.NewPosts()

	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	svc := blog.NewService(posts, projects, media.NewProcessor(local, nil, testProject))

	pageCache := newMemPageCache()
	log := &memLog{}
	b := NewBlog(svc, testProject, pageCache, log, "https://example.com")

	r := chi.NewRouter()
	r.Route("/blog", func(r chi.Router) {
		r.Get("/", b.Index)
		r.Get("/new", b.New)
		r.Get("/category/{category}", b.Category)
		r.Get("/archive/{year}", b.Archive)
		r.Get("/archive/{year}/{month}", b.Archive)
		r.Get("/archive/{year}/{month}/{day}", b.Archive)
		r.Get("/{slug}", b.Post)
		r.Get("/{year}/{month}/{day}/{slug}", b.Post)
		r.Post("/ajax/post", b.AjaxPost)
		r.Post("/ajax/delete", b.AjaxDelete)
		r.Post("/ajax/comment", b.AjaxComment)
		r.Post("/ajax/comment/approve", b.ApproveComment)
		r.Post("/ajax/comment/delete", b.DeleteComment)
		r.Post("/media", b.UploadMedia)
		r.Get("/admin/posts/{id}/history", b.PostHistory)
	})

	return &blogEnv{handler: r, posts: posts, projects: projects, cache: pageCache, log: log}
}

func ownerSession() *session.Data {
	return &session.Data{
		UserID:      uuid.New(),
		Email:       "owner@example.com",
		DisplayName: "Ana",
		ProjectID:   testProject,
		TwoFADone:   true,
	}
}

// do serves req, acting as sess when it is non-nil.
func (e *blogEnv) do(req *http.Request, sess *session.Data) *httptest.ResponseRecorder {
	if sess != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.SessionKey, sess))
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *blogEnv) postJSON(path string, body any, sess *session.Data) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, sess)
}

func (e *blogEnv) seed(t *testing.T, p models.Post) {
	t.Helper()
	if err := e.posts.Save(context.Background(), testProject, &p, true); err != nil {
		t.Fatalf("seed %s: %v", p.ID, err)
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func published(id string, pubDate time.Time, categories ...string) models.Post {
	return models.Post{
		ID:          id,
		Title:       "Post " + id,
		Slug:        "post-" + id,
		Content:     "<p>" + id + "</p>",
		PubDate:     pubDate,
		IsPublished: true,
		Categories:  categories,
	}
}

func TestBlogIndexVisibilityAndCache(t *testing.T) {
	env := newBlogEnv(t, nil)
	now := time.Now().UTC()
	env.seed(t, published("old", now.AddDate(0, 0, -10), "Go"))
	env.seed(t, published("new", now.AddDate(0, 0, -1), "Go", "Web"))
	env.seed(t, models.Post{ID: "draft", Title: "Draft", Slug: "draft"})
	env.seed(t, published("future", now.AddDate(0, 0, 3)))

	rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/", nil), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache: got %q, want MISS", got)
	}
	list := decode[listResponse](t, rr)
	if list.TotalPosts != 2 || len(list.Posts) != 2 || list.Posts[0].ID != "new" {
		t.Errorf("anonymous listing: got %d posts (%+v)", list.TotalPosts, list.Posts)
	}
	if list.Categories["Go"] != 2 || list.Categories["Web"] != 1 {
		t.Errorf("categories: got %v", list.Categories)
	}
	if list.IsOwner {
		t.Error("anonymous viewer reported as owner")
	}

	again := env.do(httptest.NewRequest(http.MethodGet, "/blog/", nil), nil)
	if got := again.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second request X-Cache: got %q, want HIT", got)
	}

	owned := env.do(httptest.NewRequest(http.MethodGet, "/blog/", nil), ownerSession())
	if owned.Header().Get("X-Cache") != "" {
		t.Error("owner responses must bypass the page cache")
	}
	ownerList := decode[listResponse](t, owned)
	if ownerList.TotalPosts != 4 || !ownerList.IsOwner {
		t.Errorf("owner listing: got %d posts, owner=%v", ownerList.TotalPosts, ownerList.IsOwner)
	}
}

func TestBlogIndexPaging(t *testing.T) {
	env := newBlogEnv(t, func(s *models.ProjectSettings) { s.PostsPerPage = 2 })
	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		env.seed(t, published(id, now.AddDate(0, 0, -(i+1))))
	}

	list := decode[listResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/?page=2", nil), nil))
	if list.Page != 2 || list.TotalPages != 2 || len(list.Posts) != 1 || list.Posts[0].ID != "c" {
		t.Errorf("page 2: got page=%d pages=%d posts=%+v", list.Page, list.TotalPages, list.Posts)
	}

	list = decode[listResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/?page=bogus", nil), nil))
	if list.Page != 1 || len(list.Posts) != 2 {
		t.Errorf("bogus page: got page=%d posts=%d", list.Page, len(list.Posts))
	}
}

func TestBlogCategoryAndArchive(t *testing.T) {
	env := newBlogEnv(t, nil)
	env.seed(t, published("a", time.Date(2023, 5, 31, 8, 0, 0, 0, time.UTC), "Go Tips"))
	env.seed(t, published("b", time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC), "news"))

	list := decode[listResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/category/go%20tips", nil), nil))
	if list.Category != "go tips" || len(list.Posts) != 1 || list.Posts[0].ID != "a" {
		t.Errorf("category: got %q %+v", list.Category, list.Posts)
	}

	list = decode[listResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/archive/2023/05", nil), nil))
	if list.Archive != "2023/05" || len(list.Posts) != 1 || list.Posts[0].ID != "a" {
		t.Errorf("archive month: got %q %+v", list.Archive, list.Posts)
	}

	list = decode[listResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/archive/2023", nil), nil))
	if list.TotalPosts != 2 {
		t.Errorf("archive year: got %d posts, want 2", list.TotalPosts)
	}

	for _, path := range []string{"/blog/archive/0", "/blog/archive/2023/13", "/blog/archive/2023/05/32", "/blog/archive/abc"} {
		if rr := env.do(httptest.NewRequest(http.MethodGet, path, nil), nil); rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rr.Code)
		}
	}
}

func TestBlogPostCanonicalRedirect(t *testing.T) {
	tests := []struct {
		name         string
		dated        bool
		path         string
		wantCode     int
		wantLocation string
	}{
		{"flat request on dated blog", true, "/blog/post-a", http.StatusMovedPermanently, "/blog/2024/03/07/post-a"},
		{"dated request on dated blog", true, "/blog/2024/03/07/post-a", http.StatusOK, ""},
		{"wrong date on dated blog", true, "/blog/2024/03/08/post-a", http.StatusMovedPermanently, "/blog/2024/03/07/post-a"},
		{"dated request on flat blog", false, "/blog/2024/03/07/post-a", http.StatusMovedPermanently, "/blog/post-a"},
		{"flat request on flat blog", false, "/blog/post-a", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newBlogEnv(t, func(s *models.ProjectSettings) { s.IncludePubDateInPostURLs = tt.dated })
			env.seed(t, published("a", time.Date(2024, 3, 7, 22, 30, 0, 0, time.UTC)))

			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil), nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			if got := rr.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location: got %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestBlogPostComments(t *testing.T) {
	env := newBlogEnv(t, func(s *models.ProjectSettings) { s.IncludePubDateInPostURLs = false })
	p := published("a", time.Now().UTC().AddDate(0, 0, -1))
	p.Comments = []models.Comment{
		{ID: "c1", Author: "Reader", Email: "r@example.com", Content: "nice", IsApproved: true, PubDate: time.Now().UTC()},
		{ID: "c2", Author: "Spammer", Content: "buy", PubDate: time.Now().UTC()},
	}
	env.seed(t, p)

	resp := decode[postResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/post-a", nil), nil))
	if len(resp.Comments) != 1 || resp.Comments[0].ID != "c1" {
		t.Errorf("anonymous comments: got %+v", resp.Comments)
	}
	if resp.Comments[0].Email != "" {
		t.Error("comment email leaked to anonymous viewer")
	}
	if !strings.HasPrefix(resp.Comments[0].Avatar, "https://www.gravatar.com/avatar/") {
		t.Errorf("avatar: got %q", resp.Comments[0].Avatar)
	}
	if !resp.CommentsOpen {
		t.Error("comments should be open on a day-old post")
	}
	if resp.CanonicalURL != "https://example.com/blog/post-a" {
		t.Errorf("canonical URL: got %q", resp.CanonicalURL)
	}
	if resp.Post.PubDateDisplay == "" {
		t.Error("expected a formatted publish date")
	}

	owned := decode[postResponse](t, env.do(httptest.NewRequest(http.MethodGet, "/blog/post-a", nil), ownerSession()))
	if len(owned.Comments) != 2 || owned.Comments[0].Email != "r@example.com" {
		t.Errorf("owner comments: got %+v", owned.Comments)
	}
}

func TestBlogPostNotVisible(t *testing.T) {
	env := newBlogEnv(t, func(s *models.ProjectSettings) { s.IncludePubDateInPostURLs = false })
	env.seed(t, models.Post{ID: "d", Title: "Draft", Slug: "draft"})

	if rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/draft", nil), nil); rr.Code != http.StatusNotFound {
		t.Errorf("draft for anonymous: got %d, want 404", rr.Code)
	}
	if rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/missing", nil), nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing post: got %d, want 404", rr.Code)
	}
	if rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/draft", nil), ownerSession()); rr.Code != http.StatusOK {
		t.Errorf("draft for owner: got %d, want 200", rr.Code)
	}
}

func TestBlogAjaxPost(t *testing.T) {
	env := newBlogEnv(t, func(s *models.ProjectSettings) { s.IncludePubDateInPostURLs = false })
	env.cache.Set(context.Background(), testProject, "/blog/", []byte("stale"))

	rr := env.postJSON("/blog/ajax/post", postRequest{
		Title:       "Hello World",
		Content:     `<p><img src="https://example.com/media/images/cat.png"></p>`,
		Categories:  "go, web",
		PubDate:     "2024-02-03 10:00",
		IsPublished: true,
	}, ownerSession())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s), want 200", rr.Code, rr.Body.String())
	}
	resp := decode[map[string]string](t, rr)
	if resp["url"] != "/blog/hello-world" || resp["slug"] != "hello-world" || resp["id"] == "" {
		t.Errorf("response: got %v", resp)
	}

	saved, _ := env.posts.GetPost(context.Background(), testProject, resp["id"])
	if saved == nil {
		t.Fatal("post not stored")
	}
	if saved.Author != "Ana" {
		t.Errorf("author: got %q, want Ana", saved.Author)
	}
	if !strings.Contains(saved.Content, `src="/media/images/cat.png"`) {
		t.Errorf("media URL not made relative: %q", saved.Content)
	}
	if len(saved.Categories) != 2 {
		t.Errorf("categories: got %v", saved.Categories)
	}

	if _, ok := env.cache.Get(context.Background(), testProject, "/blog/"); ok {
		t.Error("page cache should be invalidated after a save")
	}
	if len(env.log.entries) != 1 || env.log.entries[0] != "blog|post|save" {
		t.Errorf("invalidation log: got %v", env.log.entries)
	}
}

func TestBlogAjaxPostErrors(t *testing.T) {
	env := newBlogEnv(t, nil)
	env.seed(t, published("a", time.Now().UTC().AddDate(0, 0, -1)))

	tests := []struct {
		name     string
		body     any
		sess     *session.Data
		wantCode int
	}{
		{"anonymous", postRequest{Title: "x"}, nil, http.StatusForbidden},
		{"editor of another project", postRequest{Title: "x"}, &session.Data{ProjectID: "other", TwoFADone: true}, http.StatusForbidden},
		{"owner without 2fa", postRequest{Title: "x"}, &session.Data{ProjectID: testProject}, http.StatusForbidden},
		{"missing title", postRequest{Title: "  "}, ownerSession(), http.StatusBadRequest},
		{"slug taken", postRequest{Title: "Other", Slug: "post-a"}, ownerSession(), http.StatusConflict},
		{"unknown field", map[string]string{"headline": "x"}, ownerSession(), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.postJSON("/blog/ajax/post", tt.body, tt.sess)
			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d (%s), want %d", rr.Code, rr.Body.String(), tt.wantCode)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
		})
	}
}

func TestBlogPostHistory(t *testing.T) {
	env := newBlogEnv(t, nil)
	env.seed(t, published("a", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	rr := env.postJSON("/blog/ajax/post", postRequest{ID: "a", Title: "Post a", PubDate: "2024-05-20 09:00", IsPublished: true}, ownerSession())
	if rr.Code != http.StatusOK {
		t.Fatalf("move date: got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/blog/admin/posts/a/history", nil), ownerSession())
	if rr.Code != http.StatusOK {
		t.Fatalf("history: got %d (%s)", rr.Code, rr.Body.String())
	}
	history := decode[[]models.PubDateChange](t, rr)
	if len(history) != 1 {
		t.Fatalf("history: got %d entries, want 1", len(history))
	}
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC); !history[0].OldDate.Equal(want) {
		t.Errorf("old date: got %v, want %v", history[0].OldDate, want)
	}
	if want := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC); !history[0].NewDate.Equal(want) {
		t.Errorf("new date: got %v, want %v", history[0].NewDate, want)
	}

	if rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/admin/posts/a/history", nil), nil); rr.Code != http.StatusForbidden {
		t.Errorf("anonymous history: got %d, want 403", rr.Code)
	}
	if rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/admin/posts/missing/history", nil), ownerSession()); rr.Code != http.StatusNotFound {
		t.Errorf("missing post history: got %d, want 404", rr.Code)
	}
}

func TestBlogAjaxDelete(t *testing.T) {
	env := newBlogEnv(t, nil)
	env.seed(t, published("a", time.Now().UTC().AddDate(0, 0, -1)))

	if rr := env.postJSON("/blog/ajax/delete", idRequest{ID: "a"}, nil); rr.Code != http.StatusForbidden {
		t.Errorf("anonymous delete: got %d, want 403", rr.Code)
	}
	if rr := env.postJSON("/blog/ajax/delete", idRequest{ID: "a"}, ownerSession()); rr.Code != http.StatusOK {
		t.Errorf("owner delete: got %d, want 200", rr.Code)
	}
	if rr := env.postJSON("/blog/ajax/delete", idRequest{ID: "a"}, ownerSession()); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", rr.Code)
	}
}

func TestBlogAjaxComment(t *testing.T) {
	env := newBlogEnv(t, func(s *models.ProjectSettings) { s.DaysToComment = 30 })
	now := time.Now().UTC()
	env.seed(t, published("open", now.AddDate(0, 0, -1)))
	env.seed(t, published("closed", now.AddDate(0, 0, -60)))

	valid := commentRequest{PostID: "open", Name: "Reader", Email: "reader@example.com", Website: "example.org", Content: "Hi\nthere <b>"}

	req := httptest.NewRequest(http.MethodPost, "/blog/ajax/comment", strings.NewReader(mustJSON(valid)))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "test-agent")
	rr := env.do(req, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d (%s), want 201", rr.Code, rr.Body.String())
	}

	post, _ := env.posts.GetPost(context.Background(), testProject, "open")
	if len(post.Comments) != 1 {
		t.Fatalf("comments: got %d, want 1", len(post.Comments))
	}
	c := post.Comments[0]
	if c.IP != "203.0.113.9" || c.UserAgent != "test-agent" {
		t.Errorf("client info: got ip=%q ua=%q", c.IP, c.UserAgent)
	}
	if c.Content != "Hi<br />there &lt;b&gt;" {
		t.Errorf("content: got %q", c.Content)
	}
	if c.Website != "http://example.org" {
		t.Errorf("website: got %q", c.Website)
	}

	closed := valid
	closed.PostID = "closed"
	if rr := env.postJSON("/blog/ajax/comment", closed, nil); rr.Code != http.StatusForbidden {
		t.Errorf("closed post: got %d, want 403", rr.Code)
	}

	badEmail := valid
	badEmail.Email = "nope"
	rr = env.postJSON("/blog/ajax/comment", badEmail, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad email: got %d, want 400", rr.Code)
	}
	if body := decode[map[string]string](t, rr); body["field"] != "email" {
		t.Errorf("field: got %q, want email", body["field"])
	}

	missing := valid
	missing.PostID = "nope"
	if rr := env.postJSON("/blog/ajax/comment", missing, nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing post: got %d, want 404", rr.Code)
	}
}

func TestBlogCommentModeration(t *testing.T) {
	env := newBlogEnv(t, func(s *models.ProjectSettings) { s.ModerateComments = true })
	p := published("a", time.Now().UTC().AddDate(0, 0, -1))
	p.Comments = []models.Comment{{ID: "c1", Author: "Reader", Content: "hi"}}
	env.seed(t, p)

	action := commentActionRequest{PostID: "a", CommentID: "c1"}
	if rr := env.postJSON("/blog/ajax/comment/approve", action, nil); rr.Code != http.StatusForbidden {
		t.Errorf("anonymous approve: got %d, want 403", rr.Code)
	}
	if rr := env.postJSON("/blog/ajax/comment/approve", action, ownerSession()); rr.Code != http.StatusOK {
		t.Fatalf("approve: got %d, want 200", rr.Code)
	}
	post, _ := env.posts.GetPost(context.Background(), testProject, "a")
	if !post.Comments[0].IsApproved {
		t.Error("comment not approved")
	}

	if rr := env.postJSON("/blog/ajax/comment/delete", action, ownerSession()); rr.Code != http.StatusOK {
		t.Fatalf("delete: got %d, want 200", rr.Code)
	}
	if rr := env.postJSON("/blog/ajax/comment/delete", action, ownerSession()); rr.Code != http.StatusNotFound {
		t.Errorf("delete again: got %d, want 404", rr.Code)
	}
}

func TestBlogNew(t *testing.T) {
	env := newBlogEnv(t, nil)

	if rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/new", nil), nil); rr.Code != http.StatusForbidden {
		t.Errorf("anonymous: got %d, want 403", rr.Code)
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/blog/new", nil), ownerSession())
	if rr.Code != http.StatusOK {
		t.Fatalf("owner: got %d, want 200", rr.Code)
	}
	body := decode[map[string]json.RawMessage](t, rr)
	var post postRequest
	if err := json.Unmarshal(body["post"], &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if _, err := time.Parse(editorDateLayout, post.PubDate); err != nil {
		t.Errorf("pubDate %q not in editor layout: %v", post.PubDate, err)
	}
}

func TestBlogUploadMedia(t *testing.T) {
	env := newBlogEnv(t, nil)
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

	upload := func(name string, data []byte, sess *session.Data) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", name)
		fw.Write(data)
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/blog/media", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return env.do(req, sess)
	}

	rr := upload("Cat Photo.png", png, ownerSession())
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d (%s), want 201", rr.Code, rr.Body.String())
	}
	if url := decode[map[string]string](t, rr)["url"]; !strings.HasPrefix(url, "/media/images/cat-photo-") {
		t.Errorf("url: got %q", url)
	}

	if rr := upload("notes.txt", []byte("plain text"), ownerSession()); rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("text upload: got %d, want 415", rr.Code)
	}
	if rr := upload("cat.png", png, nil); rr.Code != http.StatusForbidden {
		t.Errorf("anonymous upload: got %d, want 403", rr.Code)
	}
}

func TestArchiveParams(t *testing.T) {
	tests := []struct {
		path             string
		year, month, day int
		ok               bool
	}{
		{"/a/2024", 2024, 0, 0, true},
		{"/a/2024/02", 2024, 2, 0, true},
		{"/a/2024/02/29", 2024, 2, 29, true},
		{"/a/2024/00", 0, 0, 0, false},
		{"/a/10000", 0, 0, 0, false},
		{"/a/2024/02/0", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var year, month, day int
			var ok bool
			r := chi.NewRouter()
			h := func(w http.ResponseWriter, r *http.Request) { year, month, day, ok = archiveParams(r) }
			r.Get("/a/{year}", h)
			r.Get("/a/{year}/{month}", h)
			r.Get("/a/{year}/{month}/{day}", h)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if ok != tt.ok || year != tt.year || month != tt.month || day != tt.day {
				t.Errorf("got (%d, %d, %d, %v), want (%d, %d, %d, %v)",
					year, month, day, ok, tt.year, tt.month, tt.day, tt.ok)
			}
		})
	}
}

func TestGravatarURL(t *testing.T) {
	got := gravatarURL("  MyEmailAddress@example.com ", 80)
	want := "https://www.gravatar.com/avatar/0bc83cb571cd1c50ba6f3e8a78ef1346?s=80&d=mm"
	if got != want {
		t.Errorf("gravatarURL: got %q, want %q", got, want)
	}
	if gravatarURL("", 80) != "" {
		t.Error("expected empty URL for empty email")
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func TestWriteServiceErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&blog.ValidationError{Field: "title", Message: "required"}, http.StatusBadRequest},
		{blog.ErrNotFound, http.StatusNotFound},
		{blog.ErrSlugConflict, http.StatusConflict},
		{fmt.Errorf("save post: %w", blog.ErrStalePost), http.StatusConflict},
		{blog.ErrCommentsClosed, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		writeServiceError(rr, httptest.NewRequest(http.MethodPost, "/blog/ajax/post", nil), tt.err)
		if rr.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, rr.Code, tt.want)
		}
	}
}
