// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"quillpress/internal/blog"
	"quillpress/internal/media"
	"quillpress/internal/middleware"
	"quillpress/internal/models"
)

// editorDateLayout is the publish date format handed to the editor and
// accepted back from it, in the project's time zone.
const editorDateLayout = "2006-01-02 15:04"

// allowedUploadTypes lists the MIME types accepted by UploadMedia.
var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/avif":      true,
	"application/pdf": true,
	"video/mp4":       true,
	"audio/mpeg":      true,
}

// PageCache caches rendered anonymous responses per project.
// cache.PageCache implements it.
type PageCache interface {
	Get(ctx context.Context, projectID, requestURI string) ([]byte, bool)
	Set(ctx context.Context, projectID, requestURI string, body []byte)
	InvalidateProject(ctx context.Context, projectID string)
}

// InvalidationLog records why cached pages were dropped.
// store.CacheLogStore implements it.
type InvalidationLog interface {
	Log(projectID, entityType, entityID, action string)
}

// Blog groups the public blog endpoints and the owner's editing endpoints.
type Blog struct {
	svc       *blog.Service
	projectID string
	pageCache PageCache
	cacheLog  InvalidationLog
	baseURL   string
}

// NewBlog creates the blog handler group for the current project.
// pageCache and cacheLog may be nil.
func NewBlog(svc *blog.Service, projectID string, pageCache PageCache, cacheLog InvalidationLog, baseURL string) *Blog {
	return &Blog{
		svc:       svc,
		projectID: projectID,
		pageCache: pageCache,
		cacheLog:  cacheLog,
		baseURL:   baseURL,
	}
}

// --- Views ---

type postView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	URL             string     `json:"url"`
	Author          string     `json:"author"`
	MetaDescription string     `json:"metaDescription"`
	Content         string     `json:"content"`
	PubDate         *time.Time `json:"pubDate"`
	PubDateDisplay  string     `json:"pubDateDisplay"`
	LastModified    time.Time  `json:"lastModified"`
	IsPublished     bool       `json:"isPublished"`
	Categories      []string   `json:"categories"`
	CommentCount    int        `json:"commentCount"`
}

type commentView struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	Email      string    `json:"email,omitempty"`
	Website    string    `json:"website,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	Content    string    `json:"content"`
	PubDate    time.Time `json:"pubDate"`
	IsAdmin    bool      `json:"isAdmin"`
	IsApproved bool      `json:"isApproved"`
}

type listResponse struct {
	Posts      []postView     `json:"posts"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPosts int            `json:"totalPosts"`
	TotalPages int            `json:"totalPages"`
	IsOwner    bool           `json:"isOwner"`
	Category   string         `json:"category,omitempty"`
	Archive    string         `json:"archive,omitempty"`
	Categories map[string]int `json:"categories"`
	Archives   map[string]int `json:"archives"`
	Recent     []postView     `json:"recentPosts,omitempty"`
}

type postResponse struct {
	Post         postView      `json:"post"`
	CanonicalURL string        `json:"canonicalUrl"`
	IsOwner      bool          `json:"isOwner"`
	CommentsOpen bool          `json:"commentsOpen"`
	Comments     []commentView `json:"comments"`
}

// redirect is returned by a cached builder to answer with a permanent
// redirect instead of a body.
type redirect string

func newPostView(settings *models.ProjectSettings, p *models.Post) postView {
	v := postView{
		ID:              p.ID,
		Title:           p.Title,
		Slug:            p.Slug,
		URL:             blog.PostURL(settings, p),
		Author:          p.Author,
		MetaDescription: p.MetaDescription,
		Content:         blog.FilterContent(settings, p.Content),
		LastModified:    p.LastModified,
		IsPublished:     p.IsPublished,
		Categories:      p.Categories,
		CommentCount:    len(p.ApprovedComments()),
	}
	if v.Categories == nil {
		v.Categories = []string{}
	}
	if p.HasPubDate() {
		d := p.PubDate.UTC()
		v.PubDate = &d
		v.PubDateDisplay = blog.FormatDate(settings, p.PubDate)
	}
	return v
}

func newPostViews(settings *models.ProjectSettings, posts []models.Post) []postView {
	views := make([]postView, len(posts))
	for i := range posts {
		views[i] = newPostView(settings, &posts[i])
	}
	return views
}

func newCommentView(settings *models.ProjectSettings, c models.Comment, owner bool) commentView {
	v := commentView{
		ID:         c.ID,
		Author:     c.Author,
		Website:    c.Website,
		Avatar:     gravatarURL(c.Email, settings.GravatarSize),
		Content:    blog.FilterComment(c.Content),
		PubDate:    c.PubDate,
		IsAdmin:    c.IsAdmin,
		IsApproved: c.IsApproved,
	}
	if owner {
		v.Email = c.Email
	}
	return v
}

// gravatarURL returns the avatar URL for an email address, or "" when
// there is no address.
func gravatarURL(email string, size int) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if size <= 0 {
		size = models.DefaultGravatarSize
	}
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mm", md5.Sum([]byte(email)), size)
}

// --- Public endpoints ---

// Index lists the newest visible posts.
func (b *Blog) Index(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	b.serveCached(w, r, func(ctx context.Context, sc *blog.Scope) (any, error) {
		posts, err := sc.GetVisiblePosts(ctx, "", page)
		if err != nil {
			return nil, err
		}
		total, err := sc.GetCount(ctx, "")
		if err != nil {
			return nil, err
		}
		resp, err := b.listing(ctx, sc, posts, total, page)
		if err != nil {
			return nil, err
		}

		settings, _ := sc.Settings(ctx)
		if page == 1 && settings.ShowRecentPostsOnDefaultPage {
			recent, err := sc.GetRecentPosts(ctx, settings.PageSize())
			if err != nil {
				return nil, err
			}
			resp.Recent = newPostViews(settings, recent)
		}
		return resp, nil
	})
}

// Category lists the visible posts of one category.
func (b *Blog) Category(w http.ResponseWriter, r *http.Request) {
	category, err := url.PathUnescape(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	page := pageParam(r)
	b.serveCached(w, r, func(ctx context.Context, sc *blog.Scope) (any, error) {
		posts, err := sc.GetVisiblePosts(ctx, category, page)
		if err != nil {
			return nil, err
		}
		total, err := sc.GetCount(ctx, category)
		if err != nil {
			return nil, err
		}
		resp, err := b.listing(ctx, sc, posts, total, page)
		if err != nil {
			return nil, err
		}
		resp.Category = category
		return resp, nil
	})
}

// Archive lists the posts of a year, month, or day.
func (b *Blog) Archive(w http.ResponseWriter, r *http.Request) {
	year, month, day, ok := archiveParams(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	page := pageParam(r)

	b.serveCached(w, r, func(ctx context.Context, sc *blog.Scope) (any, error) {
		posts, err := sc.GetPosts(ctx, year, month, day, page)
		if err != nil {
			return nil, err
		}
		total, err := sc.GetCountByDate(ctx, year, month, day)
		if err != nil {
			return nil, err
		}
		resp, err := b.listing(ctx, sc, posts, total, page)
		if err != nil {
			return nil, err
		}
		resp.Archive = archiveLabel(year, month, day)
		return resp, nil
	})
}

// Post shows a single post. Requests on the non-canonical URL form are
// redirected to the canonical one.
func (b *Blog) Post(w http.ResponseWriter, r *http.Request) {
	postSlug := chi.URLParam(r, "slug")
	b.serveCached(w, r, func(ctx context.Context, sc *blog.Scope) (any, error) {
		settings, err := sc.Settings(ctx)
		if err != nil {
			return nil, err
		}
		post, err := sc.GetPostBySlug(ctx, postSlug)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, blog.ErrNotFound
		}

		if target, ok := blog.CanonicalRedirect(settings, post, r.URL.EscapedPath()); ok {
			return redirect(target), nil
		}

		owner, err := sc.IsOwner(ctx)
		if err != nil {
			return nil, err
		}
		open, err := sc.CommentsAreOpen(ctx, post)
		if err != nil {
			return nil, err
		}

		comments := post.Comments
		if !owner {
			comments = post.ApprovedComments()
		}
		views := make([]commentView, len(comments))
		for i, c := range comments {
			views[i] = newCommentView(settings, c, owner)
		}

		return &postResponse{
			Post:         newPostView(settings, post),
			CanonicalURL: requestBaseURL(b.baseURL, r) + blog.PostURL(settings, post),
			IsOwner:      owner,
			CommentsOpen: open,
			Comments:     views,
		}, nil
	})
}

// serveCached answers anonymous GETs from the page cache and fills it on
// a miss. Owners always get a fresh response.
func (b *Blog) serveCached(w http.ResponseWriter, r *http.Request, build func(ctx context.Context, sc *blog.Scope) (any, error)) {
	ctx := r.Context()
	viewer := viewerFor(r)
	cacheable := b.pageCache != nil && !viewer.Authenticated && r.Method == http.MethodGet
	key := r.URL.RequestURI()

	if cacheable {
		if body, ok := b.pageCache.Get(ctx, b.projectID, key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(body)
			return
		}
	}

	v, err := build(ctx, b.svc.Scope(viewer))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if target, ok := v.(redirect); ok {
		http.Redirect(w, r, string(target), http.StatusMovedPermanently)
		return
	}

	body, err := json.Marshal(v)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("encode response: %w", err))
		return
	}
	if cacheable {
		b.pageCache.Set(ctx, b.projectID, key, body)
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (b *Blog) listing(ctx context.Context, sc *blog.Scope, posts []models.Post, total, page int) (*listResponse, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	owner, err := sc.IsOwner(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := sc.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	archives, err := sc.GetArchives(ctx)
	if err != nil {
		return nil, err
	}

	size := settings.PageSize()
	return &listResponse{
		Posts:      newPostViews(settings, posts),
		Page:       page,
		PageSize:   size,
		TotalPosts: total,
		TotalPages: (total + size - 1) / size,
		IsOwner:    owner,
		Categories: categories,
		Archives:   archives,
	}, nil
}

// --- Owner endpoints ---

type postRequest struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	Content         string `json:"content"`
	MetaDescription string `json:"metaDescription"`
	Categories      string `json:"categories"`
	PubDate         string `json:"pubDate"`
	IsPublished     bool   `json:"isPublished"`
}

type idRequest struct {
	ID string `json:"id"`
}

type commentRequest struct {
	PostID  string `json:"postId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Content string `json:"content"`
}

type commentActionRequest struct {
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
}

// New returns an empty post for the editor, dated now in the project's
// time zone.
func (b *Blog) New(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := b.svc.Scope(viewerFor(r))

	owner, err := sc.IsOwner(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !owner {
		writeServiceError(w, r, blog.ErrForbidden)
		return
	}
	settings, _ := sc.Settings(ctx)
	categories, err := sc.GetCategories(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"post": postRequest{
			PubDate: now.In(blog.Location(settings.TimeZoneID)).Format(editorDateLayout),
		},
		"categories": categories,
		"mediaPath":  settings.MediaPath(),
	})
}

// AjaxPost creates or updates a post from the editor and returns its URL.
func (b *Blog) AjaxPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	sc := b.svc.Scope(viewerFor(r))
	post, err := sc.SavePost(ctx, blog.PostEdit{
		ID:              req.ID,
		Title:           req.Title,
		Slug:            req.Slug,
		MetaDescription: req.MetaDescription,
		Content:         req.Content,
		Categories:      req.Categories,
		PubDate:         req.PubDate,
		IsPublished:     req.IsPublished,
	}, requestBaseURL(b.baseURL, r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	settings, _ := sc.Settings(ctx)
	b.invalidate(ctx, "post", post.ID, "save")

	writeJSON(w, http.StatusOK, map[string]string{
		"id":   post.ID,
		"slug": post.Slug,
		"url":  blog.PostURL(settings, post),
	})
}

// AjaxDelete removes a post.
func (b *Blog) AjaxDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := b.svc.Scope(viewerFor(r)).Delete(ctx, req.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	b.invalidate(ctx, "post", req.ID, "delete")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// PostHistory lists the recorded publish date moves of a post.
func (b *Blog) PostHistory(w http.ResponseWriter, r *http.Request) {
	history, err := b.svc.Scope(viewerFor(r)).PubDateHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []models.PubDateChange{}
	}
	writeJSON(w, http.StatusOK, history)
}

// AjaxComment adds a reader's comment to a post.
func (b *Blog) AjaxComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	sc := b.svc.Scope(viewerFor(r))
	comment, err := sc.AddComment(ctx, blog.CommentInput{
		PostID:    req.PostID,
		Name:      req.Name,
		Email:     req.Email,
		Website:   req.Website,
		Content:   req.Content,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	settings, _ := sc.Settings(ctx)
	owner, _ := sc.IsOwner(ctx)
	if comment.IsApproved {
		b.invalidate(ctx, "comment", comment.ID, "create")
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"comment":  newCommentView(settings, *comment, owner),
		"approved": comment.IsApproved,
	})
}

// ApproveComment approves a moderated comment.
func (b *Blog) ApproveComment(w http.ResponseWriter, r *http.Request) {
	b.commentAction(w, r, "approve", (*blog.Scope).ApproveComment)
}

// DeleteComment removes a comment.
func (b *Blog) DeleteComment(w http.ResponseWriter, r *http.Request) {
	b.commentAction(w, r, "delete", (*blog.Scope).DeleteComment)
}

func (b *Blog) commentAction(w http.ResponseWriter, r *http.Request, action string, fn func(*blog.Scope, context.Context, string, string) error) {
	var req commentActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := fn(b.svc.Scope(viewerFor(r)), ctx, req.PostID, req.CommentID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	b.invalidate(ctx, "comment", req.CommentID, action)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// UploadMedia stores a file sent as multipart field "file" in the
// project's media folder.
func (b *Blog) UploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := b.svc.Scope(viewerFor(r))
	owner, err := sc.IsOwner(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !owner {
		writeServiceError(w, r, blog.ErrForbidden)
		return
	}

	// Limit request body to the file cap plus room for form fields.
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(media.MaxFileSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large or malformed upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Size > media.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	detected := mimetype.Detect(data)
	if !allowedUploadTypes[detected.String()] {
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("file type %q is not allowed", detected.String()))
		return
	}

	settings, _ := sc.Settings(ctx)
	fileURL, err := b.svc.SaveMedia(ctx, settings.ProjectID, header.Filename, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("media uploaded",
		"project_id", settings.ProjectID,
		"file", header.Filename,
		"type", detected.String(),
		"size", len(data),
	)
	writeJSON(w, http.StatusCreated, map[string]string{"url": fileURL})
}

// invalidate drops the project's cached pages after a mutation.
func (b *Blog) invalidate(ctx context.Context, entityType, entityID, action string) {
	if b.pageCache != nil {
		b.pageCache.InvalidateProject(ctx, b.projectID)
	}
	if b.cacheLog != nil {
		b.cacheLog.Log(b.projectID, entityType, entityID, action)
	}
}

// --- Request parameters ---

// pageParam returns the 1-based page from ?page=, defaulting to 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// archiveParams parses the {year}, {month}, and {day} route segments.
// Month and day are optional; a day needs a month.
func archiveParams(r *http.Request) (year, month, day int, ok bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, 0, false
	}
	if raw := chi.URLParam(r, "month"); raw != "" {
		month, err = strconv.Atoi(raw)
		if err != nil || month < 1 || month > 12 {
			return 0, 0, 0, false
		}
	}
	if raw := chi.URLParam(r, "day"); raw != "" {
		day, err = strconv.Atoi(raw)
		if err != nil || month == 0 || day < 1 || day > 31 {
			return 0, 0, 0, false
		}
	}
	return year, month, day, true
}

func archiveLabel(year, month, day int) string {
	switch {
	case day > 0:
		return fmt.Sprintf("%04d/%02d/%02d", year, month, day)
	case month > 0:
		return fmt.Sprintf("%04d/%02d", year, month)
	default:
		return fmt.Sprintf("%04d", year)
	}
}
