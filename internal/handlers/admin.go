// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"quillpress/internal/middleware"
	"quillpress/internal/models"
	"quillpress/internal/store"
)

// mediaPageSize is the number of media items per library page.
const mediaPageSize = 50

// ObjectDeleter removes stored media files. storage.Client and
// storage.Local implement it.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// EditorSessions ends an editor's live sessions. session.Store implements it.
type EditorSessions interface {
	DestroyEditor(ctx context.Context, userID uuid.UUID) (int, error)
}

// Admin groups the project administration endpoints available to the
// project's editors: settings, the media library, editor 2FA resets,
// and the cache invalidation log.
type Admin struct {
	projectID  string
	projects   *store.ProjectStore
	mediaStore *store.MediaStore
	userStore  *store.UserStore
	cacheLog   *store.CacheLogStore
	objects    ObjectDeleter
	pageCache  PageCache
	sessions   EditorSessions
	validate   *validator.Validate
}

// NewAdmin creates a new Admin handler group. objects and pageCache may be nil.
func NewAdmin(projectID string, projects *store.ProjectStore, mediaStore *store.MediaStore, userStore *store.UserStore, cacheLog *store.CacheLogStore, objects ObjectDeleter, pageCache PageCache) *Admin {
	return &Admin{
		projectID:  projectID,
		projects:   projects,
		mediaStore: mediaStore,
		userStore:  userStore,
		cacheLog:   cacheLog,
		objects:    objects,
		pageCache:  pageCache,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithEditorSessions makes 2FA resets sign the editor out everywhere.
func (a *Admin) WithEditorSessions(sessions EditorSessions) *Admin {
	a.sessions = sessions
	return a
}

// settingsRequest is the editable part of the project settings.
type settingsRequest struct {
	Title                        string `json:"title" validate:"max=200"`
	Description                  string `json:"description" validate:"max=1000"`
	Image                        string `json:"image" validate:"omitempty,url"`
	PostsPerPage                 int    `json:"postsPerPage" validate:"min=1,max=100"`
	DaysToComment                int    `json:"daysToComment" validate:"min=0,max=36500"`
	ModerateComments             bool   `json:"moderateComments"`
	GravatarSize                 int    `json:"gravatarSize" validate:"min=0,max=512"`
	TimeZoneID                   string `json:"timeZoneId" validate:"required,timezone"`
	PubDateFormat                string `json:"pubDateFormat" validate:"required,max=100"`
	IncludePubDateInPostURLs     bool   `json:"includePubDateInPostUrls"`
	LocalMediaVirtualPath        string `json:"localMediaVirtualPath" validate:"required,startswith=/,max=200"`
	CDNURL                       string `json:"cdnUrl" validate:"omitempty,url"`
	ShowRecentPostsOnDefaultPage bool   `json:"showRecentPostsOnDefaultPage"`
}

// Settings returns the current project settings.
func (a *Admin) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.projects.GetProjectSettings(r.Context(), a.projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if settings == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// SettingsUpdate replaces the editable project settings.
func (a *Admin) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	settings, err := a.projects.GetProjectSettings(ctx, a.projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if settings == nil {
		settings = models.NewProjectSettings(a.projectID)
	}

	settings.Title = req.Title
	settings.Description = req.Description
	settings.Image = req.Image
	settings.PostsPerPage = req.PostsPerPage
	settings.DaysToComment = req.DaysToComment
	settings.ModerateComments = req.ModerateComments
	settings.GravatarSize = req.GravatarSize
	settings.TimeZoneID = req.TimeZoneID
	settings.PubDateFormat = req.PubDateFormat
	settings.IncludePubDateInPostURLs = req.IncludePubDateInPostURLs
	settings.LocalMediaVirtualPath = req.LocalMediaVirtualPath
	settings.CDNURL = req.CDNURL
	settings.ShowRecentPostsOnDefaultPage = req.ShowRecentPostsOnDefaultPage

	if err := a.projects.Save(ctx, settings); err != nil {
		writeServiceError(w, r, err)
		return
	}

	// URL shape, dates, and media URLs may all change.
	a.invalidate(ctx, "settings", a.projectID, "update")
	writeJSON(w, http.StatusOK, settings)
}

// MediaLibrary lists the project's stored files, newest first.
func (a *Admin) MediaLibrary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageParam(r)

	items, err := a.mediaStore.List(ctx, a.projectID, mediaPageSize, (page-1)*mediaPageSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	total, err := a.mediaStore.Count(ctx, a.projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"media":      items,
		"page":       page,
		"totalItems": total,
		"totalPages": (total + mediaPageSize - 1) / mediaPageSize,
	})
}

// MediaDelete removes a media record and its stored file.
func (a *Admin) MediaDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	ctx := r.Context()
	item, err := a.mediaStore.FindByID(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if item == nil || item.ProjectID != a.projectID {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	if _, err := a.mediaStore.Delete(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	// The record is gone either way; a leftover file is only logged.
	if a.objects != nil {
		if err := a.objects.Delete(ctx, item.StorageKey); err != nil {
			slog.Warn("media file delete failed", "key", item.StorageKey, "error", err)
		}
	}

	a.invalidate(ctx, "media", id.String(), "delete")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Editors lists the users allowed to edit the project.
func (a *Admin) Editors(w http.ResponseWriter, r *http.Request) {
	users, err := a.userStore.ListByProject(a.projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"editors": users})
}

// EditorResetTwoFA clears another editor's 2FA so they enroll again on
// their next login.
func (a *Admin) EditorResetTwoFA(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	sess := middleware.SessionFromCtx(r.Context())
	if sess.UserID == id {
		writeError(w, http.StatusBadRequest, "you cannot reset your own two-factor authentication")
		return
	}

	user, err := a.userStore.FindByID(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if user == nil || !user.CanEdit(a.projectID) {
		writeError(w, http.StatusNotFound, "editor not found")
		return
	}

	if err := a.userStore.ResetTOTP(id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	ended := 0
	if a.sessions != nil {
		// The reset already happened; a Valkey hiccup only leaves old
		// sessions to expire on their own.
		if ended, err = a.sessions.DestroyEditor(r.Context(), id); err != nil {
			slog.Warn("ending editor sessions failed", "user_id", id, "error", err)
		}
	}

	slog.Info("editor 2fa reset", "user_id", id, "by", sess.UserID, "sessions_ended", ended)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CacheLog lists recent page cache invalidations.
func (a *Admin) CacheLog(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}

	entries, err := a.cacheLog.RecentEntries(a.projectID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     entries,
		"generatedAt": time.Now().UTC(),
	})
}

func (a *Admin) invalidate(ctx context.Context, entityType, entityID, action string) {
	if a.pageCache != nil {
		a.pageCache.InvalidateProject(ctx, a.projectID)
	}
	a.cacheLog.Log(a.projectID, entityType, entityID, action)
}
