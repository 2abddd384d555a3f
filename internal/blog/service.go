// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package blog implements the blog workflows: listing and archive
// queries, the save pipeline for posts, and the comment lifecycle. It
// talks to storage, settings, and media only through the interfaces in
// repository.go.
package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"quillpress/internal/models"
	"quillpress/internal/slug"
)

// maxSlugAttempts bounds the uniqueness-suffix search for derived slugs.
const maxSlugAttempts = 100

// maxUpdateAttempts bounds how often a comment change is reapplied when
// the post keeps changing underneath it.
const maxUpdateAttempts = 5

// Service holds the blog collaborators. It keeps no per-request state and
// is safe for concurrent use; request state lives in a Scope.
type Service struct {
	posts    PostRepository
	projects SettingsProvider
	media    MediaProcessor
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a blog service. media may be nil, in which case
// embedded images are left in the content as-is.
func NewService(posts PostRepository, projects SettingsProvider, media MediaProcessor) *Service {
	if media == nil {
		media = nopMedia{}
	}
	return &Service{
		posts:    posts,
		projects: projects,
		media:    media,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Viewer describes the caller of an operation.
type Viewer struct {
	Authenticated bool
	// ProjectID is the project the viewer is allowed to edit, if any.
	ProjectID   string
	DisplayName string
}

// Scope carries the state of one logical operation: the current project
// settings and whether the viewer owns that project. Both are resolved
// on first use and reused for the rest of the operation. A Scope must
// not outlive its request or be shared between goroutines.
type Scope struct {
	svc      *Service
	viewer   Viewer
	settings *models.ProjectSettings
	owner    bool
}

// Scope starts a new operation scope for the given viewer.
func (s *Service) Scope(v Viewer) *Scope {
	return &Scope{svc: s, viewer: v}
}

// Settings returns the current project's settings, resolving them at most
// once per scope. ErrProjectNotFound is returned when no project is configured.
func (sc *Scope) Settings(ctx context.Context) (*models.ProjectSettings, error) {
	if sc.settings != nil {
		return sc.settings, nil
	}

	settings, err := sc.svc.projects.GetCurrentProjectSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrProjectNotFound
	}

	sc.settings = settings
	sc.owner = sc.viewer.Authenticated &&
		sc.viewer.ProjectID != "" &&
		sc.viewer.ProjectID == settings.ProjectID
	return settings, nil
}

// IsOwner reports whether the viewer may edit the current project.
func (sc *Scope) IsOwner(ctx context.Context) (bool, error) {
	if _, err := sc.Settings(ctx); err != nil {
		return false, err
	}
	return sc.owner, nil
}

// Viewer returns the viewer the scope was created for.
func (sc *Scope) Viewer() Viewer {
	return sc.viewer
}

// GetVisiblePosts returns one page of posts, optionally filtered by
// category. Non-owners only get published posts that are not future-dated.
func (sc *Scope) GetVisiblePosts(ctx context.Context, category string, pageNumber int) ([]models.Post, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return sc.svc.posts.GetVisiblePosts(ctx, settings.ProjectID, category, sc.owner,
		normalizePage(pageNumber), settings.PageSize())
}

// GetCount returns the number of posts GetVisiblePosts would page through.
func (sc *Scope) GetCount(ctx context.Context, category string) (int, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return sc.svc.posts.GetCount(ctx, settings.ProjectID, category, sc.owner)
}

// GetPosts returns one page of the date archive for the current project.
func (sc *Scope) GetPosts(ctx context.Context, year, month, day, pageNumber int) ([]models.Post, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return sc.svc.GetPosts(ctx, settings.ProjectID, year, month, day, pageNumber, settings.PageSize(), sc.owner)
}

// GetCountByDate counts the archive entries GetPosts pages through.
func (sc *Scope) GetCountByDate(ctx context.Context, year, month, day int) (int, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return sc.svc.GetCountByDate(ctx, settings.ProjectID, year, month, day, sc.owner)
}

// GetRecentPosts returns the newest published posts.
func (sc *Scope) GetRecentPosts(ctx context.Context, numberToGet int) ([]models.Post, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return sc.svc.GetRecentPostsFor(ctx, settings.ProjectID, numberToGet)
}

// GetCategories maps each category to its post count.
func (sc *Scope) GetCategories(ctx context.Context) (map[string]int, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return sc.svc.posts.GetCategories(ctx, settings.ProjectID, sc.owner)
}

// GetArchives maps each "yyyy/mm" month to its post count.
func (sc *Scope) GetArchives(ctx context.Context) (map[string]int, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return sc.svc.posts.GetArchives(ctx, settings.ProjectID, sc.owner)
}

// GetPost returns the post with the given ID, or nil when it does not
// exist or the viewer may not see it.
func (sc *Scope) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	post, err := sc.svc.posts.GetPost(ctx, settings.ProjectID, postID)
	if err != nil {
		return nil, err
	}
	return sc.visible(post), nil
}

// GetPostBySlug returns the post with the given slug, or nil when it does
// not exist or the viewer may not see it.
func (sc *Scope) GetPostBySlug(ctx context.Context, postSlug string) (*models.Post, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	post, err := sc.svc.posts.GetPostBySlug(ctx, settings.ProjectID, postSlug)
	if err != nil {
		return nil, err
	}
	return sc.visible(post), nil
}

// SlugIsAvailable reports whether no post in the current project uses slug.
func (sc *Scope) SlugIsAvailable(ctx context.Context, postSlug string) (bool, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return false, err
	}
	return sc.svc.SlugIsAvailable(ctx, settings.ProjectID, postSlug)
}

// ResolveMediaURL returns the virtual URL of a file in the media folder.
func (sc *Scope) ResolveMediaURL(ctx context.Context, fileName string) (string, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return "", err
	}
	return settings.MediaPath() + fileName, nil
}

// Delete removes a post from the current project. Only owners may delete.
func (sc *Scope) Delete(ctx context.Context, postID string) error {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return err
	}
	if !sc.owner {
		return ErrForbidden
	}
	deleted, err := sc.svc.posts.Delete(ctx, settings.ProjectID, postID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (sc *Scope) visible(post *models.Post) *models.Post {
	if post == nil || sc.owner || post.IsVisibleAt(sc.svc.now()) {
		return post
	}
	return nil
}

// GetPosts returns one page of a project's date archive. Year, month, and
// day of zero match any value.
func (s *Service) GetPosts(ctx context.Context, projectID string, year, month, day, pageNumber, pageSize int, userIsOwner bool) ([]models.Post, error) {
	if pageSize <= 0 {
		pageSize = models.DefaultPostsPerPage
	}
	return s.posts.GetPosts(ctx, projectID, year, month, day, normalizePage(pageNumber), pageSize, userIsOwner)
}

// GetCountByDate counts a project's archive entries for the given date.
func (s *Service) GetCountByDate(ctx context.Context, projectID string, year, month, day int, userIsOwner bool) (int, error) {
	return s.posts.GetCountByDate(ctx, projectID, year, month, day, userIsOwner)
}

// GetRecentPostsFor returns the newest published posts of a project.
func (s *Service) GetRecentPostsFor(ctx context.Context, projectID string, numberToGet int) ([]models.Post, error) {
	if numberToGet <= 0 {
		return []models.Post{}, nil
	}
	return s.posts.GetRecentPosts(ctx, projectID, numberToGet)
}

// GetCategoriesFor maps a project's categories to post counts.
func (s *Service) GetCategoriesFor(ctx context.Context, projectID string, userIsOwner bool) (map[string]int, error) {
	settings, err := s.projects.GetProjectSettings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrProjectNotFound
	}
	return s.posts.GetCategories(ctx, settings.ProjectID, userIsOwner)
}

// SlugIsAvailable reports whether no post in the project uses slug.
func (s *Service) SlugIsAvailable(ctx context.Context, projectID, postSlug string) (bool, error) {
	return s.posts.SlugIsAvailable(ctx, projectID, postSlug)
}

// CreateSlug derives a slug from a post title.
func (s *Service) CreateSlug(title string) string {
	return slug.Generate(title)
}

// SaveMedia stores a file in the project's media folder and returns its URL.
func (s *Service) SaveMedia(ctx context.Context, projectID, fileName string, data []byte) (string, error) {
	settings, err := s.projects.GetProjectSettings(ctx, projectID)
	if err != nil {
		return "", err
	}
	if settings == nil {
		return "", ErrProjectNotFound
	}
	if fileName == "" {
		return "", invalid("fileName", "is required")
	}
	url, err := s.media.SaveMedia(ctx, settings.MediaPath(), fileName, data)
	if err != nil {
		return "", fmt.Errorf("save media: %w", err)
	}
	return url, nil
}

// HandlePubDateChange runs the repository's pre-change hook for post.
func (s *Service) HandlePubDateChange(ctx context.Context, post *models.Post, newPubDate time.Time) error {
	return s.posts.HandlePubDateAboutToChange(ctx, post, newPubDate)
}

// PubDateHistory lists how an owner moved a post's publish date, so old
// dated links can be traced back to it.
func (sc *Scope) PubDateHistory(ctx context.Context, postID string) ([]models.PubDateChange, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !sc.owner {
		return nil, ErrForbidden
	}
	post, err := sc.svc.posts.GetPost(ctx, settings.ProjectID, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return sc.svc.posts.PubDateHistory(ctx, settings.ProjectID, postID)
}

func normalizePage(pageNumber int) int {
	if pageNumber < 1 {
		return 1
	}
	return pageNumber
}
