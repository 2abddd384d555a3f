// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"quillpress/internal/models"
	"quillpress/internal/slug"
)

// SaveOptions controls a save.
type SaveOptions struct {
	IsNew bool
	// Publish marks the post published. New posts, and posts that were
	// never dated, are stamped with the current time.
	Publish bool
	// BaseURL is the absolute site root the request arrived on. When set,
	// media URLs under it are rewritten to the relative media path.
	BaseURL string
}

// PostEdit is an in-place edit submitted by a project owner.
type PostEdit struct {
	ID              string
	Title           string
	Slug            string
	MetaDescription string
	Content         string
	// Categories is a comma separated list.
	Categories  string
	PubDate     string
	IsPublished bool
}

// SaveForProject runs the save pipeline for a post of the given project.
func (s *Service) SaveForProject(ctx context.Context, projectID string, post *models.Post, opts SaveOptions) error {
	settings, err := s.projects.GetProjectSettings(ctx, projectID)
	if err != nil {
		return err
	}
	if settings == nil {
		return ErrProjectNotFound
	}
	return s.save(ctx, settings, post, opts)
}

// Save runs the save pipeline for a post of the current project. Only
// owners may save.
func (sc *Scope) Save(ctx context.Context, post *models.Post, opts SaveOptions) error {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return err
	}
	if !sc.owner {
		return ErrForbidden
	}
	return sc.svc.save(ctx, settings, post, opts)
}

// SavePost applies an owner's edit to an existing post, or creates a new
// post when the ID is empty or unknown. It returns the saved post.
func (sc *Scope) SavePost(ctx context.Context, edit PostEdit, baseURL string) (*models.Post, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !sc.owner {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(edit.Title) == "" {
		return nil, invalid("title", "is required")
	}

	var post *models.Post
	if edit.ID != "" {
		post, err = sc.svc.posts.GetPost(ctx, settings.ProjectID, edit.ID)
		if err != nil {
			return nil, err
		}
	}

	isNew := post == nil
	if isNew {
		post = &models.Post{
			ProjectID: settings.ProjectID,
			Author:    sc.viewer.DisplayName,
		}
	}

	if requested := slug.Generate(edit.Slug); requested != "" && requested != post.Slug {
		if slugReserved(requested) {
			return nil, invalid("slug", "is reserved")
		}
		available, err := sc.svc.posts.SlugIsAvailable(ctx, settings.ProjectID, requested)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, ErrSlugConflict
		}
		post.Slug = requested
	}

	post.Title = strings.TrimSpace(edit.Title)
	post.MetaDescription = edit.MetaDescription
	post.Content = edit.Content
	post.Categories = SplitCategories(edit.Categories)
	post.IsPublished = edit.IsPublished

	if strings.TrimSpace(edit.PubDate) != "" {
		newDate, err := ParsePubDate(edit.PubDate, Location(settings.TimeZoneID))
		if err != nil {
			// Keep the current date rather than reject the edit.
			slog.Warn("unparseable publish date, keeping current",
				"post_id", post.ID,
				"pub_date", edit.PubDate,
				"error", err,
			)
		} else {
			if !isNew && !newDate.Equal(post.PubDate) {
				if err := sc.svc.posts.HandlePubDateAboutToChange(ctx, post, newDate); err != nil {
					return nil, err
				}
			}
			post.PubDate = newDate
		}
	}

	if err := sc.svc.save(ctx, settings, post, SaveOptions{IsNew: isNew, BaseURL: baseURL}); err != nil {
		return nil, err
	}
	return post, nil
}

// save is the shared pipeline: initialize new posts, make media URLs
// portable, extract inline images, stamp the publish date, persist.
func (s *Service) save(ctx context.Context, settings *models.ProjectSettings, post *models.Post, opts SaveOptions) error {
	if strings.TrimSpace(post.Title) == "" {
		return invalid("title", "is required")
	}
	post.ProjectID = settings.ProjectID

	if opts.IsNew {
		if err := s.initializeNewPost(ctx, settings.ProjectID, post); err != nil {
			return err
		}
	}
	if opts.Publish {
		post.IsPublished = true
		if opts.IsNew || !post.HasPubDate() {
			post.PubDate = s.now()
		}
	}

	mediaPath := settings.MediaPath()
	if opts.BaseURL != "" {
		absolute := strings.TrimRight(opts.BaseURL, "/") + mediaPath
		post.Content = RelativizeMediaURLs(post.Content, absolute, mediaPath)
	}

	if err := s.media.ConvertBase64EmbeddedImagesToFilesWithURLs(ctx, mediaPath, post); err != nil {
		return err
	}

	now := s.now()
	if !post.HasPubDate() && post.IsPublished {
		post.PubDate = now
	}
	post.LastModified = now

	return s.posts.Save(ctx, settings.ProjectID, post, opts.IsNew)
}

func (s *Service) initializeNewPost(ctx context.Context, projectID string, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Slug != "" {
		if slugReserved(post.Slug) {
			return invalid("slug", "is reserved")
		}
		return nil
	}
	return s.assignSlug(ctx, projectID, post)
}

// reservedSlugs are the path segments routed under /blog before the
// /{slug} pattern. A post with one of them as its slug could not be reached.
var reservedSlugs = map[string]bool{
	"new":      true,
	"admin":    true,
	"ajax":     true,
	"media":    true,
	"category": true,
	"archive":  true,
}

func slugReserved(s string) bool {
	return reservedSlugs[s]
}

// assignSlug derives a slug from the title and takes the first free
// candidate: "title", "title-2", "title-3", and so on.
func (s *Service) assignSlug(ctx context.Context, projectID string, post *models.Post) error {
	base := slug.Generate(post.Title)
	if base == "" {
		base = "post"
	}

	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := slug.WithSuffix(base, n)
		if slugReserved(candidate) {
			continue
		}
		available, err := s.posts.SlugIsAvailable(ctx, projectID, candidate)
		if err != nil {
			return err
		}
		if available {
			post.Slug = candidate
			return nil
		}
	}

	post.Slug = base + "-" + uuid.NewString()[:8]
	slog.Warn("slug suffixes exhausted, using random suffix",
		"project_id", projectID,
		"post_id", post.ID,
		"slug", post.Slug,
	)
	return nil
}

// SplitCategories parses a comma separated category list, trimming
// blanks and dropping duplicates while keeping the first-seen order.
func SplitCategories(raw string) []string {
	seen := make(map[string]bool)
	categories := []string{}
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		categories = append(categories, c)
	}
	return categories
}
