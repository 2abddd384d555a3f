// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"time"

	"quillpress/internal/models"
)

// PostRepository persists posts and answers the listing queries. Every
// method is scoped by project. Lookups return (nil, nil) when nothing
// matches. Save must be atomic for the post and everything it owns.
//
// Year, month, and day arguments of zero mean "any".
type PostRepository interface {
	GetPost(ctx context.Context, projectID, postID string) (*models.Post, error)
	GetPostBySlug(ctx context.Context, projectID, slug string) (*models.Post, error)
	GetVisiblePosts(ctx context.Context, projectID, category string, userIsOwner bool, pageNumber, pageSize int) ([]models.Post, error)
	GetPosts(ctx context.Context, projectID string, year, month, day, pageNumber, pageSize int, userIsOwner bool) ([]models.Post, error)
	GetRecentPosts(ctx context.Context, projectID string, numberToGet int) ([]models.Post, error)
	GetCategories(ctx context.Context, projectID string, userIsOwner bool) (map[string]int, error)
	GetArchives(ctx context.Context, projectID string, userIsOwner bool) (map[string]int, error)
	GetCount(ctx context.Context, projectID, category string, userIsOwner bool) (int, error)
	GetCountByDate(ctx context.Context, projectID string, year, month, day int, userIsOwner bool) (int, error)
	SlugIsAvailable(ctx context.Context, projectID, slug string) (bool, error)
	Save(ctx context.Context, projectID string, post *models.Post, isNew bool) error
	Delete(ctx context.Context, projectID, postID string) (bool, error)

	// HandlePubDateAboutToChange runs before a post's publish date is
	// replaced, while post.PubDate still holds the old value.
	HandlePubDateAboutToChange(ctx context.Context, post *models.Post, newPubDate time.Time) error
	// PubDateHistory lists the changes recorded by HandlePubDateAboutToChange.
	PubDateHistory(ctx context.Context, projectID, postID string) ([]models.PubDateChange, error)
}

// SettingsProvider resolves per-project configuration. Both methods
// return (nil, nil) when the project does not exist.
type SettingsProvider interface {
	GetCurrentProjectSettings(ctx context.Context) (*models.ProjectSettings, error)
	GetProjectSettings(ctx context.Context, projectID string) (*models.ProjectSettings, error)
}

// MediaProcessor materializes media referenced by post content.
type MediaProcessor interface {
	// ConvertBase64EmbeddedImagesToFilesWithURLs stores every inline
	// data-URI image under mediaPath and points its src at the stored file.
	ConvertBase64EmbeddedImagesToFilesWithURLs(ctx context.Context, mediaPath string, post *models.Post) error
	// SaveMedia stores a file and returns its public URL.
	SaveMedia(ctx context.Context, mediaPath, fileName string, data []byte) (string, error)
}

// nopMedia leaves content untouched. Used when no processor is configured.
type nopMedia struct{}

func (nopMedia) ConvertBase64EmbeddedImagesToFilesWithURLs(context.Context, string, *models.Post) error {
	return nil
}

func (nopMedia) SaveMedia(_ context.Context, mediaPath, fileName string, _ []byte) (string, error) {
	return mediaPath + fileName, nil
}
