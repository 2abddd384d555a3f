// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"quillpress/internal/models"
)

// ProjectStore manages per-project blog settings in the database. It
// implements blog.SettingsProvider; the current project is fixed at
// construction from configuration.
type ProjectStore struct {
	db        *sql.DB
	currentID string
}

// NewProjectStore returns a new ProjectStore whose current project is currentID.
func NewProjectStore(db *sql.DB, currentID string) *ProjectStore {
	return &ProjectStore{db: db, currentID: currentID}
}

// projectColumns lists the columns selected in project queries.
const projectColumns = `id, title, description, image, posts_per_page, days_to_comment,
	moderate_comments, gravatar_size, time_zone_id, pub_date_format,
	include_pub_date_in_post_urls, local_media_virtual_path, cdn_url,
	show_recent_posts_on_default_page, created_at, updated_at`

func scanProject(scanner interface{ Scan(...any) error }) (*models.ProjectSettings, error) {
	var s models.ProjectSettings
	err := scanner.Scan(
		&s.ProjectID, &s.Title, &s.Description, &s.Image, &s.PostsPerPage, &s.DaysToComment,
		&s.ModerateComments, &s.GravatarSize, &s.TimeZoneID, &s.PubDateFormat,
		&s.IncludePubDateInPostURLs, &s.LocalMediaVirtualPath, &s.CDNURL,
		&s.ShowRecentPostsOnDefaultPage, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CurrentID returns the id of the project this instance serves.
func (s *ProjectStore) CurrentID() string {
	return s.currentID
}

// GetCurrentProjectSettings returns the settings of the configured project.
// Returns nil if the project does not exist.
func (s *ProjectStore) GetCurrentProjectSettings(ctx context.Context) (*models.ProjectSettings, error) {
	return s.GetProjectSettings(ctx, s.currentID)
}

// GetProjectSettings returns a project's settings. Returns nil if not found.
func (s *ProjectStore) GetProjectSettings(ctx context.Context, projectID string) (*models.ProjectSettings, error) {
	if projectID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	settings, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return settings, nil
}

// Save upserts a project's settings.
func (s *ProjectStore) Save(ctx context.Context, settings *models.ProjectSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, image, posts_per_page, days_to_comment,
			moderate_comments, gravatar_size, time_zone_id, pub_date_format,
			include_pub_date_in_post_urls, local_media_virtual_path, cdn_url,
			show_recent_posts_on_default_page)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			posts_per_page = EXCLUDED.posts_per_page,
			days_to_comment = EXCLUDED.days_to_comment,
			moderate_comments = EXCLUDED.moderate_comments,
			gravatar_size = EXCLUDED.gravatar_size,
			time_zone_id = EXCLUDED.time_zone_id,
			pub_date_format = EXCLUDED.pub_date_format,
			include_pub_date_in_post_urls = EXCLUDED.include_pub_date_in_post_urls,
			local_media_virtual_path = EXCLUDED.local_media_virtual_path,
			cdn_url = EXCLUDED.cdn_url,
			show_recent_posts_on_default_page = EXCLUDED.show_recent_posts_on_default_page,
			updated_at = NOW()`,
		settings.ProjectID, settings.Title, settings.Description, settings.Image,
		settings.PostsPerPage, settings.DaysToComment, settings.ModerateComments,
		settings.GravatarSize, settings.TimeZoneID, settings.PubDateFormat,
		settings.IncludePubDateInPostURLs, settings.LocalMediaVirtualPath, settings.CDNURL,
		settings.ShowRecentPostsOnDefaultPage,
	)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}
