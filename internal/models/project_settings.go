// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// Default values applied to newly created projects.
const (
	DefaultPostsPerPage          = 10
	DefaultDaysToComment         = 60
	DefaultTimeZoneID            = "America/New_York"
	DefaultPubDateFormat         = "January 2. 2006"
	DefaultLocalMediaVirtualPath = "/media/images/"
	DefaultGravatarSize          = 50
)

// ProjectSettings is the per-tenant blog configuration. It is read-only
// for the lifetime of a request.
type ProjectSettings struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`

	PostsPerPage     int  `json:"posts_per_page"`
	DaysToComment    int  `json:"days_to_comment"`
	ModerateComments bool `json:"moderate_comments"`
	GravatarSize     int  `json:"gravatar_size"`

	// TimeZoneID is an IANA zone name, e.g. "Europe/Bucharest".
	TimeZoneID string `json:"time_zone_id"`
	// PubDateFormat is a Go time layout.
	PubDateFormat            string `json:"pub_date_format"`
	IncludePubDateInPostURLs bool   `json:"include_pub_date_in_post_urls"`

	LocalMediaVirtualPath string `json:"local_media_virtual_path"`
	CDNURL                string `json:"cdn_url"`

	ShowRecentPostsOnDefaultPage bool `json:"show_recent_posts_on_default_page"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProjectSettings returns settings for the given project populated with defaults.
func NewProjectSettings(projectID string) *ProjectSettings {
	return &ProjectSettings{
		ProjectID:                projectID,
		PostsPerPage:             DefaultPostsPerPage,
		DaysToComment:            DefaultDaysToComment,
		ModerateComments:         true,
		GravatarSize:             DefaultGravatarSize,
		TimeZoneID:               DefaultTimeZoneID,
		PubDateFormat:            DefaultPubDateFormat,
		IncludePubDateInPostURLs: true,
		LocalMediaVirtualPath:    DefaultLocalMediaVirtualPath,
	}
}

// PageSize returns PostsPerPage, falling back to the default for unset values.
func (s *ProjectSettings) PageSize() int {
	if s.PostsPerPage <= 0 {
		return DefaultPostsPerPage
	}
	return s.PostsPerPage
}

// MediaPath returns the virtual media path, always ending in a slash.
func (s *ProjectSettings) MediaPath() string {
	p := s.LocalMediaVirtualPath
	if p == "" {
		return DefaultLocalMediaVirtualPath
	}
	if p[len(p)-1] != '/' {
		p += "/"
	}
	return p
}
