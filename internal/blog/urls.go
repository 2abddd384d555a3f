// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"fmt"
	"net/url"

	"quillpress/internal/models"
)

// BlogPath is the root of all blog URLs.
const BlogPath = "/blog"

// URLStyle is the canonical shape of post URLs for a project.
type URLStyle int

const (
	// URLStyleFlat addresses posts as /blog/{slug}.
	URLStyleFlat URLStyle = iota
	// URLStyleDated addresses posts as /blog/{yyyy}/{mm}/{dd}/{slug}.
	URLStyleDated
)

// StyleFor returns the canonical URL style of a project.
func StyleFor(settings *models.ProjectSettings) URLStyle {
	if settings.IncludePubDateInPostURLs {
		return URLStyleDated
	}
	return URLStyleFlat
}

// BlogURL returns the URL of the blog index.
func BlogURL() string {
	return BlogPath
}

// PostURL returns the canonical URL of a post. Dated URLs use the UTC
// publish date with zero-padded month and day.
func PostURL(settings *models.ProjectSettings, post *models.Post) string {
	escaped := url.PathEscape(post.Slug)
	if StyleFor(settings) == URLStyleDated && post.HasPubDate() {
		d := post.PubDate.UTC()
		return fmt.Sprintf("%s/%04d/%02d/%02d/%s", BlogPath, d.Year(), int(d.Month()), d.Day(), escaped)
	}
	return BlogPath + "/" + escaped
}

// CategoryURL returns the listing URL for a category.
func CategoryURL(category string) string {
	return BlogPath + "/category/" + url.PathEscape(category)
}

// CanonicalRedirect compares the path a post was requested on with its
// canonical URL. It returns the canonical URL and true when the request
// should be redirected.
func CanonicalRedirect(settings *models.ProjectSettings, post *models.Post, requestPath string) (string, bool) {
	canonical := PostURL(settings, post)
	if requestPath == canonical {
		return "", false
	}
	return canonical, true
}
