// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"quillpress/internal/models"
)

// mediaAttrs lists the element attributes that may point at media files.
var mediaAttrs = []struct{ selector, attr string }{
	{"img", "src"},
	{"a", "href"},
	{"source", "src"},
}

var commentPolicy = bluemonday.UGCPolicy()

func init() {
	commentPolicy.RequireNoFollowOnLinks(true)
	commentPolicy.AddTargetBlankToFullyQualifiedLinks(true)
}

// RelativizeMediaURLs rewrites media references that start with
// absoluteBase so they start with virtualPath instead. Content that does
// not mention absoluteBase is returned unchanged.
func RelativizeMediaURLs(content, absoluteBase, virtualPath string) string {
	if absoluteBase == "" || !strings.Contains(content, absoluteBase) {
		return content
	}
	return rewriteMediaAttrs(content, func(v string) (string, bool) {
		if !strings.HasPrefix(v, absoluteBase) {
			return "", false
		}
		return virtualPath + strings.TrimPrefix(v[len(absoluteBase):], "/"), true
	})
}

// FilterContent prepares stored post content for display. When the
// project has a CDN configured, relative media URLs are pointed at it.
func FilterContent(settings *models.ProjectSettings, content string) string {
	if settings.CDNURL == "" {
		return content
	}
	mediaPath := settings.MediaPath()
	if !strings.Contains(content, mediaPath) {
		return content
	}
	cdn := strings.TrimRight(settings.CDNURL, "/")
	return rewriteMediaAttrs(content, func(v string) (string, bool) {
		if !strings.HasPrefix(v, mediaPath) {
			return "", false
		}
		return cdn + v, true
	})
}

// FilterComment sanitizes comment HTML for display. Links get
// rel="nofollow" so comment spam earns no ranking.
func FilterComment(content string) string {
	return commentPolicy.Sanitize(content)
}

// rewriteMediaAttrs applies fn to every media attribute in an HTML
// fragment and returns the re-serialized fragment.
func rewriteMediaAttrs(content string, fn func(string) (string, bool)) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}

	changed := false
	for _, m := range mediaAttrs {
		doc.Find(m.selector).Each(func(_ int, s *goquery.Selection) {
			v, ok := s.Attr(m.attr)
			if !ok {
				return
			}
			if nv, ok := fn(v); ok {
				s.SetAttr(m.attr, nv)
				changed = true
			}
		})
	}
	if !changed {
		return content
	}

	// goquery wraps fragments in html/body; only the body content is wanted.
	out, err := doc.Find("body").Html()
	if err != nil {
		return content
	}
	return out
}
