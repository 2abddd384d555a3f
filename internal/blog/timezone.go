// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	lru "github.com/hashicorp/golang-lru/v2"

	"quillpress/internal/models"
)

// locations caches resolved zones, including UTC fallbacks for unknown
// names, so tzdata is read once per zone.
var locations, _ = lru.New[string, *time.Location](128)

// Location returns the named IANA time zone, or UTC when the name is
// empty or unknown.
func Location(id string) *time.Location {
	id = strings.TrimSpace(id)
	if id == "" {
		return time.UTC
	}
	if loc, ok := locations.Get(id); ok {
		return loc
	}

	loc, err := time.LoadLocation(id)
	if err != nil {
		slog.Warn("unknown time zone, using UTC", "time_zone", id, "error", err)
		loc = time.UTC
	}
	locations.Add(id, loc)
	return loc
}

// FormatDate renders an instant in the project's zone and date layout.
func FormatDate(settings *models.ProjectSettings, t time.Time) string {
	layout := settings.PubDateFormat
	if layout == "" {
		layout = models.DefaultPubDateFormat
	}
	return t.In(Location(settings.TimeZoneID)).Format(layout)
}

// ParsePubDate reads a date typed by an editor. Strings without an
// explicit offset are interpreted in loc. The result is in UTC.
func ParsePubDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
