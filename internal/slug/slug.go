// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from post titles.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// quotes are dropped without leaving a separator ("how's" → "hows").
	quotes = strings.NewReplacer("'", "", "’", "", `"`, "")
	// nonAlphanumeric matches runs of anything outside the slug alphabet.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

// Generate creates a URL-friendly slug from the given string. The output
// only contains [a-z0-9-], never starts or ends with a hyphen, and
// Generate(Generate(s)) == Generate(s).
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = stripDiacritics(result)
	result = quotes.Replace(result)
	result = nonAlphanumeric.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// WithSuffix returns the n-th candidate when a slug is already taken:
// the base itself for n <= 1, otherwise "base-n".
func WithSuffix(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// stripDiacritics folds accented latin letters to their ASCII base ("é" → "e").
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
