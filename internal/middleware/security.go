// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"strings"
)

// MediaPathPrefix is where uploaded files are served from.
const MediaPathPrefix = "/media/"

var baseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "interest-cohort=()"},
}

// mediaPolicy lets a browser display an uploaded file but never run it
// in the blog's origin, whatever its name claims.
const mediaPolicy = "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'; sandbox"

// SecureHeaders sets the response headers every quillpress reply carries.
// Files under MediaPathPrefix are additionally sandboxed, since their
// bytes come from editors and embedded post content.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range baseHeaders {
			h.Set(kv[0], kv[1])
		}
		if strings.HasPrefix(r.URL.Path, MediaPathPrefix) {
			h.Set("Content-Security-Policy", mediaPolicy)
			h.Set("Cross-Origin-Resource-Policy", "same-site")
		}
		next.ServeHTTP(w, r)
	})
}
