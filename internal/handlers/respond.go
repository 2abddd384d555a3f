// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON HTTP surface of quillpress: the
// public blog, the owner's editing endpoints, project administration, and
// editor authentication.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"quillpress/internal/blog"
	"quillpress/internal/middleware"
)

// maxJSONBody caps JSON request bodies. Post content can carry embedded
// images, so it is generous.
const maxJSONBody = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps blog errors to HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *blog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, blog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, blog.ErrSlugConflict), errors.Is(err, blog.ErrStalePost):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, blog.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decodeJSON reads a JSON body into v. It writes a 400 response and
// returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

// viewerFor builds the blog viewer from the request session. Editors
// count as authenticated only after completing 2FA.
func viewerFor(r *http.Request) blog.Viewer {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		return blog.Viewer{}
	}
	return blog.Viewer{
		Authenticated: sess.TwoFADone,
		ProjectID:     sess.ProjectID,
		DisplayName:   sess.DisplayName,
	}
}

// requestBaseURL returns the absolute site root a request arrived on,
// preferring the configured one.
func requestBaseURL(configured string, r *http.Request) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
