// Package router sets up all HTTP routes and middleware chains for
// QuillPress. Routes are grouped into public blog pages, account
// authentication, and editor-only endpoints with their own middleware.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quillpress/internal/handlers"
	"quillpress/internal/middleware"
)

// Options carries the router settings that do not belong to a handler.
type Options struct {
	// ProjectID is the project whose editors may use owner endpoints.
	ProjectID string
	// SecureCookies marks the CSRF cookie Secure.
	SecureCookies bool
	// CommentLimiter throttles anonymous comment posts. Nil disables it.
	CommentLimiter *middleware.RateLimiter
	// MediaDir, when set, is served under /media/ for locally stored files.
	MediaDir string
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(opts Options, sessions middleware.SessionGetter, blog *handlers.Blog, admin *handlers.Admin, auth *handlers.Auth) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(sessions))

	// Health check, no CSRF.
	r.Get("/health", healthHandler)

	if opts.MediaDir != "" {
		// Local storage keys start with "media/", so the URL path maps
		// straight onto the directory.
		r.Handle("/media/*", http.FileServer(http.Dir(opts.MediaDir)))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/blog", http.StatusFound)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(opts.SecureCookies))

		r.Route("/account", func(r chi.Router) {
			r.Post("/login", auth.Login)
			r.Post("/logout", auth.Logout)

			// 2FA requires a session but not completed 2FA.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/me", auth.Me)
				r.Post("/2fa/setup", auth.TwoFASetup)
				r.Post("/2fa/verify", auth.TwoFAVerify)
			})
		})

		r.Route("/blog", func(r chi.Router) {
			// Public pages. Owners see drafts through the same routes.
			r.Get("/", blog.Index)
			r.Get("/category/{category}", blog.Category)
			r.Get("/archive/{year}", blog.Archive)
			r.Get("/archive/{year}/{month}", blog.Archive)
			r.Get("/archive/{year}/{month}/{day}", blog.Archive)
			r.Get("/{slug}", blog.Post)
			r.Get("/{year}/{month}/{day}/{slug}", blog.Post)

			r.With(limit(opts.CommentLimiter)).Post("/ajax/comment", blog.AjaxComment)

			// Editors of this project with completed 2FA.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Use(middleware.Require2FA)
				r.Use(middleware.RequireProject(opts.ProjectID))

				r.Get("/new", blog.New)
				r.Post("/ajax/post", blog.AjaxPost)
				r.Post("/ajax/delete", blog.AjaxDelete)
				r.Post("/ajax/comment/approve", blog.ApproveComment)
				r.Post("/ajax/comment/delete", blog.DeleteComment)
				r.Post("/media", blog.UploadMedia)

				r.Route("/admin", func(r chi.Router) {
					r.Get("/settings", admin.Settings)
					r.Put("/settings", admin.SettingsUpdate)
					r.Get("/media", admin.MediaLibrary)
					r.Delete("/media/{id}", admin.MediaDelete)
					r.Get("/editors", admin.Editors)
					r.Post("/editors/{id}/reset-2fa", admin.EditorResetTwoFA)
					r.Get("/cache-log", admin.CacheLog)
					r.Get("/posts/{id}/history", blog.PostHistory)
				})
			})
		})
	})

	return r
}

// limit returns the limiter's middleware, or a pass-through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
