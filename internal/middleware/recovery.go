// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns a handler panic into a logged stack trace and a JSON
// 500. If the handler had already started its response, the reply is left
// as is. http.ErrAbortHandler is passed through so net/http can drop the
// connection quietly.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}

			slog.Error("handler panicked",
				"panic", v,
				"method", r.Method,
				"path", r.URL.Path,
				"response_started", rec.status != 0,
				"stack", string(debug.Stack()),
			)
			if rec.status == 0 {
				writeError(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			}
		}()

		next.ServeHTTP(rec, r)
	})
}
