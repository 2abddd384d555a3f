// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"quillpress/internal/cache"
	"quillpress/internal/database"
	"quillpress/internal/middleware"
	"quillpress/internal/models"
	"quillpress/internal/session"
	"quillpress/internal/storage"
	"quillpress/internal/store"
)

// integrationProject is the project the integration tests create and drop.
const integrationProject = "handlers-test"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "quillpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "quillpress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Clean up test session and cache keys.
		for _, pattern := range []string{"quillpress:session:*", "quillpress:editor-sessions:*", "page:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB         *sql.DB
	Valkey     *redis.Client
	Sessions   *session.Store
	Projects   *store.ProjectStore
	UserStore  *store.UserStore
	MediaStore *store.MediaStore
	CacheLog   *store.CacheLogStore
	PageCache  *cache.PageCache
	Objects    *storage.Local
	Admin      *Admin
	Auth       *Auth
}

// newTestEnv creates a complete test environment with its own project.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	projects := store.NewProjectStore(db, integrationProject)
	if err := projects.Save(t.Context(), models.NewProjectSettings(integrationProject)); err != nil {
		t.Fatalf("save project: %v", err)
	}
	t.Cleanup(func() { cleanProject(db, integrationProject) })

	objects, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	sessions := session.NewStore(vk, false)
	userStore := store.NewUserStore(db)
	mediaStore := store.NewMediaStore(db)
	cacheLog := store.NewCacheLogStore(db)
	pageCache := cache.NewPageCache(vk, time.Minute)

	return &testEnv{
		DB:         db,
		Valkey:     vk,
		Sessions:   sessions,
		Projects:   projects,
		UserStore:  userStore,
		MediaStore: mediaStore,
		CacheLog:   cacheLog,
		PageCache:  pageCache,
		Objects:    objects,
		Admin:      NewAdmin(integrationProject, projects, mediaStore, userStore, cacheLog, objects, pageCache).WithEditorSessions(sessions),
		Auth:       NewAuth(sessions, userStore),
	}
}

// createEditor adds an editor of the test project and removes it when the
// test finishes.
func (e *testEnv) createEditor(t *testing.T, email, password string) *models.User {
	t.Helper()
	e.DB.Exec("DELETE FROM users WHERE email = $1", email)
	u, err := e.UserStore.Create(email, password, "Test Editor", integrationProject)
	if err != nil {
		t.Fatalf("create editor: %v", err)
	}
	t.Cleanup(func() { e.DB.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// cleanProject removes a project and everything scoped to it.
func cleanProject(db *sql.DB, id string) {
	db.Exec("DELETE FROM users WHERE project_id = $1", id)
	db.Exec("DELETE FROM media WHERE project_id = $1", id)
	db.Exec("DELETE FROM cache_invalidation_log WHERE project_id = $1", id)
	db.Exec("DELETE FROM projects WHERE id = $1", id)
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// testSession creates a session.Data for testing.
func testSession(userID uuid.UUID, email string, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test User",
		ProjectID:   integrationProject,
		TwoFADone:   twoFADone,
	}
}

// withChiURLParamAndSession adds both chi URL param and session to a request.
func withChiURLParamAndSession(r *http.Request, key, value string, sess *session.Data) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.SessionKey, sess)
	return r.WithContext(ctx)
}
