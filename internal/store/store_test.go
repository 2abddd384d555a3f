// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"quillpress/internal/blog"
	"quillpress/internal/database"
	"quillpress/internal/models"
)

var (
	_ blog.PostRepository   = (*PostStore)(nil)
	_ blog.SettingsProvider = (*ProjectStore)(nil)
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "quillpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "quillpress")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := testDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	// Run migrations to ensure the schema is current.
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Downgrade goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testProject creates a project with default settings and removes it,
// along with its posts, when the test finishes.
func testProject(t *testing.T, db *sql.DB, id string) *models.ProjectSettings {
	t.Helper()
	settings := models.NewProjectSettings(id)
	settings.Title = "Test " + id
	if err := NewProjectStore(db, id).Save(t.Context(), settings); err != nil {
		t.Fatalf("save project: %v", err)
	}
	t.Cleanup(func() { cleanProject(t, db, id) })
	return settings
}

// cleanUsers removes test users by email pattern. Call in t.Cleanup().
func cleanUsers(t *testing.T, db *sql.DB, emails ...string) {
	t.Helper()
	for _, email := range emails {
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}

// cleanProject removes a project and everything scoped to it.
func cleanProject(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	db.Exec("DELETE FROM post_archive WHERE project_id = $1", id)
	db.Exec("DELETE FROM media WHERE project_id = $1", id)
	db.Exec("DELETE FROM cache_invalidation_log WHERE project_id = $1", id)
	db.Exec("DELETE FROM projects WHERE id = $1", id)
}
