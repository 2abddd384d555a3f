package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with initial development data: the
// configured project with default settings, and an admin editor for it
// if no users exist. The admin will be prompted to set up 2FA on first
// login (totp_enabled = false).
func Seed(db *sql.DB, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("seed: project id is required")
	}

	// Column defaults carry the project settings defaults.
	res, err := db.Exec(`
		INSERT INTO projects (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, projectID, "My Blog")
	if err != nil {
		return fmt.Errorf("seed insert project: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("database seeded with default project", "project_id", projectID)
	}

	// Check if any users exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	// Hash the default admin password.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO users (email, password_hash, display_name, project_id, totp_enabled)
		VALUES ($1, $2, $3, $4, $5)
	`, "admin@quillpress.local", string(hash), "Admin", projectID, false)
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", "admin@quillpress.local",
		"password", "admin",
		"project_id", projectID,
	)

	return nil
}
