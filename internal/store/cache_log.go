// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// cache_log.go records page cache invalidation events in the database for
// audit and debugging purposes. Each entry captures what was invalidated,
// when, and in which project.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// CacheLogStore handles cache invalidation log operations.
type CacheLogStore struct {
	db *sql.DB
}

// NewCacheLogStore creates a new CacheLogStore.
func NewCacheLogStore(db *sql.DB) *CacheLogStore {
	return &CacheLogStore{db: db}
}

// Log records a cache invalidation event.
func (s *CacheLogStore) Log(projectID, entityType, entityID, action string) {
	_, err := s.db.Exec(`
		INSERT INTO cache_invalidation_log (project_id, entity_type, entity_id, action)
		VALUES ($1, $2, $3, $4)
	`, projectID, entityType, entityID, action)
	if err != nil {
		// Best-effort.
		slog.Warn("failed to log cache invalidation",
			"project_id", projectID,
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
		return
	}
	slog.Debug("cache invalidation logged",
		"project_id", projectID,
		"entity_type", entityType,
		"entity_id", entityID,
		"action", action,
	)
}

// RecentEntries returns a project's most recent cache invalidation events,
// limited to the specified count.
func (s *CacheLogStore) RecentEntries(projectID string, limit int) ([]CacheLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, entity_type, entity_id, action, invalidated_at
		FROM cache_invalidation_log
		WHERE project_id = $1
		ORDER BY invalidated_at DESC, id DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query cache log: %w", err)
	}
	defer rows.Close()

	var entries []CacheLogEntry
	for rows.Next() {
		var e CacheLogEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.EntityType, &e.EntityID, &e.Action, &e.InvalidatedAt); err != nil {
			return nil, fmt.Errorf("scan cache log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CacheLogEntry represents a single cache invalidation event.
type CacheLogEntry struct {
	ID            int64
	ProjectID     string
	EntityType    string
	EntityID      string
	Action        string
	InvalidatedAt time.Time
}
