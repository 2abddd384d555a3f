// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package memstore

import (
	"context"
	"sync"

	"quillpress/internal/models"
)

// Projects is an in-memory settings provider with a fixed current project.
type Projects struct {
	mu        sync.RWMutex
	projects  map[string]models.ProjectSettings
	currentID string

	// Err, when set, is returned by every method.
	Err error

	lookups int
}

// NewProjects creates a provider whose current project is currentID.
func NewProjects(currentID string) *Projects {
	return &Projects{
		projects:  make(map[string]models.ProjectSettings),
		currentID: currentID,
	}
}

// Put adds or replaces a project's settings.
func (p *Projects) Put(settings models.ProjectSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projects[settings.ProjectID] = settings
}

// GetCurrentProjectSettings returns the current project, or nil.
func (p *Projects) GetCurrentProjectSettings(ctx context.Context) (*models.ProjectSettings, error) {
	return p.GetProjectSettings(ctx, p.currentID)
}

// GetProjectSettings returns a copy of the project's settings, or nil.
func (p *Projects) GetProjectSettings(_ context.Context, projectID string) (*models.ProjectSettings, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lookups++
	s, ok := p.projects[projectID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Lookups returns how many times settings were resolved.
func (p *Projects) Lookups() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lookups
}
