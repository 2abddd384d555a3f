// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package memstore provides in-memory post and project stores. They back
// tests and single-process development runs without PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"quillpress/internal/models"
)

// Posts is a mutex-guarded post repository. Stored posts are copied on
// the way in and out so callers never share state with the store.
type Posts struct {
	mu    sync.RWMutex
	posts map[string]map[string]*models.Post // project -> id -> post

	// Now is the clock used for visibility checks.
	Now func() time.Time
	// Err, when set, is returned by every method.
	Err error

	changes []models.PubDateChange
	saves   int
}

// NewPosts creates an empty post store.
func NewPosts() *Posts {
	return &Posts{
		posts: make(map[string]map[string]*models.Post),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetPost returns a copy of the post, or nil if it does not exist.
func (m *Posts) GetPost(_ context.Context, projectID, postID string) (*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[projectID][postID]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

// GetPostBySlug returns a copy of the post with the slug, or nil.
func (m *Posts) GetPostBySlug(_ context.Context, projectID, slug string) (*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.posts[projectID] {
		if p.Slug == slug {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

// GetVisiblePosts returns one page of posts, newest first.
func (m *Posts) GetVisiblePosts(_ context.Context, projectID, category string, userIsOwner bool, pageNumber, pageSize int) ([]models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	matched := m.filter(projectID, userIsOwner, func(p *models.Post) bool {
		return category == "" || hasCategory(p, category)
	})
	return paginate(matched, pageNumber, pageSize), nil
}

// GetPosts returns one page of the date archive.
func (m *Posts) GetPosts(_ context.Context, projectID string, year, month, day, pageNumber, pageSize int, userIsOwner bool) ([]models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	matched := m.filter(projectID, userIsOwner, func(p *models.Post) bool {
		return onDate(p, year, month, day)
	})
	return paginate(matched, pageNumber, pageSize), nil
}

// GetRecentPosts returns the newest visible posts.
func (m *Posts) GetRecentPosts(_ context.Context, projectID string, numberToGet int) ([]models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	matched := m.filter(projectID, false, nil)
	if len(matched) > numberToGet {
		matched = matched[:numberToGet]
	}
	return matched, nil
}

// GetCategories counts posts per category.
func (m *Posts) GetCategories(_ context.Context, projectID string, userIsOwner bool) (map[string]int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	counts := make(map[string]int)
	for _, p := range m.filter(projectID, userIsOwner, nil) {
		for _, c := range p.Categories {
			counts[c]++
		}
	}
	return counts, nil
}

// GetArchives counts posts per "yyyy/mm" month.
func (m *Posts) GetArchives(_ context.Context, projectID string, userIsOwner bool) (map[string]int, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	counts := make(map[string]int)
	for _, p := range m.filter(projectID, userIsOwner, nil) {
		if !p.HasPubDate() {
			continue
		}
		d := p.PubDate.UTC()
		counts[fmt.Sprintf("%04d/%02d", d.Year(), int(d.Month()))]++
	}
	return counts, nil
}

// GetCount counts the posts GetVisiblePosts pages through.
func (m *Posts) GetCount(ctx context.Context, projectID, category string, userIsOwner bool) (int, error) {
	posts, err := m.GetVisiblePosts(ctx, projectID, category, userIsOwner, 1, 0)
	return len(posts), err
}

// GetCountByDate counts the posts GetPosts pages through.
func (m *Posts) GetCountByDate(ctx context.Context, projectID string, year, month, day int, userIsOwner bool) (int, error) {
	posts, err := m.GetPosts(ctx, projectID, year, month, day, 1, 0, userIsOwner)
	return len(posts), err
}

// SlugIsAvailable reports whether no post in the project uses slug.
func (m *Posts) SlugIsAvailable(ctx context.Context, projectID, slug string) (bool, error) {
	p, err := m.GetPostBySlug(ctx, projectID, slug)
	if err != nil {
		return false, err
	}
	return p == nil, nil
}

// Save stores a copy of the post. Updates of a post that changed since it
// was loaded fail with models.ErrStalePost.
func (m *Posts) Save(ctx context.Context, projectID string, post *models.Post, isNew bool) error {
	if m.Err != nil {
		return m.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.posts[projectID] == nil {
		m.posts[projectID] = make(map[string]*models.Post)
	}
	existing, exists := m.posts[projectID][post.ID]
	switch {
	case isNew && exists:
		return fmt.Errorf("save post: duplicate id %q", post.ID)
	case isNew:
		post.Version = 1
	case !exists:
		return fmt.Errorf("update post %s: not found", post.ID)
	case existing.Version != post.Version:
		return models.ErrStalePost
	default:
		post.Version++
	}
	m.posts[projectID][post.ID] = clonePost(post)
	m.saves++
	return nil
}

// Delete removes a post. It reports whether the post existed.
func (m *Posts) Delete(_ context.Context, projectID, postID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[projectID][postID]; !ok {
		return false, nil
	}
	delete(m.posts[projectID], postID)
	return true, nil
}

// HandlePubDateAboutToChange records the change for inspection.
func (m *Posts) HandlePubDateAboutToChange(_ context.Context, post *models.Post, newPubDate time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.changes = append(m.changes, models.PubDateChange{
		PostID:    post.ID,
		OldDate:   post.PubDate,
		NewDate:   newPubDate,
		ChangedAt: m.Now(),
	})
	return nil
}

// PubDateHistory returns the recorded changes of one post, oldest first.
// Projects are not tracked per change; post IDs are unique.
func (m *Posts) PubDateHistory(_ context.Context, _, postID string) ([]models.PubDateChange, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PubDateChange
	for _, c := range m.changes {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

// PubDateChanges returns all recorded publish date changes.
func (m *Posts) PubDateChanges() []models.PubDateChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.changes)
}

// Saves returns how many times Save succeeded.
func (m *Posts) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// filter returns copies of the project's posts that the viewer may see
// and keep accepts, newest first. Undated posts sort last.
func (m *Posts) filter(projectID string, userIsOwner bool, keep func(*models.Post) bool) []models.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.Now()
	out := []models.Post{}
	for _, p := range m.posts[projectID] {
		if !userIsOwner && !p.IsVisibleAt(now) {
			continue
		}
		if keep != nil && !keep(p) {
			continue
		}
		out = append(out, *clonePost(p))
	}

	slices.SortFunc(out, func(a, b models.Post) int {
		if c := b.PubDate.Compare(a.PubDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// paginate returns the 1-based page. A pageSize of zero returns everything.
func paginate(posts []models.Post, pageNumber, pageSize int) []models.Post {
	if pageSize <= 0 {
		return posts
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	start := (pageNumber - 1) * pageSize
	if start >= len(posts) {
		return []models.Post{}
	}
	end := min(start+pageSize, len(posts))
	return posts[start:end]
}

func hasCategory(p *models.Post, category string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func onDate(p *models.Post, year, month, day int) bool {
	if !p.HasPubDate() {
		return year == 0 && month == 0 && day == 0
	}
	d := p.PubDate.UTC()
	if year > 0 && d.Year() != year {
		return false
	}
	if month > 0 && int(d.Month()) != month {
		return false
	}
	if day > 0 && d.Day() != day {
		return false
	}
	return true
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Categories = slices.Clone(p.Categories)
	c.Comments = slices.Clone(p.Comments)
	return &c
}
