// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"strings"
	"time"
)

// ErrStalePost is returned by repositories when an update was based on an
// outdated copy of the post.
var ErrStalePost = errors.New("post was changed by another request")

// Post is a blog entry scoped to a single project. A post owns its
// comments; they are persisted together with it.
type Post struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Slug            string    `json:"slug"`
	MetaDescription string    `json:"meta_description"`
	Content         string    `json:"content"`
	PubDate         time.Time `json:"pub_date"`
	LastModified    time.Time `json:"last_modified"`
	IsPublished     bool      `json:"is_published"`
	Categories      []string  `json:"categories"`
	Comments        []Comment `json:"comments"`
	// Version counts saves. An update only succeeds against the version
	// it was loaded at.
	Version int `json:"-"`
}

// HasPubDate reports whether the post carries a real publish date. The
// zero time (year 1) marks a post that was never stamped.
func (p *Post) HasPubDate() bool {
	return !p.PubDate.IsZero()
}

// IsVisibleAt returns true if a non-owner may see the post at the given instant.
func (p *Post) IsVisibleAt(now time.Time) bool {
	return p.IsPublished && p.HasPubDate() && !p.PubDate.After(now)
}

// CategoryList returns the categories joined for display.
func (p *Post) CategoryList() string {
	return strings.Join(p.Categories, ", ")
}

// FindComment returns the index of the comment with the given ID, or -1.
func (p *Post) FindComment(id string) int {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

// ApprovedComments returns only the comments visible to the public.
func (p *Post) ApprovedComments() []Comment {
	approved := make([]Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		if c.IsApproved {
			approved = append(approved, c)
		}
	}
	return approved
}

// Comment is a reader submission attached to a post. Once created it is
// only ever approved or deleted.
type Comment struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	Email      string    `json:"email"`
	Website    string    `json:"website"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	Content    string    `json:"content"`
	IsApproved bool      `json:"is_approved"`
	IsAdmin    bool      `json:"is_admin"`
	PubDate    time.Time `json:"pub_date"`
}

// PubDateChange is one recorded move of a post's publish date.
type PubDateChange struct {
	PostID    string    `json:"postId"`
	OldDate   time.Time `json:"oldDate"`
	NewDate   time.Time `json:"newDate"`
	ChangedAt time.Time `json:"changedAt"`
}
