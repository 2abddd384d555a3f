// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"quillpress/internal/models"
)

// CommentInput is a comment as submitted by a reader.
type CommentInput struct {
	PostID    string `validate:"required"`
	Name      string `validate:"required,max=100"`
	Email     string `validate:"required,email,max=254"`
	Website   string `validate:"max=500"`
	Content   string `validate:"required,max=10000"`
	IP        string
	UserAgent string
}

// AddComment validates a submission, attaches it to its post, and saves
// the post. The comment starts approved unless the project moderates.
func (sc *Scope) AddComment(ctx context.Context, in CommentInput) (*models.Comment, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Content = strings.TrimSpace(in.Content)
	if err := sc.svc.validateStruct(in); err != nil {
		return nil, err
	}

	settings, err := sc.Settings(ctx)
	if err != nil {
		return nil, err
	}

	now := sc.svc.now()
	comment := models.Comment{
		ID:         uuid.NewString(),
		Author:     in.Name,
		Email:      in.Email,
		Website:    NormalizeWebsite(in.Website),
		IP:         in.IP,
		UserAgent:  in.UserAgent,
		Content:    EncodeCommentContent(in.Content),
		IsApproved: !settings.ModerateComments,
		IsAdmin:    sc.owner,
		PubDate:    now,
	}

	load := func(ctx context.Context) (*models.Post, error) {
		return sc.GetPost(ctx, in.PostID)
	}
	err = sc.svc.updatePost(ctx, settings, load, func(post *models.Post) error {
		if !sc.owner && !CommentsOpen(post, settings.DaysToComment, now) {
			return ErrCommentsClosed
		}
		post.Comments = append(post.Comments, comment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ApproveComment marks a comment as approved. Only owners may approve.
func (sc *Scope) ApproveComment(ctx context.Context, postID, commentID string) error {
	return sc.mutateComment(ctx, postID, commentID, func(post *models.Post, i int) {
		post.Comments[i].IsApproved = true
	})
}

// DeleteComment removes a comment from its post. Only owners may delete.
func (sc *Scope) DeleteComment(ctx context.Context, postID, commentID string) error {
	return sc.mutateComment(ctx, postID, commentID, func(post *models.Post, i int) {
		post.Comments = slices.Delete(post.Comments, i, i+1)
	})
}

func (sc *Scope) mutateComment(ctx context.Context, postID, commentID string, fn func(*models.Post, int)) error {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return err
	}
	if !sc.owner {
		return ErrForbidden
	}

	load := func(ctx context.Context) (*models.Post, error) {
		return sc.svc.posts.GetPost(ctx, settings.ProjectID, postID)
	}
	return sc.svc.updatePost(ctx, settings, load, func(post *models.Post) error {
		i := post.FindComment(commentID)
		if i < 0 {
			return ErrNotFound
		}
		fn(post, i)
		return nil
	})
}

// updatePost loads a post, applies a change, and saves it. When another
// request saved the post in between, the change is applied again to a
// fresh copy, up to maxUpdateAttempts times.
func (s *Service) updatePost(ctx context.Context, settings *models.ProjectSettings, load func(context.Context) (*models.Post, error), apply func(*models.Post) error) error {
	for attempt := 1; ; attempt++ {
		post, err := load(ctx)
		if err != nil {
			return err
		}
		if post == nil {
			return ErrNotFound
		}
		if err := apply(post); err != nil {
			return err
		}

		err = s.save(ctx, settings, post, SaveOptions{})
		if !errors.Is(err, ErrStalePost) || attempt == maxUpdateAttempts {
			return err
		}
		slog.Debug("post changed during update, retrying",
			"project_id", settings.ProjectID,
			"post_id", post.ID,
			"attempt", attempt,
		)
	}
}

// CommentsAreOpen reports whether the viewer may comment on post.
// Owners always can.
func (sc *Scope) CommentsAreOpen(ctx context.Context, post *models.Post) (bool, error) {
	settings, err := sc.Settings(ctx)
	if err != nil {
		return false, err
	}
	if sc.owner {
		return true, nil
	}
	return CommentsOpen(post, settings.DaysToComment, sc.svc.now()), nil
}

// CommentsOpen reports whether a post published at post.PubDate still
// accepts comments: pubDate > now - daysToComment.
func CommentsOpen(post *models.Post, daysToComment int, now time.Time) bool {
	return post.PubDate.After(now.AddDate(0, 0, -daysToComment))
}

// NormalizeWebsite turns a commenter's website into an absolute http(s)
// URL, or "" when it cannot be made into one.
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// EncodeCommentContent escapes comment text for HTML and turns line
// breaks into <br /> tags.
func EncodeCommentContent(raw string) string {
	escaped := html.EscapeString(strings.TrimSpace(raw))
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br />")
}

// validateStruct runs struct tag validation and reports the first
// failing field as a ValidationError.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid("input", err.Error())
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "email":
		return invalid(field, "must be a valid email address")
	case "max":
		return invalid(field, "must be at most "+fe.Param()+" characters")
	default:
		return invalid(field, "is invalid")
	}
}
