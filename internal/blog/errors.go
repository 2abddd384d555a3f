// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package blog

import (
	"errors"
	"fmt"

	"quillpress/internal/models"
)

// Sentinel errors returned by the blog service. Anything else coming out
// of a service call is a storage error passed through from a collaborator.
var (
	ErrNotFound        = errors.New("not found")
	ErrProjectNotFound = fmt.Errorf("project %w", ErrNotFound)
	ErrSlugConflict    = errors.New("slug already in use")
	ErrStalePost       = models.ErrStalePost
	ErrForbidden       = errors.New("forbidden")
	ErrCommentsClosed  = fmt.Errorf("comments are closed: %w", ErrForbidden)
	ErrValidation      = errors.New("validation failed")
)

// ValidationError reports a single invalid input field. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets callers test for the validation kind without a type assertion.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
