package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 120
	MaxBodyLength    = 1000
	MaxCommentLength = 500
)

// ErrInvalidDraft is returned (wrapped) when a draft fails validation.
var ErrInvalidDraft = errors.New("invalid draft")

// ConfessionDraft is what a user submits before the server assigns an id.
type ConfessionDraft struct {
	Title    string   `json:"title" binding:"required,max=120"`
	Body     string   `json:"body" binding:"required,max=1000"`
	Gender   Gender   `json:"gender" binding:"required"`
	Category Category `json:"category" binding:"required"`
}

// Validate trims the draft in place and checks it.
func (d *ConfessionDraft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Body = strings.TrimSpace(d.Body)
	switch {
	case d.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	case utf8.RuneCountInString(d.Title) > MaxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidDraft, MaxTitleLength)
	case d.Body == "":
		return fmt.Errorf("%w: body is required", ErrInvalidDraft)
	case utf8.RuneCountInString(d.Body) > MaxBodyLength:
		return fmt.Errorf("%w: body exceeds %d characters", ErrInvalidDraft, MaxBodyLength)
	case !d.Gender.Valid():
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidDraft, d.Gender)
	case !d.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidDraft, d.Category)
	}
	return nil
}

// CommentDraft is a comment before the server assigns an id.
type CommentDraft struct {
	Body   string `json:"body" binding:"required,max=500"`
	Gender Gender `json:"gender" binding:"required"`
}

// Validate trims the draft in place and checks it. GenderAI is only accepted
// when allowAI is set, which is reserved for the automated responder.
func (d *CommentDraft) Validate(allowAI bool) error {
	d.Body = strings.TrimSpace(d.Body)
	switch {
	case d.Body == "":
		return fmt.Errorf("%w: body is required", ErrInvalidDraft)
	case utf8.RuneCountInString(d.Body) > MaxCommentLength:
		return fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidDraft, MaxCommentLength)
	case d.Gender == GenderAI && !allowAI:
		return fmt.Errorf("%w: gender %q is reserved", ErrInvalidDraft, d.Gender)
	case !d.Gender.Known():
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidDraft, d.Gender)
	}
	return nil
}
