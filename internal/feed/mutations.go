package feed

import (
	"context"
	"fmt"

	"github.com/sujalbistaa/confessly/internal/models"
)

// Like adds one like locally, then asks the server to do the same. If the
// server call fails the local like is taken back and the error returned;
// there is no retry.
func (f *Feed) Like(ctx context.Context, id string) error {
	f.mu.Lock()
	if err := f.checkSession(); err != nil {
		f.mu.Unlock()
		return err
	}
	if !f.store.update(id, func(c *Confession) { c.Likes++ }) {
		f.mu.Unlock()
		return ErrNotFound
	}
	token := f.token
	f.changed()
	f.mu.Unlock()

	err := f.source.IncrementLike(ctx, id)
	if err == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.token == token {
		if f.store.update(id, func(c *Confession) { c.Likes-- }) {
			f.changed()
		}
	}
	f.notify(NoticeWrite, "like this confession", err)
	return fmt.Errorf("like %s: %w", id, err)
}

// PostConfession writes a confession and waits for the server before showing
// it: the server assigns the id every later operation needs. The confirmed
// entry is merged into the window and marked expanded before PostConfession
// returns, so callers can scroll to it; a post confirmed while the first page
// is loading waits for that page. If ctx ends first, the entry is marked
// expanded and queued to appear right after the page. A confession outside
// the active category is returned but not shown. On failure nothing changes
// locally.
func (f *Feed) PostConfession(ctx context.Context, draft models.ConfessionDraft) (Confession, error) {
	if err := draft.Validate(); err != nil {
		return Confession{}, err
	}

	raw, err := f.source.CreateConfession(ctx, draft)
	if err != nil {
		f.mu.Lock()
		f.notify(NoticeWrite, "post your confession", err)
		f.mu.Unlock()
		return Confession{}, fmt.Errorf("post confession: %w", err)
	}
	c, err := normalizeConfession(raw)
	if err != nil {
		return Confession{}, fmt.Errorf("post confession: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// The first page replaces the window, so wait for it before merging.
	for f.loadingInitial && !f.closed {
		token, done := f.token, f.initialDone
		f.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		f.mu.Lock()
		if f.token != token {
			// Another category was selected meanwhile; it loads on its own.
			return c, nil
		}
		if ctx.Err() != nil && f.loadingInitial {
			// Out of time: show it once the first page lands.
			f.queueLocalInsert(raw)
			f.expanded = c.ID
			return c, nil
		}
	}
	if f.closed || !f.active || !f.category.Matches(c.Category) {
		return c, nil
	}

	if c.CommentCount == 0 {
		c.CommentsState = Loaded
	}
	f.store.Merge([]Confession{c}, MergeUpsertOne)
	// A push may have inserted it first. Everything said about a brand-new
	// confession since then has been pushed to us too.
	f.store.update(c.ID, func(e *Confession) {
		if e.CommentsState == NotLoaded && e.CommentCount == len(e.pushed) {
			e.Comments = mergeComments(nil, e.pushed)
			e.pushed = nil
			e.CommentsState = Loaded
		}
	})
	f.refreshCursors()
	f.expanded = c.ID
	f.changed()

	if stored, ok := f.store.Get(c.ID); ok {
		return stored, nil
	}
	return c, nil
}
