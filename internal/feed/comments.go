package feed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sujalbistaa/confessly/internal/models"
)

// Expand marks id as the expanded entry and makes sure its comments are
// loaded.
func (f *Feed) Expand(ctx context.Context, id string) error {
	f.mu.Lock()
	if err := f.checkSession(); err != nil {
		f.mu.Unlock()
		return err
	}
	if _, ok := f.store.index[id]; !ok {
		f.mu.Unlock()
		return ErrNotFound
	}
	if f.expanded != id {
		f.expanded = id
		f.changed()
	}
	f.mu.Unlock()
	return f.ensureLoaded(ctx, id)
}

// ensureLoaded fetches the full comment list for id unless it is already
// loaded. Concurrent callers share one fetch: the fetch is registered with the
// singleflight group while f.mu is held, and it forgets its key under f.mu
// before publishing the outcome, so every caller either joins the fetch in
// flight or observes its result.
func (f *Feed) ensureLoaded(ctx context.Context, id string) error {
	f.mu.Lock()
	if err := f.checkSession(); err != nil {
		f.mu.Unlock()
		return err
	}
	i, ok := f.store.index[id]
	if !ok {
		f.mu.Unlock()
		return ErrNotFound
	}
	if f.store.items[i].CommentsState == Loaded {
		f.mu.Unlock()
		return nil
	}
	token := f.token
	key := strconv.FormatUint(token, 10) + "/" + id
	if f.store.items[i].CommentsState == NotLoaded {
		f.store.update(id, func(c *Confession) { c.CommentsState = Loading })
		f.changed()
	}
	// The first caller's cancellation must not fail callers that joined.
	fetchCtx := context.WithoutCancel(ctx)
	ch := f.comments.DoChan(key, func() (interface{}, error) {
		return nil, f.loadComments(fetchCtx, token, key, id)
	})
	f.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) loadComments(ctx context.Context, token uint64, key, id string) error {
	raws, err := f.source.ListComments(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments.Forget(key)
	if f.closed || f.token != token {
		return nil
	}
	if err != nil {
		f.store.update(id, func(c *Confession) { c.CommentsState = NotLoaded })
		f.notify(NoticeQuery, "load comments", err)
		f.changed()
		return fmt.Errorf("load comments for %s: %w", id, err)
	}

	fetched := normalizeComments(raws)
	f.store.update(id, func(c *Confession) {
		// Keep comments pushed while the fetch was in flight. The complete
		// list settles the count.
		c.Comments = mergeComments(fetched, c.pushed)
		c.pushed = nil
		c.CommentCount = len(c.Comments)
		c.CommentsState = Loaded
	})
	f.changed()
	return nil
}

// PostComment writes a comment and, once the server confirms it, adds it to
// the entry's loaded list. Comments are loaded first so the full-list fetch
// cannot later replace the list without the new comment. On failure nothing
// changes locally.
func (f *Feed) PostComment(ctx context.Context, confessionID string, draft models.CommentDraft) (Comment, error) {
	if err := draft.Validate(false); err != nil {
		return Comment{}, err
	}
	if err := f.ensureLoaded(ctx, confessionID); err != nil {
		return Comment{}, err
	}

	raw, err := f.source.CreateComment(ctx, confessionID, draft)
	if err != nil {
		f.mu.Lock()
		f.notify(NoticeWrite, "post your comment", err)
		f.mu.Unlock()
		return Comment{}, fmt.Errorf("post comment: %w", err)
	}
	if raw.ConfessionID == "" {
		raw.ConfessionID = confessionID
	}
	c, err := normalizeComment(raw)
	if err != nil {
		return Comment{}, fmt.Errorf("post comment: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.addComment(c, true) {
		f.changed()
	}
	return c, nil
}
