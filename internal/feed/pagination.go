package feed

import (
	"context"
	"fmt"

	"github.com/sujalbistaa/confessly/internal/models"
)

// LoadOlder fetches the page strictly older than the oldest loaded entry. It
// is a no-op while the initial page or another older page is loading, and
// once older pages are exhausted.
func (f *Feed) LoadOlder(ctx context.Context) error {
	return f.loadPage(ctx, true)
}

// LoadNewer fetches the page strictly newer than the newest loaded entry,
// under the same rules as LoadOlder.
func (f *Feed) LoadNewer(ctx context.Context) error {
	return f.loadPage(ctx, false)
}

func (f *Feed) loadPage(ctx context.Context, older bool) error {
	f.mu.Lock()
	if err := f.checkSession(); err != nil {
		f.mu.Unlock()
		return err
	}
	dir, op, mode := &f.newer, "load newer confessions", MergePrependNewer
	if older {
		dir, op, mode = &f.older, "load older confessions", MergeAppendOlder
	}
	if f.loadingInitial || dir.loading || dir.exhausted {
		f.mu.Unlock()
		return nil
	}
	dir.loading = true
	token := f.token
	q := models.ConfessionQuery{Category: f.category, Limit: f.pageSize}
	if older {
		cursor := f.oldest
		q.Before = &cursor
	} else {
		cursor := f.newest
		q.After = &cursor
	}
	f.changed()
	f.mu.Unlock()

	raws, err := f.source.ListConfessions(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.token != token {
		return nil
	}
	// The session is unchanged, so dir still points at this session's state.
	dir.loading = false
	if err != nil {
		dir.exhausted = true
		f.notify(NoticeQuery, op, err)
		f.changed()
		return fmt.Errorf("%s: %w", op, err)
	}

	batch, dropped := normalizeBatch(raws)
	if dropped > 0 {
		f.logger.Printf("feed: dropped %d malformed confessions while paging", dropped)
	}
	f.store.Merge(batch, mode)
	f.refreshCursors()
	if len(raws) < f.pageSize {
		dir.exhausted = true
	}
	f.changed()
	return nil
}
