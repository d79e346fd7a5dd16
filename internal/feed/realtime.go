package feed

import (
	"context"
	"slices"

	"github.com/sujalbistaa/confessly/internal/models"
)

// subscribe opens the session's change stream. A failure is reported but
// leaves the feed usable through pagination alone.
func (f *Feed) subscribe(ctx context.Context, token uint64) {
	if f.subscriber == nil {
		return
	}
	sub, err := f.subscriber.Subscribe(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if !f.closed && f.token == token {
			f.notify(NoticeQuery, "subscribe to live updates", err)
		}
		return
	}
	if f.closed || f.token != token {
		go sub.Close()
		return
	}
	f.sub = sub
	go f.consume(token, sub)
}

// consume applies events until the subscription ends. Events for a session
// that is no longer current are drained and ignored.
func (f *Feed) consume(token uint64, sub Subscription) {
	for evt := range sub.Events() {
		f.mu.Lock()
		switch {
		case f.closed || f.token != token:
		case f.loadingInitial:
			f.pending = append(f.pending, evt)
		default:
			f.applyEvent(evt, false)
		}
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.token == token && f.sub == sub {
		f.sub = nil
		f.logger.Printf("feed: live updates for %s ended", f.category)
	}
}

// flushPending applies events buffered during the initial load. Callers hold
// f.mu.
func (f *Feed) flushPending() {
	pending := f.pending
	f.pending = nil
	for _, evt := range pending {
		f.applyEvent(evt, true)
	}
}

// applyEvent folds one change into the window. Relevance to the active
// category is decided here because the transport does not filter. buffered
// marks events held back during the initial load; the first page's counts
// already include them. Callers hold f.mu.
func (f *Feed) applyEvent(evt models.ChangeEvent, buffered bool) {
	var changed bool
	switch evt.Table {
	case models.TableConfessions:
		c, err := decodeConfession(evt.Payload)
		if err != nil {
			f.logger.Printf("feed: ignoring %s event: %v", evt.Type, err)
			return
		}
		switch evt.Type {
		case models.EventInsert:
			changed = f.insertPushed(c)
		case models.EventUpdate:
			changed = f.updatePushed(c)
		case models.EventDelete:
			changed = f.removeEntry(c.ID)
		}
	case models.TableComments:
		c, err := decodeComment(evt.Payload)
		if err != nil {
			f.logger.Printf("feed: ignoring comment %s event: %v", evt.Type, err)
			return
		}
		switch evt.Type {
		case models.EventInsert:
			changed = f.addComment(c, !buffered)
		case models.EventDelete:
			changed = f.removeComment(c)
		}
	}
	if changed {
		f.changed()
	}
}

// insertPushed upserts a confession announced by another client. Rows older
// than the oldest cursor are left for LoadOlder while older pages remain, so
// pushes never open a gap that paging would skip.
func (f *Feed) insertPushed(c Confession) bool {
	if !f.category.Matches(c.Category) {
		return false
	}
	if !f.older.exhausted && !f.oldest.IsZero() &&
		compareConfessions(c, Confession{ID: f.oldest.ID, CreatedAt: f.oldest.CreatedAt}) > 0 {
		return false
	}
	if f.store.Merge([]Confession{c}, MergeUpsertOne) == 0 {
		return false
	}
	f.refreshCursors()
	return true
}

// updatePushed applies a moderator edit. Likes are not taken from the event:
// the local counter stays authoritative until the next full load.
func (f *Feed) updatePushed(c Confession) bool {
	if !f.category.Matches(c.Category) {
		return f.removeEntry(c.ID)
	}
	updated := f.store.update(c.ID, func(e *Confession) {
		e.Title = c.Title
		e.Body = c.Body
		e.Gender = c.Gender
		e.Category = c.Category
	})
	if updated {
		return true
	}
	return f.insertPushed(c)
}

func (f *Feed) removeEntry(id string) bool {
	if !f.store.Remove(id) {
		return false
	}
	if f.expanded == id {
		f.expanded = ""
	}
	return true
}

// addComment records a comment unless its id is already known, so a push for
// a comment this client just posted is not counted twice. Until the entry's
// list is loaded the comment waits in pushed. count is false when the server
// count already includes it.
func (f *Feed) addComment(c Comment, count bool) bool {
	added := false
	f.store.update(c.ConfessionID, func(e *Confession) {
		known := func(x Comment) bool { return x.ID == c.ID }
		if slices.ContainsFunc(e.Comments, known) || slices.ContainsFunc(e.pushed, known) {
			return
		}
		if e.CommentsState == Loaded {
			e.Comments = mergeComments(e.Comments, []Comment{c})
		} else {
			e.pushed = append(e.pushed, c)
		}
		if count {
			e.CommentCount++
		}
		added = true
	})
	return added
}

func (f *Feed) removeComment(c Comment) bool {
	removed := false
	f.store.update(c.ConfessionID, func(e *Confession) {
		known := func(x Comment) bool { return x.ID == c.ID }
		if i := slices.IndexFunc(e.Comments, known); i >= 0 {
			e.Comments = slices.Delete(e.Comments, i, i+1)
			e.CommentCount--
			removed = true
			return
		}
		if i := slices.IndexFunc(e.pushed, known); i >= 0 {
			e.pushed = slices.Delete(e.pushed, i, i+1)
		}
		if e.CommentsState != Loaded && e.CommentCount > 0 {
			// Not loaded locally, but the server count included it.
			e.CommentCount--
			removed = true
		}
	})
	return removed
}
