// Package feed keeps a client-side window of confessions consistent while
// pages, real-time pushes and local writes race each other.
//
// A Feed owns one category session at a time. Every session gets a fresh
// token; any asynchronous result that comes back carrying an older token is
// dropped without touching the window. All mutations of the ordered window go
// through Store.Merge, so the window stays sorted and duplicate-free no matter
// how those results interleave.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sujalbistaa/confessly/internal/models"
)

const DefaultPageSize = models.DefaultPageSize

// Options configures a Feed.
type Options struct {
	// PageSize is the number of confessions requested per page. It is capped
	// at models.MaxPageSize, the most a source returns, so a full page is
	// never mistaken for the last one.
	PageSize int
	// Logger receives diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

type direction struct {
	loading   bool
	exhausted bool
}

// Feed is the pagination controller and the owner of the window. It is safe
// for concurrent use; the lock is never held across a call to Source or
// Subscriber.
type Feed struct {
	source     Source
	subscriber Subscriber
	pageSize   int
	logger     *log.Logger

	comments singleflight.Group

	mu             sync.Mutex
	store          *Store
	token          uint64
	active         bool
	closed         bool
	category       models.Category
	loadingInitial bool
	older, newer   direction
	oldest, newest models.Cursor
	expanded       string
	pending        []models.ChangeEvent
	initialDone    chan struct{} // closed when the session's first page settles
	sub            Subscription

	changes chan struct{}
	notices chan Notice
}

// New creates a Feed reading from source. subscriber may be nil, in which case
// the window only changes through pagination and local writes.
func New(source Source, subscriber Subscriber, opts Options) *Feed {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	opts.PageSize = min(opts.PageSize, models.MaxPageSize)
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Feed{
		source:     source,
		subscriber: subscriber,
		pageSize:   opts.PageSize,
		logger:     opts.Logger,
		store:      NewStore(),
		changes:    make(chan struct{}, 1),
		notices:    make(chan Notice, 16),
	}
}

// Changes signals after every change to the window. Signals coalesce; read
// Window to see the current state. The channel is closed by Close.
func (f *Feed) Changes() <-chan struct{} {
	return f.changes
}

// Notices delivers transient failure reports. Notices are dropped when the
// buffer is full. The channel is closed by Close.
func (f *Feed) Notices() <-chan Notice {
	return f.notices
}

// Window returns a snapshot of the current window.
func (f *Feed) Window() Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Window{
		Category:       f.category,
		Confessions:    f.store.Snapshot(),
		LoadingInitial: f.loadingInitial,
		LoadingOlder:   f.older.loading,
		LoadingNewer:   f.newer.loading,
		ExhaustedOlder: f.older.exhausted,
		ExhaustedNewer: f.newer.exhausted,
		Oldest:         f.oldest,
		Newest:         f.newest,
		Expanded:       f.expanded,
	}
}

// SelectCategory starts a new session for category: the window and cursors
// are discarded, any previous subscription is closed, a new one is opened and
// the first page is loaded. Results still in flight for the previous session
// are discarded when they arrive.
//
// ctx bounds the initial load and opening the subscription; the subscription
// itself lives until the next SelectCategory or Close.
func (f *Feed) SelectCategory(ctx context.Context, category models.Category) error {
	if !category.ValidFilter() {
		return fmt.Errorf("unknown category %q", category)
	}
	if category == "" {
		category = models.CategoryAll
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.token++
	token := f.token
	f.active = true
	f.category = category
	f.store.Reset()
	f.older, f.newer = direction{}, direction{}
	f.oldest, f.newest = models.Cursor{}, models.Cursor{}
	f.expanded = ""
	f.pending = nil
	f.loadingInitial = true
	f.settleInitial()
	f.initialDone = make(chan struct{})
	prev := f.sub
	f.sub = nil
	f.changed()
	f.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			f.logger.Printf("feed: closing previous subscription: %v", err)
		}
	}

	// Subscribe before querying so rows inserted while the first page is in
	// flight are buffered rather than lost.
	f.subscribe(ctx, token)

	raws, err := f.source.ListConfessions(ctx, models.ConfessionQuery{Category: category, Limit: f.pageSize})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.token != token {
		return nil
	}
	f.loadingInitial = false
	defer f.settleInitial()
	if err != nil {
		f.older.exhausted, f.newer.exhausted = true, true
		f.flushPending()
		f.notify(NoticeQuery, "load feed", err)
		f.changed()
		return fmt.Errorf("load %s feed: %w", category, err)
	}

	batch, dropped := normalizeBatch(raws)
	if dropped > 0 {
		f.logger.Printf("feed: dropped %d malformed confessions from initial page", dropped)
	}
	f.store.Merge(batch, MergeReplace)
	short := len(raws) < f.pageSize
	f.older.exhausted, f.newer.exhausted = short, short
	f.refreshCursors()
	f.flushPending()
	f.changed()
	return nil
}

// Close ends the session, closes the subscription and the Changes and
// Notices channels. In-flight results are discarded.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.token++
	f.settleInitial()
	sub := f.sub
	f.sub = nil
	close(f.changes)
	close(f.notices)
	f.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

// settleInitial wakes everyone waiting on the current initial load. Callers
// hold f.mu.
func (f *Feed) settleInitial() {
	if f.initialDone != nil {
		close(f.initialDone)
		f.initialDone = nil
	}
}

// Collapse clears the expanded entry.
func (f *Feed) Collapse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expanded != "" && !f.closed {
		f.expanded = ""
		f.changed()
	}
}

// checkSession reports why no operation can run. Callers hold f.mu.
func (f *Feed) checkSession() error {
	switch {
	case f.closed:
		return ErrClosed
	case !f.active:
		return ErrNoSession
	}
	return nil
}

// refreshCursors moves both cursors to the extremes of the window. An empty
// window keeps the previous cursors so paging never restarts from the top.
// Callers hold f.mu.
func (f *Feed) refreshCursors() {
	if c, ok := f.store.Oldest(); ok {
		f.oldest = c
	}
	if c, ok := f.store.Newest(); ok {
		f.newest = c
	}
}

// changed signals observers. Callers hold f.mu.
func (f *Feed) changed() {
	if f.closed {
		return
	}
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

// notify logs err and publishes it as a notice. Callers hold f.mu.
func (f *Feed) notify(kind NoticeKind, op string, err error) {
	f.logger.Printf("feed: %s failed: %v", op, err)
	if f.closed {
		return
	}
	n := Notice{Kind: kind, Operation: op, Err: err, Message: noticeMessage(kind, op)}
	select {
	case f.notices <- n:
	default:
		f.logger.Printf("feed: notice buffer full, dropping %q", op)
	}
}

func noticeMessage(kind NoticeKind, op string) string {
	if kind == NoticeWrite {
		return fmt.Sprintf("Could not %s. Please try again.", op)
	}
	return fmt.Sprintf("Could not %s. Showing what is already loaded.", op)
}

// queueLocalInsert turns a confirmed local write into a synthetic insert event
// for the session's pending buffer. Callers hold f.mu.
func (f *Feed) queueLocalInsert(raw models.Confession) {
	payload, err := json.Marshal(raw)
	if err != nil {
		f.logger.Printf("feed: encoding local insert: %v", err)
		return
	}
	f.pending = append(f.pending, models.ChangeEvent{
		Table:   models.TableConfessions,
		Type:    models.EventInsert,
		Payload: payload,
	})
}
