package feed

import (
	"context"
	"errors"
	"time"

	"github.com/sujalbistaa/confessly/internal/models"
)

var (
	// ErrNotFound is returned when an operation names a confession that is not
	// in the current window.
	ErrNotFound = errors.New("confession not in feed window")
	// ErrNoSession is returned by operations that need a selected category.
	ErrNoSession = errors.New("no category selected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("feed closed")
)

// Source is the query collaborator the feed reads from and writes through.
// It is satisfied by *db.Store on the server and *client.Client remotely.
type Source interface {
	ListConfessions(ctx context.Context, q models.ConfessionQuery) ([]models.Confession, error)
	ListComments(ctx context.Context, confessionID string) ([]models.Comment, error)
	CreateConfession(ctx context.Context, draft models.ConfessionDraft) (models.Confession, error)
	CreateComment(ctx context.Context, confessionID string, draft models.CommentDraft) (models.Comment, error)
	IncrementLike(ctx context.Context, confessionID string) error
}

// Subscriber opens a real-time change stream. The feed opens one per category
// session.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live change stream. Events is closed once the
// subscription ends, either through Close or because the transport dropped.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// LoadState tracks a confession's comment list.
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "not-loaded"
}

// MarshalText renders the state by name in JSON and YAML output.
func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Comment is the in-memory shape of a comment.
type Comment struct {
	ID           string        `json:"id"`
	ConfessionID string        `json:"confession_id"`
	Body         string        `json:"body"`
	Gender       models.Gender `json:"gender"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Confession is one feed entry. Comments is complete only when CommentsState
// is Loaded; CommentCount is the server's count and never lower than
// len(Comments).
type Confession struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	Gender        models.Gender   `json:"gender"`
	Category      models.Category `json:"category"`
	Likes         int             `json:"likes"`
	Slug          string          `json:"slug"`
	CommentCount  int             `json:"comment_count"`
	CreatedAt     time.Time       `json:"created_at"`
	Comments      []Comment       `json:"comments,omitempty"`
	CommentsState LoadState       `json:"comments_state"`

	// pushed holds comments announced before the list is loaded. They join
	// Comments with the full fetch, so Comments is never a partial list.
	pushed []Comment
}

// Cursor returns the keyset position of c.
func (c Confession) Cursor() models.Cursor {
	return models.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
}

func (c Confession) clone() Confession {
	if c.Comments != nil {
		c.Comments = append([]Comment(nil), c.Comments...)
	}
	if c.pushed != nil {
		c.pushed = append([]Comment(nil), c.pushed...)
	}
	return c
}

// MergeMode selects how an incoming batch is combined with the window.
type MergeMode int

const (
	// MergeReplace discards the window; used for initial loads.
	MergeReplace MergeMode = iota
	// MergePrependNewer adds a page newer than the window.
	MergePrependNewer
	// MergeAppendOlder adds a page older than the window.
	MergeAppendOlder
	// MergeUpsertOne inserts a single entity unless its id is already present.
	MergeUpsertOne
)

func (m MergeMode) String() string {
	switch m {
	case MergeReplace:
		return "replace"
	case MergePrependNewer:
		return "prepend-newer"
	case MergeAppendOlder:
		return "append-older"
	case MergeUpsertOne:
		return "upsert-one"
	}
	return "unknown"
}

// NoticeKind classifies a transient notice.
type NoticeKind string

const (
	NoticeQuery NoticeKind = "query"
	NoticeWrite NoticeKind = "write"
)

// Notice is a transient, user-visible report of a failed external call. The
// window is always still valid when a notice is emitted.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Operation string     `json:"operation"`
	Err       error      `json:"-"`
	Message   string     `json:"message"`
}

// Window is a consistent snapshot of the feed.
type Window struct {
	Category       models.Category `json:"category"`
	Confessions    []Confession    `json:"confessions"`
	LoadingInitial bool            `json:"loading_initial"`
	LoadingOlder   bool            `json:"loading_older"`
	LoadingNewer   bool            `json:"loading_newer"`
	ExhaustedOlder bool            `json:"exhausted_older"`
	ExhaustedNewer bool            `json:"exhausted_newer"`
	Oldest         models.Cursor   `json:"oldest"`
	Newest         models.Cursor   `json:"newest"`
	Expanded       string          `json:"expanded,omitempty"`
}
