package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/confessly/internal/models"
)

var (
	errBoom   = errors.New("boom")
	baseTime  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	quietLogs = log.New(io.Discard, "", 0)
)

func confessionAt(i int, category models.Category) models.Confession {
	id := fmt.Sprintf("c-%03d", i)
	return models.Confession{
		ID:        id,
		Title:     fmt.Sprintf("confession %d", i),
		Body:      "body",
		Gender:    models.GenderIncognito,
		Category:  category,
		Slug:      models.Slugify(fmt.Sprintf("confession %d", i), id),
		CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
	}
}

// fakeSource serves rows from memory with the same keyset semantics as the
// database store. Gates let tests hold a call open.
type fakeSource struct {
	mu          sync.Mutex
	rows        []models.Confession
	comments    map[string][]models.Comment
	nextID      int
	listCalls   int
	commentCall int
	likeCalls   int

	listErrs    []error
	commentErrs []error
	likeErrs    []error
	createErr   error

	listGate    chan struct{}
	commentGate chan struct{}
	likeGate    chan struct{}
	started     chan string
}

func newFakeSource(rows ...models.Confession) *fakeSource {
	return &fakeSource{
		rows:     rows,
		comments: make(map[string][]models.Comment),
		nextID:   1000,
		started:  make(chan string, 64),
	}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func wait(gate chan struct{}) {
	if gate != nil {
		<-gate
	}
}

func (s *fakeSource) ListConfessions(ctx context.Context, q models.ConfessionQuery) ([]models.Confession, error) {
	s.mu.Lock()
	s.listCalls++
	gate := s.listGate
	err := popErr(&s.listErrs)
	s.mu.Unlock()
	s.signal("list")
	wait(gate)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Confession
	for _, r := range s.rows {
		if !q.Category.Matches(r.Category) {
			continue
		}
		key := Confession{ID: r.ID, CreatedAt: r.CreatedAt}
		if q.Before != nil && compareConfessions(key, Confession{ID: q.Before.ID, CreatedAt: q.Before.CreatedAt}) <= 0 {
			continue
		}
		if q.After != nil && compareConfessions(key, Confession{ID: q.After.ID, CreatedAt: q.After.CreatedAt}) >= 0 {
			continue
		}
		out = append(out, r)
	}
	less := func(a, b models.Confession) int {
		return compareConfessions(Confession{ID: a.ID, CreatedAt: a.CreatedAt}, Confession{ID: b.ID, CreatedAt: b.CreatedAt})
	}
	if q.After != nil {
		slices.SortFunc(out, func(a, b models.Confession) int { return -less(a, b) })
	} else {
		slices.SortFunc(out, less)
	}
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeSource) ListComments(ctx context.Context, id string) ([]models.Comment, error) {
	s.mu.Lock()
	s.commentCall++
	gate := s.commentGate
	err := popErr(&s.commentErrs)
	s.mu.Unlock()
	s.signal("comments")
	wait(gate)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.comments[id]...), nil
}

func (s *fakeSource) CreateConfession(ctx context.Context, d models.ConfessionDraft) (models.Confession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.Confession{}, s.createErr
	}
	s.nextID++
	c := confessionAt(s.nextID, d.Category)
	c.Title, c.Body, c.Gender = d.Title, d.Body, d.Gender
	s.rows = append(s.rows, c)
	return c, nil
}

func (s *fakeSource) CreateComment(ctx context.Context, id string, d models.CommentDraft) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.Comment{}, s.createErr
	}
	s.nextID++
	c := models.Comment{
		ID:           fmt.Sprintf("m-%d", s.nextID),
		ConfessionID: id,
		Body:         d.Body,
		Gender:       d.Gender,
		CreatedAt:    baseTime.Add(time.Duration(s.nextID) * time.Minute),
	}
	s.comments[id] = append([]models.Comment{c}, s.comments[id]...)
	return c, nil
}

func (s *fakeSource) IncrementLike(ctx context.Context, id string) error {
	s.mu.Lock()
	s.likeCalls++
	gate := s.likeGate
	err := popErr(&s.likeErrs)
	s.mu.Unlock()
	s.signal("like")
	wait(gate)
	return err
}

func (s *fakeSource) signal(kind string) {
	select {
	case s.started <- kind:
	default:
	}
}

func (s *fakeSource) calls() (list, comments, likes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls, s.commentCall, s.likeCalls
}

// drain discards call signals recorded so far.
func (s *fakeSource) drain() {
	for {
		select {
		case <-s.started:
		default:
			return
		}
	}
}

// awaitStart blocks until the source reports a call of kind.
func (s *fakeSource) awaitStart(t *testing.T, kind string) {
	t.Helper()
	for {
		select {
		case got := <-s.started:
			if got == kind {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s call", kind)
		}
	}
}

// fakeSubscriber hands out channel-backed subscriptions and remembers them.
type fakeSubscriber struct {
	mu   sync.Mutex
	subs []*fakeSubscription
	err  error
}

func (s *fakeSubscriber) Subscribe(ctx context.Context) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	sub := &fakeSubscription{events: make(chan models.ChangeEvent, 16)}
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *fakeSubscriber) latest() *fakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}
	return s.subs[len(s.subs)-1]
}

type fakeSubscription struct {
	mu     sync.Mutex
	events chan models.ChangeEvent
	closed bool
}

func (s *fakeSubscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSubscription) push(t *testing.T, table, typ string, v interface{}) {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	s.events <- models.ChangeEvent{Table: table, Type: typ, Payload: payload}
}

func assertEventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func windowIDs(w Window) []string {
	out := make([]string, len(w.Confessions))
	for i, c := range w.Confessions {
		out[i] = c.ID
	}
	return out
}

func assertWindowInvariants(t *testing.T, list []Confession) {
	t.Helper()
	seen := make(map[string]bool, len(list))
	for i, c := range list {
		if seen[c.ID] {
			t.Fatalf("duplicate id %s at %d", c.ID, i)
		}
		seen[c.ID] = true
		if i > 0 && compareConfessions(list[i-1], c) >= 0 {
			t.Fatalf("window not strictly descending at %d: %s then %s", i, list[i-1].ID, c.ID)
		}
	}
}

func entry(t *testing.T, f *Feed, id string) Confession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.store.Get(id)
	if !ok {
		t.Fatalf("%s not in window (ids: %s)", id, strings.Join(windowIDsLocked(f), ","))
	}
	return c
}

func windowIDsLocked(f *Feed) []string {
	out := make([]string, 0, f.store.Len())
	for _, c := range f.store.items {
		out = append(out, c.ID)
	}
	return out
}
