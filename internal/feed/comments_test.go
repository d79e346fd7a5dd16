package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/confessly/internal/models"
)

func commentAt(id, confessionID string, minute int) models.Comment {
	return models.Comment{
		ID:           id,
		ConfessionID: confessionID,
		Body:         "same here",
		Gender:       models.GenderFemale,
		CreatedAt:    baseTime.Add(time.Duration(minute) * time.Minute),
	}
}

// feedWithComments returns a loaded Love feed whose c-002 has two comments
// on the server.
func feedWithComments(t *testing.T, sub Subscriber) (*Feed, *fakeSource) {
	t.Helper()
	rows := rowsInRange(1, 3, models.CategoryLove)
	rows[1].CommentCount = 2
	src := newFakeSource(rows...)
	src.comments["c-002"] = []models.Comment{
		commentAt("m-2", "c-002", 60),
		commentAt("m-1", "c-002", 30),
	}
	f := newTestFeed(src, sub, 10)
	t.Cleanup(func() { f.Close() })
	require.NoError(t, f.SelectCategory(context.Background(), models.CategoryLove))
	return f, src
}

func TestExpandLoadsCommentsOnce(t *testing.T) {
	f, src := feedWithComments(t, nil)
	ctx := context.Background()

	gate := make(chan struct{})
	src.mu.Lock()
	src.commentGate = gate
	src.mu.Unlock()
	src.drain()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.Expand(ctx, "c-002")
		}()
	}
	src.awaitStart(t, "comments")
	assert.Equal(t, Loading, entry(t, f, "c-002").CommentsState)
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, comments, _ := src.calls()
	assert.Equal(t, 1, comments)

	c := entry(t, f, "c-002")
	assert.Equal(t, Loaded, c.CommentsState)
	require.Len(t, c.Comments, 2)
	assert.Equal(t, "m-2", c.Comments[0].ID)
	assert.Equal(t, "c-002", f.Window().Expanded)

	// Loaded: collapsing and expanding again does not refetch.
	f.Collapse()
	assert.Empty(t, f.Window().Expanded)
	require.NoError(t, f.Expand(ctx, "c-002"))
	_, comments, _ = src.calls()
	assert.Equal(t, 1, comments)
}

func TestExpandEmptyEntry(t *testing.T) {
	f, src := feedWithComments(t, nil)
	ctx := context.Background()

	require.NoError(t, f.Expand(ctx, "c-003"))
	require.NoError(t, f.Expand(ctx, "c-003"))
	_, comments, _ := src.calls()
	assert.Equal(t, 1, comments)

	c := entry(t, f, "c-003")
	assert.Equal(t, Loaded, c.CommentsState)
	assert.Empty(t, c.Comments)
	assert.Zero(t, c.CommentCount)
}

func TestExpandUnknownEntry(t *testing.T) {
	f, _ := feedWithComments(t, nil)
	assert.ErrorIs(t, f.Expand(context.Background(), "nope"), ErrNotFound)
}

func TestFailedCommentLoadCanBeRetried(t *testing.T) {
	f, src := feedWithComments(t, nil)
	ctx := context.Background()
	src.commentErrs = []error{errBoom}

	err := f.Expand(ctx, "c-002")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, NotLoaded, entry(t, f, "c-002").CommentsState)

	select {
	case n := <-f.Notices():
		assert.Equal(t, NoticeQuery, n.Kind)
		assert.Contains(t, n.Message, "load comments")
	default:
		t.Fatal("expected a notice")
	}

	require.NoError(t, f.Expand(ctx, "c-002"))
	c := entry(t, f, "c-002")
	assert.Equal(t, Loaded, c.CommentsState)
	assert.Len(t, c.Comments, 2)
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	f, src := feedWithComments(t, nil)

	gate := make(chan struct{})
	src.mu.Lock()
	src.commentGate = gate
	src.mu.Unlock()
	src.drain()

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- f.Expand(first, "c-002") }()
	src.awaitStart(t, "comments")

	secondErr := make(chan error, 1)
	go func() { secondErr <- f.Expand(context.Background(), "c-002") }()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(gate)
	require.NoError(t, <-secondErr)
	assert.Equal(t, Loaded, entry(t, f, "c-002").CommentsState)
	_, comments, _ := src.calls()
	assert.Equal(t, 1, comments)
}

func TestCommentsForPreviousSessionAreDiscarded(t *testing.T) {
	f, src := feedWithComments(t, nil)
	ctx := context.Background()

	gate := make(chan struct{})
	src.mu.Lock()
	src.commentGate = gate
	src.mu.Unlock()
	src.drain()

	done := make(chan error, 1)
	go func() { done <- f.Expand(ctx, "c-002") }()
	src.awaitStart(t, "comments")

	require.NoError(t, f.SelectCategory(ctx, models.CategoryLove))
	close(gate)
	require.NoError(t, <-done)

	c := entry(t, f, "c-002")
	assert.Equal(t, NotLoaded, c.CommentsState)
	assert.Empty(t, c.Comments)
	assert.Empty(t, f.Window().Expanded)
}

func TestPostCommentLoadsThenAppends(t *testing.T) {
	f, src := feedWithComments(t, nil)
	ctx := context.Background()

	got, err := f.PostComment(ctx, "c-002", models.CommentDraft{Body: "  me too  ", Gender: models.GenderMale})
	require.NoError(t, err)
	assert.Equal(t, "me too", got.Body)

	_, comments, _ := src.calls()
	assert.Equal(t, 1, comments)

	c := entry(t, f, "c-002")
	assert.Equal(t, Loaded, c.CommentsState)
	assert.Equal(t, 3, c.CommentCount)
	require.Len(t, c.Comments, 3)
	assert.Equal(t, got.ID, c.Comments[0].ID)
}

func TestPostCommentValidationAndFailure(t *testing.T) {
	f, src := feedWithComments(t, nil)
	ctx := context.Background()

	_, err := f.PostComment(ctx, "c-002", models.CommentDraft{Body: "   ", Gender: models.GenderMale})
	require.ErrorIs(t, err, models.ErrInvalidDraft)

	_, err = f.PostComment(ctx, "c-002", models.CommentDraft{Body: "beep", Gender: models.GenderAI})
	require.ErrorIs(t, err, models.ErrInvalidDraft)

	src.createErr = errBoom
	_, err = f.PostComment(ctx, "c-002", models.CommentDraft{Body: "hi", Gender: models.GenderMale})
	require.ErrorIs(t, err, errBoom)
	c := entry(t, f, "c-002")
	assert.Equal(t, 2, c.CommentCount)
	assert.Len(t, c.Comments, 2)
}

func TestPushedCopyOfOwnCommentIsNotCountedTwice(t *testing.T) {
	sub := &fakeSubscriber{}
	f, _ := feedWithComments(t, sub)
	ctx := context.Background()

	posted, err := f.PostComment(ctx, "c-002", models.CommentDraft{Body: "hello", Gender: models.GenderFemale})
	require.NoError(t, err)

	live := sub.latest()
	require.NotNil(t, live)
	live.push(t, models.TableComments, models.EventInsert, models.Comment{
		ID:           posted.ID,
		ConfessionID: "c-002",
		Body:         posted.Body,
		Gender:       posted.Gender,
		CreatedAt:    posted.CreatedAt,
	})
	// A later marker event proves the duplicate has been consumed.
	live.push(t, models.TableConfessions, models.EventInsert, confessionAt(50, models.CategoryLove))
	require.Eventually(t, func() bool {
		return f.Window().Newest.ID == "c-050"
	}, 2*time.Second, 5*time.Millisecond)

	c := entry(t, f, "c-002")
	assert.Equal(t, 3, c.CommentCount)
	assert.Len(t, c.Comments, 3)
}
