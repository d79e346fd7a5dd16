package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/confessly/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := Init("sqlite://"+filepath.Join(t.TempDir(), "test.db"), false)
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(conn)
}

// seed inserts n confessions one second apart, oldest first, and returns them
// newest first.
func seed(t *testing.T, s *Store, n int, category models.Category) []models.Confession {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Confession, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
		c := models.Confession{
			ID:        id,
			Title:     fmt.Sprintf("confession %d", i),
			Body:      "body",
			Gender:    models.GenderIncognito,
			Category:  category,
			Slug:      models.Slugify(fmt.Sprintf("confession %d", i), id),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.DB().Create(&c).Error)
		out[n-1-i] = c
	}
	return out
}

func ids(cs []models.Confession) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestListConfessionsKeysetPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	all := seed(t, s, 7, models.CategoryLove)

	first, err := s.ListConfessions(ctx, models.ConfessionQuery{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, ids(all[:3]), ids(first))

	last := first[len(first)-1]
	older, err := s.ListConfessions(ctx, models.ConfessionQuery{
		Before: &models.Cursor{CreatedAt: last.CreatedAt, ID: last.ID},
		Limit:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, ids(all[3:6]), ids(older))

	// After pages come back oldest first.
	newest := all[5]
	newer, err := s.ListConfessions(ctx, models.ConfessionQuery{
		After: &models.Cursor{CreatedAt: newest.CreatedAt, ID: newest.ID},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{all[4].ID, all[3].ID}, ids(newer))
}

func TestListConfessionsCategoryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, 2, models.CategoryLove)
	_, err := s.CreateConfession(ctx, models.ConfessionDraft{
		Title: "exam", Body: "failed it", Gender: models.GenderMale, Category: models.CategoryEducation,
	})
	require.NoError(t, err)

	love, err := s.ListConfessions(ctx, models.ConfessionQuery{Category: models.CategoryLove})
	require.NoError(t, err)
	assert.Len(t, love, 2)

	all, err := s.ListConfessions(ctx, models.ConfessionQuery{Category: models.CategoryAll})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateConfessionAssignsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateConfession(ctx, models.ConfessionDraft{
		Title: " Secret crush ", Body: "on my lab partner", Gender: models.GenderFemale, Category: models.CategoryLove,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Secret crush", c.Title)
	assert.Equal(t, models.Slugify("Secret crush", c.ID), c.Slug)
	assert.False(t, c.CreatedAt.IsZero())

	bySlug, err := s.GetConfessionBySlug(ctx, c.Slug)
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)

	_, err = s.CreateConfession(ctx, models.ConfessionDraft{Title: "", Body: "x", Gender: models.GenderMale, Category: models.CategoryLove})
	assert.ErrorIs(t, err, models.ErrInvalidDraft)
}

func TestCommentsMaintainCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, 1, models.CategoryFamily)[0]

	first, err := s.CreateComment(ctx, c.ID, models.CommentDraft{Body: "same here", Gender: models.GenderMale})
	require.NoError(t, err)
	second, err := s.CreateComment(ctx, c.ID, models.CommentDraft{Body: "you are not alone", Gender: models.GenderAI})
	require.NoError(t, err)

	got, err := s.GetConfession(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)

	comments, err := s.ListComments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.False(t, comments[0].CreatedAt.Before(comments[1].CreatedAt))

	deleted, err := s.DeleteComment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, deleted.ConfessionID)

	got, err = s.GetConfession(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentCount)

	comments, err = s.ListComments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, second.ID, comments[0].ID)

	_, err = s.CreateComment(ctx, "missing", models.CommentDraft{Body: "hello", Gender: models.GenderMale})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListComments(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteComment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementLike(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, 1, models.CategoryFunny)[0]

	require.NoError(t, s.IncrementLike(ctx, c.ID))
	require.NoError(t, s.IncrementLike(ctx, c.ID))

	got, err := s.GetConfession(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Likes)

	assert.ErrorIs(t, s.IncrementLike(ctx, "missing"), ErrNotFound)
}

func TestModeratorEditAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, 1, models.CategoryWork)[0]

	title := "Edited title"
	category := models.CategoryHealth
	updated, err := s.UpdateConfession(ctx, c.ID, ConfessionPatch{Title: &title, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, models.CategoryHealth, updated.Category)
	assert.Equal(t, c.Slug, updated.Slug)

	bad := models.Category("Cooking")
	_, err = s.UpdateConfession(ctx, c.ID, ConfessionPatch{Category: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidDraft)

	_, err = s.DeleteConfession(ctx, c.ID)
	require.NoError(t, err)
	_, err = s.GetConfession(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.IncrementLike(ctx, c.ID), ErrNotFound)

	list, err := s.ListConfessions(ctx, models.ConfessionQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInitRejectsUnknownScheme(t *testing.T) {
	_, err := Init("mysql://localhost/confessly", false)
	assert.Error(t, err)
}
