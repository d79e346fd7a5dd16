package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/confessly/internal/models"
)

const (
	DefaultPageSize = models.DefaultPageSize
	MaxPageSize     = models.MaxPageSize
)

// ErrNotFound is returned when a confession or comment does not exist or was
// deleted by a moderator.
var ErrNotFound = errors.New("not found")

// Store runs every confession and comment query the application needs.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// timestamp returns the current time at the precision every supported
// database can round-trip.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// ListConfessions returns one keyset page. With After set the page is ordered
// oldest first, otherwise newest first.
func (s *Store) ListConfessions(ctx context.Context, q models.ConfessionQuery) ([]models.Confession, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	tx := s.db.WithContext(ctx).Model(&models.Confession{})
	if q.Category.Valid() {
		tx = tx.Where("category = ?", q.Category)
	}
	switch {
	case q.After != nil:
		c := q.After
		tx = tx.Where("(created_at > ? OR (created_at = ? AND id > ?))", c.CreatedAt.UTC(), c.CreatedAt.UTC(), c.ID).
			Order("created_at asc, id asc")
	case q.Before != nil:
		c := q.Before
		tx = tx.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt.UTC(), c.CreatedAt.UTC(), c.ID).
			Order("created_at desc, id desc")
	default:
		tx = tx.Order("created_at desc, id desc")
	}

	confessions := make([]models.Confession, 0, limit)
	if err := tx.Limit(limit).Find(&confessions).Error; err != nil {
		return nil, fmt.Errorf("list confessions: %w", err)
	}
	return confessions, nil
}

// GetConfession looks a confession up by id.
func (s *Store) GetConfession(ctx context.Context, id string) (models.Confession, error) {
	var c models.Confession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c, ErrNotFound
		}
		return c, fmt.Errorf("get confession: %w", err)
	}
	return c, nil
}

// GetConfessionBySlug looks a confession up by its public slug.
func (s *Store) GetConfessionBySlug(ctx context.Context, slug string) (models.Confession, error) {
	var c models.Confession
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c, ErrNotFound
		}
		return c, fmt.Errorf("get confession by slug: %w", err)
	}
	return c, nil
}

// ListComments returns every comment on a confession, newest first.
func (s *Store) ListComments(ctx context.Context, confessionID string) ([]models.Comment, error) {
	if _, err := s.GetConfession(ctx, confessionID); err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0)
	err := s.db.WithContext(ctx).
		Where("confession_id = ?", confessionID).
		Order("created_at desc, id desc").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// CreateConfession validates and stores a new confession. The id, slug and
// timestamp are assigned here.
func (s *Store) CreateConfession(ctx context.Context, draft models.ConfessionDraft) (models.Confession, error) {
	if err := draft.Validate(); err != nil {
		return models.Confession{}, err
	}
	id := uuid.NewString()
	now := s.timestamp()
	c := models.Confession{
		ID:        id,
		Title:     draft.Title,
		Body:      draft.Body,
		Gender:    draft.Gender,
		Category:  draft.Category,
		Slug:      models.Slugify(draft.Title, id),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return models.Confession{}, fmt.Errorf("create confession: %w", err)
	}
	return c, nil
}

// CreateComment stores a comment and bumps the confession's comment count in
// the same transaction. GenderAI is accepted here; callers facing users must
// reject it before calling.
func (s *Store) CreateComment(ctx context.Context, confessionID string, draft models.CommentDraft) (models.Comment, error) {
	if err := draft.Validate(true); err != nil {
		return models.Comment{}, err
	}
	comment := models.Comment{
		ID:           uuid.NewString(),
		ConfessionID: confessionID,
		Body:         draft.Body,
		Gender:       draft.Gender,
		CreatedAt:    s.timestamp(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Confession{}).
			Where("id = ?", confessionID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Comment{}, err
		}
		return models.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// IncrementLike adds one like to a confession.
func (s *Store) IncrementLike(ctx context.Context, confessionID string) error {
	res := s.db.WithContext(ctx).Model(&models.Confession{}).
		Where("id = ?", confessionID).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment like: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfessionPatch holds a moderator's edits. Nil fields are left unchanged.
// The slug is never regenerated so shared links keep working.
type ConfessionPatch struct {
	Title    *string          `json:"title"`
	Body     *string          `json:"body"`
	Gender   *models.Gender   `json:"gender"`
	Category *models.Category `json:"category"`
}

// UpdateConfession applies a moderator patch and returns the updated row.
func (s *Store) UpdateConfession(ctx context.Context, id string, patch ConfessionPatch) (models.Confession, error) {
	c, err := s.GetConfession(ctx, id)
	if err != nil {
		return c, err
	}

	draft := models.ConfessionDraft{Title: c.Title, Body: c.Body, Gender: c.Gender, Category: c.Category}
	if patch.Title != nil {
		draft.Title = *patch.Title
	}
	if patch.Body != nil {
		draft.Body = *patch.Body
	}
	if patch.Gender != nil {
		draft.Gender = *patch.Gender
	}
	if patch.Category != nil {
		draft.Category = *patch.Category
	}
	if err := draft.Validate(); err != nil {
		return c, err
	}

	updates := map[string]interface{}{
		"title":      draft.Title,
		"body":       draft.Body,
		"gender":     draft.Gender,
		"category":   draft.Category,
		"updated_at": s.timestamp(),
	}
	if err := s.db.WithContext(ctx).Model(&c).Updates(updates).Error; err != nil {
		return c, fmt.Errorf("update confession: %w", err)
	}
	return s.GetConfession(ctx, id)
}

// DeleteConfession hides a confession. Its comments stay in the table but are
// unreachable through the API.
func (s *Store) DeleteConfession(ctx context.Context, id string) (models.Confession, error) {
	c, err := s.GetConfession(ctx, id)
	if err != nil {
		return c, err
	}
	if err := s.db.WithContext(ctx).Delete(&c).Error; err != nil {
		return c, fmt.Errorf("delete confession: %w", err)
	}
	return c, nil
}

// DeleteComment removes a comment and decrements its confession's count.
func (s *Store) DeleteComment(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&comment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Confession{}).
			Where("id = ? AND comment_count > 0", comment.ConfessionID).
			UpdateColumn("comment_count", gorm.Expr("comment_count - ?", 1)).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return comment, err
		}
		return comment, fmt.Errorf("delete comment: %w", err)
	}
	return comment, nil
}
