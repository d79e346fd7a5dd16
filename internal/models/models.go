package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Confession represents a single anonymous confession.
type Confession struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title        string         `gorm:"not null" json:"title"`
	Body         string         `gorm:"type:text;not null" json:"body"`
	Gender       Gender         `gorm:"type:varchar(16);not null" json:"gender"`
	Category     Category       `gorm:"type:varchar(32);not null;index" json:"category"`
	Likes        int            `gorm:"not null;default:0" json:"likes"`
	Slug         string         `gorm:"uniqueIndex;not null" json:"slug"`
	CommentCount int            `gorm:"not null;default:0" json:"comment_count"` // Maintained by the store, not by counting rows
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"` // Moderator deletes are soft
}

// Comment is an anonymous reply to a confession.
type Comment struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConfessionID string         `gorm:"type:varchar(36);not null;index" json:"confession_id"`
	Body         string         `gorm:"type:text;not null" json:"body"`
	Gender       Gender         `gorm:"type:varchar(16);not null" json:"gender"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Cursor is a keyset position in the feed. Entries are ordered by
// (CreatedAt, ID) descending.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// IsZero reports whether the cursor points nowhere.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// Page sizes for ConfessionQuery. Sources return at most MaxPageSize rows per
// page whatever Limit asks for.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ConfessionQuery selects one page of confessions. At most one of Before and
// After is set; Before pages backwards in time, After pages forwards.
type ConfessionQuery struct {
	Category Category
	Before   *Cursor
	After    *Cursor
	Limit    int
}

// Real-time tables and event types.
const (
	TableConfessions = "confessions"
	TableComments    = "comments"

	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// ChangeEvent is the message pushed to real-time subscribers whenever a row
// changes.
type ChangeEvent struct {
	Table   string          `json:"table"`
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
