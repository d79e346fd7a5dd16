package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sujalbistaa/confessly/internal/models"
)

var errMalformed = errors.New("malformed record")

func normalizeConfession(raw models.Confession) (Confession, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return Confession{}, fmt.Errorf("%w: confession without id", errMalformed)
	}
	if raw.CreatedAt.IsZero() {
		return Confession{}, fmt.Errorf("%w: confession %s without timestamp", errMalformed, raw.ID)
	}
	c := Confession{
		ID:           raw.ID,
		Title:        raw.Title,
		Body:         raw.Body,
		Gender:       raw.Gender,
		Category:     raw.Category,
		Likes:        max(raw.Likes, 0),
		Slug:         raw.Slug,
		CommentCount: max(raw.CommentCount, 0),
		CreatedAt:    raw.CreatedAt.UTC(),
	}
	if !c.Gender.Valid() {
		c.Gender = models.GenderIncognito
	}
	if c.Slug == "" {
		c.Slug = models.Slugify(c.Title, c.ID)
	}
	return c, nil
}

// normalizeBatch shapes a fetched page, dropping malformed records.
func normalizeBatch(raws []models.Confession) ([]Confession, int) {
	out := make([]Confession, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		c, err := normalizeConfession(raw)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped
}

func normalizeComment(raw models.Comment) (Comment, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return Comment{}, fmt.Errorf("%w: comment without id", errMalformed)
	}
	if raw.CreatedAt.IsZero() {
		return Comment{}, fmt.Errorf("%w: comment %s without timestamp", errMalformed, raw.ID)
	}
	c := Comment{
		ID:           raw.ID,
		ConfessionID: raw.ConfessionID,
		Body:         raw.Body,
		Gender:       raw.Gender,
		CreatedAt:    raw.CreatedAt.UTC(),
	}
	if !c.Gender.Known() {
		c.Gender = models.GenderIncognito
	}
	return c, nil
}

func normalizeComments(raws []models.Comment) []Comment {
	out := make([]Comment, 0, len(raws))
	for _, raw := range raws {
		if c, err := normalizeComment(raw); err == nil {
			out = append(out, c)
		}
	}
	return mergeComments(nil, out)
}

// mergeComments unions two comment lists, keeping the first occurrence of each
// id, ordered newest first with ties broken by id.
func mergeComments(existing, incoming []Comment) []Comment {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]Comment, 0, len(existing)+len(incoming))
	for _, list := range [][]Comment{existing, incoming} {
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Comment) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

func decodeConfession(payload json.RawMessage) (Confession, error) {
	var raw models.Confession
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Confession{}, fmt.Errorf("decode confession: %w", err)
	}
	return normalizeConfession(raw)
}

func decodeComment(payload json.RawMessage) (Comment, error) {
	var raw models.Comment
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Comment{}, fmt.Errorf("decode comment: %w", err)
	}
	return normalizeComment(raw)
}
