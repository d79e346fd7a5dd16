package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/confessly/internal/assistant"
	"github.com/sujalbistaa/confessly/internal/db"
	"github.com/sujalbistaa/confessly/internal/models"
	"github.com/sujalbistaa/confessly/internal/notify"
	"github.com/sujalbistaa/confessly/internal/ws"
)

const backgroundTimeout = 45 * time.Second

// Env carries the handlers' dependencies.
type Env struct {
	Store     *db.Store
	Hub       *ws.Hub
	Assistant assistant.Responder
	Notifier  notify.Notifier
	// BaseURL is the public origin used in share links.
	BaseURL string

	auth       moderatorAuth
	background sync.WaitGroup
	stop       chan struct{}
	stopOnce   sync.Once
}

// Wait blocks until follow-up work started by earlier requests is done.
func (e *Env) Wait() {
	e.background.Wait()
}

// Close stops the rate limiter janitors and waits for follow-up work.
func (e *Env) Close() {
	e.stopOnce.Do(func() {
		if e.stop != nil {
			close(e.stop)
		}
	})
	e.Wait()
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

// respondError maps store and validation errors to status codes.
func respondError(c *gin.Context, err error, action string) {
	switch {
	case isNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, models.ErrInvalidDraft):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		log.Printf("Error trying to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

// publish broadcasts a change to every live client.
func (e *Env) publish(table, eventType string, v interface{}) {
	if e.Hub == nil {
		return
	}
	if err := e.Hub.Publish(table, eventType, v); err != nil {
		log.Printf("Error broadcasting %s %s: %v", table, eventType, err)
	}
}

// parseCursor reads a keyset cursor from the time and id query parameters.
func parseCursor(c *gin.Context, timeKey, idKey string) (*models.Cursor, error) {
	raw := c.Query(timeKey)
	if raw == "" {
		if c.Query(idKey) != "" {
			return nil, fmt.Errorf("%s requires %s", idKey, timeKey)
		}
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", timeKey, err)
	}
	return &models.Cursor{CreatedAt: t.UTC(), ID: c.Query(idKey)}, nil
}

func (e *Env) ListConfessions(c *gin.Context) {
	q := models.ConfessionQuery{Category: models.Category(c.DefaultQuery("category", string(models.CategoryAll)))}
	if !q.Category.ValidFilter() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
		return
	}

	var err error
	if q.Before, err = parseCursor(c, "before", "before_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.After, err = parseCursor(c, "after", "after_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Before != nil && q.After != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Use either before or after, not both"})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		q.Limit = min(limit, db.MaxPageSize)
	}

	confessions, err := e.Store.ListConfessions(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "fetch confessions")
		return
	}
	c.JSON(http.StatusOK, confessions)
}

func (e *Env) GetConfession(c *gin.Context) {
	confession, err := e.Store.GetConfession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "fetch confession")
		return
	}
	c.JSON(http.StatusOK, confession)
}

func (e *Env) ListComments(c *gin.Context) {
	comments, err := e.Store.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "fetch comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (e *Env) CreateConfession(c *gin.Context) {
	var input models.ConfessionDraft
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	confession, err := e.Store.CreateConfession(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "create confession")
		return
	}

	e.publish(models.TableConfessions, models.EventInsert, confession)
	e.background.Add(1)
	go e.followUp(confession)

	c.JSON(http.StatusCreated, confession)
}

// followUp posts the assistant's reply and emails moderators. Failures are
// logged only; the confession itself is already stored.
func (e *Env) followUp(confession models.Confession) {
	defer e.background.Done()
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	if e.Assistant != nil {
		reply, err := e.Assistant.Respond(ctx, confession)
		if err != nil {
			log.Printf("Error generating reply for %s: %v", confession.ID, err)
		} else {
			comment, err := e.Store.CreateComment(ctx, confession.ID, models.CommentDraft{Body: reply, Gender: models.GenderAI})
			if err != nil {
				log.Printf("Error storing reply for %s: %v", confession.ID, err)
			} else {
				e.publish(models.TableComments, models.EventInsert, comment)
			}
		}
	}

	if e.Notifier != nil {
		if err := e.Notifier.NotifyConfession(ctx, confession); err != nil {
			log.Printf("Error sending notification for %s: %v", confession.ID, err)
		}
	}
}

func (e *Env) CreateComment(c *gin.Context) {
	var input models.CommentDraft
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := input.Validate(false); err != nil {
		respondError(c, err, "create comment")
		return
	}
	comment, err := e.Store.CreateComment(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, err, "create comment")
		return
	}
	e.publish(models.TableComments, models.EventInsert, comment)
	c.JSON(http.StatusCreated, comment)
}

func (e *Env) LikeConfession(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := e.Store.IncrementLike(ctx, id); err != nil {
		respondError(c, err, "like confession")
		return
	}
	if confession, err := e.Store.GetConfession(ctx, id); err == nil {
		e.publish(models.TableConfessions, models.EventUpdate, confession)
	}
	c.Status(http.StatusNoContent)
}

func (e *Env) UpdateConfession(c *gin.Context) {
	var patch db.ConfessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	confession, err := e.Store.UpdateConfession(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, "update confession")
		return
	}
	e.publish(models.TableConfessions, models.EventUpdate, confession)
	c.JSON(http.StatusOK, confession)
}

func (e *Env) DeleteConfession(c *gin.Context) {
	confession, err := e.Store.DeleteConfession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "delete confession")
		return
	}
	e.publish(models.TableConfessions, models.EventDelete, confession)
	c.JSON(http.StatusOK, gin.H{"message": "Confession deleted"})
}

func (e *Env) DeleteComment(c *gin.Context) {
	comment, err := e.Store.DeleteComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "delete comment")
		return
	}
	e.publish(models.TableComments, models.EventDelete, comment)
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

// ModeratorStatus reports whether the caller's credentials allow moderation.
func (e *Env) ModeratorStatus(c *gin.Context) {
	ok := e.auth.enabled() && e.auth.check(c) == nil
	c.JSON(http.StatusOK, gin.H{"moderator": ok})
}

func (e *Env) Healthz(c *gin.Context) {
	sqlDB, err := e.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		log.Printf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
