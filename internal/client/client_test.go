package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/confessly/internal/feed"
	"github.com/sujalbistaa/confessly/internal/models"
)

var _ feed.Source = (*Client)(nil)

func TestListConfessionsEncodesQuery(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 123000, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/confessions", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Love", q.Get("category"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, at.Format(time.RFC3339Nano), q.Get("before"))
		assert.Equal(t, "c-9", q.Get("before_id"))
		assert.Empty(t, q.Get("after"))
		json.NewEncoder(w).Encode([]models.Confession{{ID: "c-8", CreatedAt: at.Add(-time.Minute)}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client())
	got, err := c.ListConfessions(context.Background(), models.ConfessionQuery{
		Category: models.CategoryLove,
		Limit:    10,
		Before:   &models.Cursor{CreatedAt: at, ID: "c-9"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-8", got[0].ID)
}

func TestWritesAndErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/confessions", func(w http.ResponseWriter, r *http.Request) {
		var d models.ConfessionDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Confession{ID: "new", Title: d.Title})
	})
	mux.HandleFunc("POST /api/confessions/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid draft: body is required"}`))
	})
	mux.HandleFunc("POST /api/confessions/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "gone" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Not found"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/confessions/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html>oops</html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL, nil)
	ctx := context.Background()

	created, err := c.CreateConfession(ctx, models.ConfessionDraft{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)

	_, err = c.CreateComment(ctx, "new", models.CommentDraft{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "body is required")

	require.NoError(t, c.IncrementLike(ctx, "new"))
	assert.ErrorIs(t, c.IncrementLike(ctx, "gone"), ErrNotFound)

	_, err = c.ListComments(ctx, "new")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Empty(t, apiErr.Message)
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", New("http://localhost:8080/", nil).WebsocketURL())
	assert.Equal(t, "wss://confess.example/ws", New("https://confess.example", nil).WebsocketURL())
}
