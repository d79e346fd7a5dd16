package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/confessly/internal/config"
	"github.com/sujalbistaa/confessly/internal/models"
)

var sample = models.Confession{
	ID:       "6f1c2b1e-0000-4000-8000-000000000001",
	Title:    "I failed my exam",
	Body:     "and I have not told my parents",
	Category: models.CategoryEducation,
}

func TestNewPicksImplementation(t *testing.T) {
	assert.IsType(t, Canned{}, New(config.AssistantConfig{}))
	assert.IsType(t, &Chat{}, New(config.AssistantConfig{Endpoint: "https://llm.example/v1/", Key: "k"}))
}

func TestCannedIsDeterministic(t *testing.T) {
	ctx := context.Background()
	first, err := Canned{}.Respond(ctx, sample)
	require.NoError(t, err)
	second, _ := Canned{}.Respond(ctx, sample)
	assert.Equal(t, first, second)
	assert.Contains(t, cannedReplies[models.CategoryEducation], first)

	other := sample
	other.Category = models.CategorySecrets
	reply, _ := Canned{}.Respond(ctx, other)
	assert.Contains(t, genericReplies, reply)
}

func TestChatCallsCompletionsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, sample.Title)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  You will get through this.  "}}]}`))
	}))
	defer srv.Close()

	a := &Chat{Endpoint: srv.URL + "/v1", Key: "secret", Model: "test-model", Client: srv.Client()}
	reply, err := a.Respond(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, "You will get through this.", reply)
}

func TestChatFallsBackOnFailure(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		"empty":  func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"choices":[]}`)) },
		"junk":   func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`<html>`)) },
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			a := &Chat{Endpoint: srv.URL, Key: "k", Client: srv.Client()}
			reply, err := a.Respond(context.Background(), sample)
			require.NoError(t, err)
			want, _ := Canned{}.Respond(context.Background(), sample)
			assert.Equal(t, want, reply)
		})
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("é", models.MaxCommentLength+20)
	got := clip(long, models.MaxCommentLength)
	assert.Equal(t, models.MaxCommentLength, utf8.RuneCountInString(got))
	assert.Equal(t, "short", clip("short", 10))
}
