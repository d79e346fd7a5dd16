// Package assistant writes the short supportive comment that follows every
// new confession.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sujalbistaa/confessly/internal/config"
	"github.com/sujalbistaa/confessly/internal/models"
)

const (
	defaultModel   = "gpt-4o-mini"
	requestTimeout = 30 * time.Second
	maxReplyTokens = 120
)

var errEmptyReply = errors.New("model returned no reply")

// Responder produces a reply to a confession.
type Responder interface {
	Respond(ctx context.Context, c models.Confession) (string, error)
}

// New returns a remote responder when an endpoint and key are configured and
// the canned responder otherwise.
func New(cfg config.AssistantConfig) Responder {
	if !cfg.Enabled() {
		log.Println("assistant: no AI endpoint configured, using canned replies")
		return Canned{}
	}
	return &Chat{
		Endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		Key:      cfg.Key,
		Model:    cfg.Model,
		Client:   &http.Client{Timeout: requestTimeout},
	}
}

// Chat calls an OpenAI-compatible chat completions API and falls back to a
// canned reply when the call fails.
type Chat struct {
	Endpoint string
	Key      string
	Model    string
	Client   *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *Chat) Respond(ctx context.Context, c models.Confession) (string, error) {
	reply, err := a.complete(ctx, c)
	if err != nil {
		log.Printf("assistant: falling back to canned reply for %s: %v", c.ID, err)
		return Canned{}.Respond(ctx, c)
	}
	return reply, nil
}

func (a *Chat) complete(ctx context.Context, c models.Confession) (string, error) {
	model := a.Model
	if model == "" {
		model = defaultModel
	}
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Category: %s\nTitle: %s\n\n%s", c.Category, c.Title, c.Body)},
		},
		Temperature: 0.7,
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Key)

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errEmptyReply
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", errEmptyReply
	}
	return clip(reply, models.MaxCommentLength), nil
}

const systemPrompt = "You reply to anonymous confessions on a supportive community board. " +
	"Write one or two warm, non-judgemental sentences. Do not give medical or legal advice, " +
	"do not ask for personal details and never claim to be human."

// Canned picks a reply from a fixed set. The choice depends only on the
// confession id, so retries give the same answer.
type Canned struct{}

var cannedReplies = map[models.Category][]string{
	models.CategoryLove: {
		"Matters of the heart are never simple. Thank you for trusting us with this.",
		"Whatever happens next, what you feel is real and it counts.",
	},
	models.CategoryEducation: {
		"School pressure is heavy. One step at a time is still progress.",
		"Your worth is not a grade. Be kind to yourself this week.",
	},
	models.CategoryFamily: {
		"Family can be the hardest place to be understood. You are heard here.",
	},
	models.CategoryFriendship: {
		"Good friends are worth the awkward conversations. Rooting for you.",
	},
	models.CategoryWork: {
		"Work stress follows us home. I hope you find a moment to breathe today.",
	},
	models.CategoryHealth: {
		"Taking your health seriously is brave. Please reach out to someone you trust too.",
	},
	models.CategoryFunny: {
		"This made my day. Thank you for sharing!",
	},
}

var genericReplies = []string{
	"Thank you for sharing this. Saying it out loud is a big step.",
	"You are not alone in this. Sending you some quiet support.",
	"That sounds like a lot to carry. I hope writing it down helped a little.",
}

func (Canned) Respond(_ context.Context, c models.Confession) (string, error) {
	replies := cannedReplies[c.Category]
	if len(replies) == 0 {
		replies = genericReplies
	}
	h := fnv.New32a()
	h.Write([]byte(c.ID))
	return replies[int(h.Sum32()%uint32(len(replies)))], nil
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
