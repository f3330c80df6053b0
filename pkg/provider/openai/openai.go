package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/retry"
	"github.com/richard-senior/football-analyzer/pkg/search"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	// pages of search results read into the prompt
	contextPages = 3
	// markdown kept from each page
	pageBudget = 4000
)

// ErrEmptyReply is returned when the completion carries no content
var ErrEmptyReply = errors.New("chat completion returned no content")

// Message is a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Searcher finds pages about a fixture
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]search.Result, error)
}

// PageReader converts a page to markdown
type PageReader func(ctx context.Context, url string, maxLen int) (*search.Page, error)

// Client talks to any OpenAI compatible chat completions endpoint
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	Season  string
}

// NewClient returns a client for the default model and endpoint
func NewClient(apiKey string) *Client {
	return &Client{APIKey: apiKey, Model: DefaultModel, BaseURL: DefaultBaseURL, Season: "2025-2026"}
}

// Complete returns the content of the first choice. With jsonMode set the
// endpoint is asked for a JSON object.
func (c *Client) Complete(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	req := chatRequest{Model: c.Model, Messages: messages}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}

	var resp chatResponse
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	if err := transport.PostJSON(ctx, endpoint, headers, req, &resp); err != nil {
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return "", retry.Permanent(fmt.Errorf("chat completion: %w", err))
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

// StatsFetcher returns a stats.Fetcher that grounds the model with web search
// results, since a plain chat endpoint has no search of its own. Pages that
// cannot be read are skipped.
func (c *Client) StatsFetcher(searcher Searcher, read PageReader) stats.Fetcher {
	return func(ctx context.Context, home, away, league string, b poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
		query := fmt.Sprintf("%s vs %s %s %s goals scored conceded form", home, away, league, c.Season)
		results, err := searcher.Search(ctx, query, contextPages+2)
		if err != nil {
			return nil, err
		}

		var sb strings.Builder
		used := 0
		for _, r := range results {
			if used == contextPages {
				break
			}
			page, err := read(ctx, r.URL, pageBudget)
			if err != nil {
				logger.Warn("skipping page "+r.URL+":", err)
				continue
			}
			fmt.Fprintf(&sb, "## %s\nSource: %s\n\n%s\n\n", page.Title, page.URL, page.Markdown)
			used++
		}
		if used == 0 {
			for _, r := range results {
				fmt.Fprintf(&sb, "- %s: %s (%s)\n", r.Title, r.Description, r.URL)
			}
		}
		logger.Info(fmt.Sprintf("Requesting stats from chat model for %s v %s with %d pages", home, away, used))

		messages := []Message{
			{Role: "system", Content: "You are a football statistics assistant. Use the supplied web pages. Answer with a single JSON object."},
			{Role: "user", Content: "Web search results:\n\n" + sb.String()},
			{Role: "user", Content: stats.Prompt(home, away, league, c.Season)},
		}
		reply, err := c.Complete(ctx, messages, true)
		if err != nil {
			return nil, err
		}
		logger.Debug("chat stats reply:", reply)
		return stats.Decode(reply, b)
	}
}
