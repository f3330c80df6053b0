package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/retry"
	"github.com/richard-senior/football-analyzer/pkg/stats"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// ErrEmptyReply is returned when the model produced no text, e.g. when the reply was blocked
var ErrEmptyReply = errors.New("gemini returned no text")

// OddsPrompt asks for a per fixture reading of a bookmaker screenshot
const OddsPrompt = `This is a screenshot of football odds from a bookmaker.
For every match give:
⚽ [Team A] vs [Team B] ([kick-off time])
📊 1=[X] | X=[X] | 2=[X]
💡 Implied: 1=[X]% | X=[X]% | 2=[X]%
🎯 Pick: [what and why, 1 line]
⚽ Goals: [Over/Under and why]
---
Implied = 1/odds × 100.`

// Part is one element of a request: text or inline binary data
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// Blob is base64 encoded binary content
type Blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []any     `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Client calls the Gemini generateContent REST endpoint
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

// TextPart builds a text part
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart builds an inline image part
func ImagePart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}}
}

// Generate sends a single user turn and returns the concatenated text of the
// first candidate. With search set the model may ground its answer with Google Search.
// Client errors (4xx other than 429) are marked permanent for the retry policy.
func (c *Client) Generate(ctx context.Context, parts []Part, search bool) (string, error) {
	req := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if search {
		req.Tools = []any{map[string]any{"google_search": map[string]any{}}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(c.Model), url.QueryEscape(c.APIKey))

	var resp generateResponse
	if err := transport.PostJSON(ctx, endpoint, nil, req, &resp); err != nil {
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return "", retry.Permanent(fmt.Errorf("gemini: %w", err))
		}
		return "", fmt.Errorf("gemini: %w", err)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyReply, resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyReply
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w (finish reason %s)", ErrEmptyReply, resp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

// StatsFetcher returns a stats.Fetcher backed by search grounded generation
func (c *Client) StatsFetcher() stats.Fetcher {
	return func(ctx context.Context, home, away, league string, b poisson.LeagueBaseline) (*stats.TeamMatchStats, error) {
		logger.Info(fmt.Sprintf("Requesting stats from gemini for %s v %s (%s)", home, away, league))
		reply, err := c.Generate(ctx, []Part{TextPart(stats.Prompt(home, away, league, c.Season))}, true)
		if err != nil {
			return nil, err
		}
		logger.Debug("gemini stats reply:", reply)
		return stats.Decode(reply, b)
	}
}

// AnalyzeOddsImage reads a bookmaker screenshot (JPEG) and returns the model's analysis verbatim
func (c *Client) AnalyzeOddsImage(ctx context.Context, jpeg []byte) (string, error) {
	if len(jpeg) == 0 {
		return "", fmt.Errorf("empty image")
	}
	logger.Info("Requesting odds analysis from gemini, image bytes:", len(jpeg))
	return c.Generate(ctx, []Part{TextPart(OddsPrompt), ImagePart("image/jpeg", jpeg)}, false)
}
