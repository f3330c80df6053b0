package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

// DefaultBaseURL is the Google Custom Search JSON API endpoint
const DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Result represents a single search result
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Google runs queries against a Custom Search engine
type Google struct {
	APIKey   string
	EngineID string
	BaseURL  string
}

// NewGoogle returns a client for the given API key and search engine id (cx)
func NewGoogle(apiKey, engineID string) *Google {
	return &Google{APIKey: apiKey, EngineID: engineID, BaseURL: DefaultBaseURL}
}

// Search returns up to num results (1..10, default 5) for query.
// No results is not an error.
func (g *Google) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if g.APIKey == "" || g.EngineID == "" {
		return nil, fmt.Errorf("google search is not configured")
	}
	if num <= 0 || num > 10 {
		num = 5
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("key", g.APIKey)
	params.Add("cx", g.EngineID)
	params.Add("num", strconv.Itoa(num))
	searchURL := fmt.Sprintf("%s?%s", g.BaseURL, params.Encode())

	logger.Info("Performing Google Search for query", query)

	var searchResponse struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := transport.GetJSON(ctx, searchURL, &searchResponse); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(searchResponse.Items))
	for _, item := range searchResponse.Items {
		results = append(results, Result{
			Title:       item.Title,
			URL:         item.Link,
			Description: item.Snippet,
		})
	}
	return results, nil
}
