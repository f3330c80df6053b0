package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/transport"
)

// DefaultMaxMarkdown is the default length limit of a converted page
const DefaultMaxMarkdown = 10000

const truncatedNote = "\n\n... (content truncated due to size)"

// noise is removed before conversion, it only costs prompt space
const noise = "script, style, noscript, nav, footer, header, aside, form, iframe, svg"

// Page is a web page converted to markdown
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// PageMarkdown fetches url and converts its main content to markdown of at
// most maxLen bytes (DefaultMaxMarkdown when maxLen <= 0)
func PageMarkdown(ctx context.Context, pageURL string, maxLen int) (*Page, error) {
	logger.Info("Getting HTML from:", pageURL)
	body, err := transport.GetHtml(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return HTMLToMarkdown(pageURL, body, maxLen)
}

// HTMLToMarkdown strips page furniture from html and converts the rest.
// Relative links are resolved against the domain of pageURL.
func HTMLToMarkdown(pageURL string, html []byte, maxLen int) (*Page, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxMarkdown
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(noise).Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	domain, err := extractDomain(pageURL)
	if err != nil {
		logger.Warn("Failed to extract domain from URL:", err)
		domain = ""
	}

	markdown, err := htmltomarkdown.ConvertString(cleaned, converter.WithDomain(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if len(markdown) > maxLen {
		markdown = truncateUTF8(markdown, maxLen) + truncatedNote
	}
	return &Page{URL: pageURL, Title: title, Markdown: markdown}, nil
}

// extractDomain extracts the scheme and host from a URL string
func extractDomain(urlString string) (string, error) {
	if !strings.HasPrefix(urlString, "http://") && !strings.HasPrefix(urlString, "https://") {
		urlString = "https://" + urlString
	}
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}
	if parsedURL.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", urlString)
	}
	return parsedURL.Scheme + "://" + parsedURL.Hostname(), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
