package transport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/richard-senior/football-analyzer/internal/logger"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	// maxBodyBytes bounds every response body we read
	maxBodyBytes = 20 << 20
	// CABundleEnv names a PEM file of extra root certificates, for corporate proxies
	CABundleEnv = "EXTRA_CA_BUNDLE"
)

var (
	httpClient *http.Client
	clientMu   sync.Mutex
)

// StatusError is returned for any non 2xx response
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// getCABundle returns the extra CA bundle if one is configured
func getCABundle() ([]byte, error) {
	bundlePath := os.Getenv(CABundleEnv)
	if bundlePath == "" {
		return nil, nil
	}
	caCert, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle %s: %w", bundlePath, err)
	}
	return caCert, nil
}

// GetCustomHTTPClient returns the shared HTTP client, creating it on first use
func GetCustomHTTPClient() *http.Client {
	clientMu.Lock()
	defer clientMu.Unlock()
	if httpClient != nil {
		return httpClient
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		logger.Warn("Failed to get system cert pool", err)
		rootCAs = x509.NewCertPool()
	}

	extraCert, err := getCABundle()
	if err != nil {
		logger.Warn("Proceeding without extra CA bundle", err)
	} else if extraCert != nil {
		if ok := rootCAs.AppendCertsFromPEM(extraCert); !ok {
			logger.Warn("Failed to append extra CA certificates")
		} else {
			logger.Info("Added extra CA certificates to root CAs")
		}
	}

	httpClient = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: rootCAs},
			Proxy:           http.ProxyFromEnvironment,
		},
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	return httpClient
}

// SetHTTPClient replaces the shared client, for tests and custom timeouts
func SetHTTPClient(c *http.Client) {
	clientMu.Lock()
	defer clientMu.Unlock()
	httpClient = c
}

// GetHtml fetches a web page the way a browser would and returns the decoded body
func GetHtml(ctx context.Context, htmlUrl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, htmlUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create html request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Referer", "http://www.google.com/")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return do(req)
}

// GetBytes downloads a resource such as an uploaded photo
func GetBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return do(req)
}

// GetJSON fetches url and decodes the JSON body into out
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	body, err := do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON sends in as a JSON body and decodes the JSON reply into out
func PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	body, err := do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Host, err)
	}
	return nil
}

func do(req *http.Request) ([]byte, error) {
	resp, err := GetCustomHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	reader, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		// the query string may carry an API key
		return nil, &StatusError{URL: req.URL.Host + req.URL.Path, StatusCode: resp.StatusCode, Body: snippet}
	}
	return data, nil
}

// decodedBody handles compression (Content-Encoding) when the transport has not already done so
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	contentEncoding := resp.Header.Get("Content-Encoding")
	switch contentEncoding {
	case "gzip":
		logger.Debug("Handling gzip compressed content")
		r, err := NewGzipReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return r, nil
	case "deflate":
		logger.Debug("Handling deflate compressed content")
		return NewDeflateReader(resp.Body)
	case "br":
		logger.Debug("Handling brotli compressed content")
		return NewBrotliReader(resp.Body)
	case "", "identity":
	default:
		logger.Warn("Unknown content encoding:", contentEncoding)
	}
	return io.NopCloser(resp.Body), nil
}

// NewGzipReader creates a gzip reader from the provided io.ReadCloser
func NewGzipReader(r io.ReadCloser) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// NewDeflateReader creates a deflate reader from the provided io.ReadCloser
func NewDeflateReader(r io.ReadCloser) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

// NewBrotliReader creates a brotli reader from the provided io.ReadCloser
func NewBrotliReader(r io.ReadCloser) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}
