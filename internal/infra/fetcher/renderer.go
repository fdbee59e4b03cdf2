// Package fetcher renders external pages into clean article text. It backs
// the rendered sources: a plain HTTP fetch followed by Mozilla-Readability
// extraction, with SSRF validation on every request and redirect hop.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"

	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/resilience/retry"
	"pulse-digest/internal/usecase/fetch"
)

const userAgent = "PulseDigestBot/1.0"

// Page is the extracted result of rendering one URL.
type Page struct {
	Title       string
	Excerpt     string
	TextContent string
}

// document is a fetched page before extraction. finalURL reflects redirects.
type document struct {
	html     []byte
	finalURL *url.URL
}

// Renderer fetches pages over HTTP and extracts readable article content.
// One circuit breaker and one concurrency cap cover all rendered sources.
// Safe for concurrent use.
type Renderer struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	sem     chan struct{}
	config  RenderConfig
}

// NewRenderer creates a Renderer. Redirect targets are re-validated on every
// hop and the chain is cut at MaxRedirects.
func NewRenderer(config RenderConfig) *Renderer {
	r := &Renderer{
		breaker: circuitbreaker.New(circuitbreaker.PageRenderConfig()),
		sem:     make(chan struct{}, config.Concurrency),
		config:  config,
	}

	r.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= r.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", fetch.ErrTooManyRedirects, len(via))
			}
			// リダイレクト先も同じ SSRF チェックを通す
			return validateURL(req.URL.String(), r.config.DenyPrivateIPs)
		},
	}

	return r
}

// Render fetches urlStr and extracts its readable content.
func (r *Renderer) Render(ctx context.Context, urlStr string) (*Page, error) {
	doc, err := r.fetchDocument(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	page, err := extract(doc)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "page rendered",
		slog.String("url", urlStr),
		slog.String("title", page.Title),
		slog.Int("text_length", len(page.TextContent)))

	return page, nil
}

// FetchHTML fetches urlStr and returns the raw HTML. Listing extraction
// parses it for article links.
func (r *Renderer) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	doc, err := r.fetchDocument(ctx, urlStr)
	if err != nil {
		return "", err
	}
	return string(doc.html), nil
}

// fetchDocument acquires a render slot, validates the URL and runs the
// request through the circuit breaker.
func (r *Renderer) fetchDocument(ctx context.Context, urlStr string) (*document, error) {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := validateURL(urlStr, r.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.doFetch(ctx, urlStr)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("page renderer unavailable: circuit breaker open")
		}
		return nil, err
	}

	return result.(*document), nil
}

// doFetch performs the HTTP request with the per-URL timeout and size cap.
func (r *Renderer) doFetch(ctx context.Context, urlStr string) (interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RecordContentFetchFailed(time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: request exceeded %v", fetch.ErrTimeout, r.config.Timeout)
		}
		// Surface redirect-validation errors hidden inside url.Error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("page request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordContentFetchFailed(time.Since(start))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	limitedReader := io.LimitReader(resp.Body, r.config.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		metrics.RecordContentFetchFailed(time.Since(start))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(htmlBytes)) > r.config.MaxBodySize {
		metrics.RecordContentFetchFailed(time.Since(start))
		return nil, fmt.Errorf("%w: response exceeds %d bytes", fetch.ErrBodyTooLarge, r.config.MaxBodySize)
	}

	finalURL, _ := url.Parse(urlStr)
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	metrics.RecordContentFetchSuccess(time.Since(start), len(htmlBytes))

	return &document{html: htmlBytes, finalURL: finalURL}, nil
}

// extract runs Readability over a fetched document.
func extract(doc *document) (*Page, error) {
	article, err := readability.FromReader(bytes.NewReader(doc.html), doc.finalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetch.ErrExtractFailed, err)
	}

	text := article.TextContent
	if text == "" {
		// 一部のページは TextContent が空で Content のみ返る
		text = article.Content
	}
	if text == "" {
		return nil, fmt.Errorf("%w: no readable content found", fetch.ErrExtractFailed)
	}

	return &Page{
		Title:       article.Title,
		Excerpt:     article.Excerpt,
		TextContent: text,
	}, nil
}
