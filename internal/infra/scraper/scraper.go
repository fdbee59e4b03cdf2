// Package scraper implements the source adapters: syndication feeds (web
// RSS/Atom and video channel feeds) parsed with gofeed, and rendered pages
// fetched through a PageRenderer. Adapters perform a single attempt per
// call; the fetch coordinator owns the retry budget.
package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/infra/fetcher"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/usecase/fetch"
)

const userAgent = "PulseDigestBot/1.0"

// clockSkewTolerance absorbs publisher clock drift at the window edge.
const clockSkewTolerance = 5 * time.Minute

// PageRenderer is the rendered-adapter view of the page fetcher.
type PageRenderer interface {
	Render(ctx context.Context, url string) (*fetcher.Page, error)
	FetchHTML(ctx context.Context, url string) (string, error)
}

// withinWindow reports whether ts falls inside the harvest window [since,
// now], with clockSkewTolerance of slack at both edges. Entries dated past
// the upper edge are publisher clock errors, not news.
func withinWindow(ts, since, now time.Time) bool {
	if ts.Before(since.Add(-clockSkewTolerance)) {
		return false
	}
	return !ts.After(now.Add(clockSkewTolerance))
}

// guidFromURL derives a stable id for feeds that omit entry ids.
func guidFromURL(rawURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// canonicalURL lowercases scheme and host and drops the fragment.
func canonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

// sortNewestFirst orders items reverse-chronologically in place.
func sortNewestFirst(items []entity.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt().After(items[j].PublishedAt())
	})
}

// fetchFeed parses a feed URL through the shared feed breaker. Failures come
// back as *fetch.SourceError, except context errors which pass through.
func fetchFeed(ctx context.Context, source, feedURL string, client *http.Client, breaker *circuitbreaker.CircuitBreaker) (*gofeed.Feed, error) {
	cbResult, err := breaker.Execute(func() (interface{}, error) {
		fp := gofeed.NewParser()
		fp.UserAgent = userAgent
		fp.Client = client
		return fp.ParseURLWithContext(feedURL, ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.WarnContext(ctx, "feed fetch circuit breaker open, request rejected",
				slog.String("source", source),
				slog.String("url", feedURL),
				slog.String("state", breaker.State().String()))
			return nil, &fetch.SourceError{Source: source, Kind: fetch.FailureHTTP, Err: err}
		}
		return nil, classifyFeedError(source, err)
	}
	return cbResult.(*gofeed.Feed), nil
}

// classifyFeedError decides whether a feed failure is worth another attempt.
func classifyFeedError(source string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		transient := httpErr.StatusCode >= 500 ||
			httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode == http.StatusRequestTimeout
		return &fetch.SourceError{Source: source, Kind: fetch.FailureHTTP, Transient: transient, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &fetch.SourceError{Source: source, Kind: fetch.FailureHTTP, Transient: true, Err: err}
	}

	return &fetch.SourceError{Source: source, Kind: fetch.FailureParse, Err: err}
}
