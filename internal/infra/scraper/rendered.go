package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/resilience/retry"
	"pulse-digest/internal/usecase/fetch"
)

// maxListingLinks caps how many listed pages one source renders per pass.
const maxListingLinks = 10

// RenderedAdapter harvests a source that publishes no feed. Without a
// listing selector the endpoint itself becomes one dated snapshot item; with
// one, each linked page is rendered into its own item.
type RenderedAdapter struct {
	source   entity.Source
	renderer PageRenderer
}

// NewRenderedAdapter creates an adapter for a rendered catalog entry.
func NewRenderedAdapter(source entity.Source, renderer PageRenderer) *RenderedAdapter {
	return &RenderedAdapter{source: source, renderer: renderer}
}

// Name returns the catalog source name.
func (a *RenderedAdapter) Name() string { return a.source.Name }

// Kind returns the adapter family.
func (a *RenderedAdapter) Kind() entity.SourceKind { return entity.SourceKindRendered }

// Fetch renders the source. Rendered items carry no publication timestamp of
// their own, so they are dated at the harvest instant.
func (a *RenderedAdapter) Fetch(ctx context.Context, since, now time.Time) ([]entity.FeedItem, error) {
	if a.source.ListingSelector != "" {
		return a.fetchListing(ctx, now)
	}
	return a.fetchSnapshot(ctx, now)
}

// fetchSnapshot renders the endpoint into a single per-day item.
func (a *RenderedAdapter) fetchSnapshot(ctx context.Context, now time.Time) ([]entity.FeedItem, error) {
	page, err := a.renderer.Render(ctx, a.source.Endpoint)
	if err != nil {
		return nil, a.wrapRenderError(err)
	}

	item := &entity.WebItem{
		GUID:        a.source.Name + ":" + now.UTC().Format("2006-01-02"),
		SourceName:  a.source.Name,
		Title:       "Latest from " + a.source.Name,
		URL:         a.source.Endpoint,
		Description: page.Excerpt,
		Content:     page.TextContent,
		Category:    a.source.Category,
		PublishedAt: now,
	}
	return []entity.FeedItem{entity.NewWebFeedItem(item)}, nil
}

// fetchListing renders every page linked from the endpoint's listing. A
// single page failing is logged and skipped; the source fails only when no
// page rendered at all.
func (a *RenderedAdapter) fetchListing(ctx context.Context, now time.Time) ([]entity.FeedItem, error) {
	listingHTML, err := a.renderer.FetchHTML(ctx, a.source.Endpoint)
	if err != nil {
		return nil, a.wrapRenderError(err)
	}

	links, err := a.extractLinks(listingHTML)
	if err != nil {
		return nil, &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureParse, Err: err}
	}
	if len(links) == 0 {
		return nil, &fetch.SourceError{
			Source: a.source.Name,
			Kind:   fetch.FailureParse,
			Err:    fmt.Errorf("no links matched selector %q", a.source.ListingSelector),
		}
	}

	items := make([]entity.FeedItem, 0, len(links))
	var lastErr error
	for _, link := range links {
		page, err := a.renderer.Render(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			slog.WarnContext(ctx, "listing page render failed, skipping",
				slog.String("source", a.source.Name),
				slog.String("url", link),
				slog.Any("error", err))
			continue
		}

		title := page.Title
		if title == "" {
			title = "Latest from " + a.source.Name
		}

		items = append(items, entity.NewWebFeedItem(&entity.WebItem{
			GUID:        guidFromURL(link),
			SourceName:  a.source.Name,
			Title:       title,
			URL:         link,
			Description: page.Excerpt,
			Content:     page.TextContent,
			Category:    a.source.Category,
			PublishedAt: now,
		}))
	}

	if len(items) == 0 {
		return nil, a.wrapRenderError(lastErr)
	}
	return items, nil
}

// extractLinks pulls article links out of the listing HTML in page order,
// resolved against the endpoint, deduplicated and capped.
func (a *RenderedAdapter) extractLinks(listingHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	base, err := url.Parse(a.source.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	links := make([]string, 0, maxListingLinks)
	seen := make(map[string]struct{}, maxListingLinks)

	doc.Find(a.source.ListingSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			// セレクタがリンク以外に当たった場合は中の a を探す
			href, ok = sel.Find("a").Attr("href")
		}
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""

		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}

		if len(links) >= maxListingLinks {
			metrics.RecordContentFetchSkipped()
			return
		}
		links = append(links, link)
	})

	return links, nil
}

// wrapRenderError classifies a renderer failure for the coordinator.
func (a *RenderedAdapter) wrapRenderError(err error) error {
	if err == nil {
		return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureRender, Err: errors.New("render produced no pages")}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, fetch.ErrInvalidURL) || errors.Is(err, fetch.ErrPrivateIP):
		return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureValidation, Err: err}
	case errors.Is(err, fetch.ErrTimeout):
		return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureRender, Transient: true, Err: err}
	case errors.Is(err, fetch.ErrExtractFailed) ||
		errors.Is(err, fetch.ErrBodyTooLarge) ||
		errors.Is(err, fetch.ErrTooManyRedirects):
		return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureRender, Err: err}
	}

	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		transient := httpErr.StatusCode >= 500 ||
			httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode == http.StatusRequestTimeout
		return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureHTTP, Transient: transient, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureHTTP, Transient: true, Err: err}
	}

	// Breaker-open and other unclassified failures wait for the next run.
	return &fetch.SourceError{Source: a.source.Name, Kind: fetch.FailureRender, Err: err}
}
