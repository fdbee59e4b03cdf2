package scraper

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pulse-digest/internal/resilience/retry"
)

// timedtextBase is the public caption endpoint. It answers 200 with an empty
// body when the video has no caption track.
const timedtextBase = "https://video.google.com/timedtext"

const maxTranscriptSize = 5 * 1024 * 1024

// TranscriptClient fetches video transcripts from the caption endpoint. A
// missing transcript is not an error: FetchTranscript returns ("", nil) and
// the item is summarized from its description alone.
type TranscriptClient struct {
	client  *http.Client
	baseURL string
}

// NewTranscriptClient creates a transcript client on the public endpoint.
func NewTranscriptClient(client *http.Client) *TranscriptClient {
	return &TranscriptClient{client: client, baseURL: timedtextBase}
}

// timedtextDoc mirrors the caption XML: a flat list of timed text nodes.
type timedtextDoc struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript downloads and flattens the English caption track.
func (t *TranscriptClient) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	endpoint := t.baseURL + "?lang=en&v=" + url.QueryEscape(videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create transcript request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("transcript endpoint returned %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptSize))
	if err != nil {
		return "", fmt.Errorf("read transcript body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// 字幕トラックなし
		return "", nil
	}

	var doc timedtextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, text := range doc.Texts {
		// キャプションはHTMLエンティティで二重エスケープされていることがある
		cleaned := strings.TrimSpace(html.UnescapeString(text.Value))
		if cleaned != "" {
			parts = append(parts, cleaned)
		}
	}

	return strings.Join(parts, " "), nil
}
