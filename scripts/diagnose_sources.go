package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
)

// SourceDiagnostic represents the diagnostic result for a single catalog entry
type SourceDiagnostic struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"` // "video", "syndication", "rendered"
	URL          string `json:"url"`
	Status       string `json:"status"` // "OK", "HTTP_ERROR", "PARSE_ERROR", "EMPTY", "TIMEOUT", "SKIPPED"
	HTTPCode     int    `json:"http_code"`
	ItemCount    int    `json:"item_count"`
	LatestDate   string `json:"latest_date"`
	ErrorMessage string `json:"error_message,omitempty"`
	ResponseTime int64  `json:"response_time_ms"`
}

const videoFeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

func main() {
	catalog, err := config.LoadCatalog(os.Getenv("SOURCES_PATH"))
	if err != nil {
		log.Fatalf("Failed to load source catalog: %v", err)
	}
	if err := catalog.Validate(); err != nil {
		log.Fatalf("Invalid source catalog: %v", err)
	}

	log.Printf("Diagnosing %d catalog sources...\n", catalog.SourceCount())

	diagnostics := make([]SourceDiagnostic, 0, catalog.SourceCount())
	total := catalog.SourceCount()
	n := 0

	for _, ch := range catalog.Channels {
		n++
		log.Printf("[%d/%d] Diagnosing channel: %s", n, total, ch.Name)
		diag := diagnoseFeedURL(ch.Name, "video", videoFeedBase+ch.ChannelID, 30*time.Second)
		diagnostics = append(diagnostics, diag)

		// Rate limiting to be nice to servers
		time.Sleep(500 * time.Millisecond)
	}

	for _, src := range catalog.WebSources {
		n++
		log.Printf("[%d/%d] Diagnosing source: %s", n, total, src.Name)

		if src.Kind == entity.SourceKindRendered {
			// レンダリング系はフィードを持たないので到達性だけ確認する
			diagnostics = append(diagnostics, diagnoseEndpoint(src, 30*time.Second))
		} else {
			url := src.FeedURL
			if url == "" {
				url = src.Endpoint
			}
			diagnostics = append(diagnostics, diagnoseFeedURL(src.Name, string(src.Kind), url, 30*time.Second))
		}

		time.Sleep(500 * time.Millisecond)
	}

	generateReport(diagnostics)
	generateJSONReport(diagnostics)
}

func diagnoseFeedURL(name, kind, url string, timeout time.Duration) SourceDiagnostic {
	diag := SourceDiagnostic{
		Name: name,
		Kind: kind,
		URL:  url,
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.UserAgent = "PulseDigest-Diagnostic/1.0"

	feed, err := parser.ParseURLWithContext(url, ctx)
	diag.ResponseTime = time.Since(startTime).Milliseconds()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status = "TIMEOUT"
			diag.ErrorMessage = fmt.Sprintf("Request timeout after %v", timeout)
			return diag
		}
		if httpErr, ok := err.(gofeed.HTTPError); ok {
			diag.Status = "HTTP_ERROR"
			diag.HTTPCode = httpErr.StatusCode
			diag.ErrorMessage = httpErr.Error()
			return diag
		}
		diag.Status = "PARSE_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	diag.HTTPCode = http.StatusOK
	diag.ItemCount = len(feed.Items)
	if len(feed.Items) > 0 && feed.Items[0].PublishedParsed != nil {
		diag.LatestDate = feed.Items[0].PublishedParsed.Format(time.RFC3339)
	}

	if diag.ItemCount == 0 {
		diag.Status = "EMPTY"
		diag.ErrorMessage = "Feed has no items"
		return diag
	}

	diag.Status = "OK"
	return diag
}

func diagnoseEndpoint(src entity.Source, timeout time.Duration) SourceDiagnostic {
	diag := SourceDiagnostic{
		Name: src.Name,
		Kind: string(src.Kind),
		URL:  src.Endpoint,
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Endpoint, nil)
	if err != nil {
		diag.Status = "REQUEST_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}
	req.Header.Set("User-Agent", "PulseDigest-Diagnostic/1.0")

	resp, err := http.DefaultClient.Do(req)
	diag.ResponseTime = time.Since(startTime).Milliseconds()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status = "TIMEOUT"
			diag.ErrorMessage = fmt.Sprintf("Request timeout after %v", timeout)
		} else {
			diag.Status = "HTTP_ERROR"
			diag.ErrorMessage = err.Error()
		}
		return diag
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	diag.HTTPCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		diag.Status = "HTTP_ERROR"
		diag.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return diag
	}

	// 本文の解釈はヘッドレスレンダラの仕事なのでここでは件数を数えない
	diag.Status = "OK"
	return diag
}

// writef is a helper to write to file and handle errors
func writef(f *os.File, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(f, format, args...)
	return err
}

func generateReport(diagnostics []SourceDiagnostic) {
	f, err := os.Create("source_diagnostic_report.txt")
	if err != nil {
		log.Printf("Failed to create report file: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close report file: %v", err)
		}
	}()

	_ = writef(f, "===============================================\n")
	_ = writef(f, "Source Catalog Diagnostic Report\n")
	_ = writef(f, "Generated: %s\n", time.Now().Format(time.RFC3339))
	_ = writef(f, "Total Sources: %d\n", len(diagnostics))
	_ = writef(f, "===============================================\n\n")

	// Summary statistics
	statusCount := make(map[string]int)
	var okCount, errorCount int
	for _, d := range diagnostics {
		statusCount[d.Status]++
		if d.Status == "OK" {
			okCount++
		} else {
			errorCount++
		}
	}

	_ = writef(f, "SUMMARY:\n")
	_ = writef(f, "  ✅ Working: %d (%.1f%%)\n", okCount, float64(okCount)/float64(len(diagnostics))*100)
	_ = writef(f, "  ❌ Broken: %d (%.1f%%)\n", errorCount, float64(errorCount)/float64(len(diagnostics))*100)
	_ = writef(f, "\nSTATUS BREAKDOWN:\n")
	for status, count := range statusCount {
		_ = writef(f, "  %s: %d\n", status, count)
	}
	_ = writef(f, "\n")

	_ = writef(f, "DETAILED RESULTS:\n")
	_ = writef(f, "===============================================\n\n")

	_ = writef(f, "✅ WORKING SOURCES (%d):\n", okCount)
	_ = writef(f, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status == "OK" {
			_ = writef(f, "Name: %s\n", d.Name)
			_ = writef(f, "  URL: %s\n", d.URL)
			_ = writef(f, "  Kind: %s | Items: %d | Latest: %s\n", d.Kind, d.ItemCount, d.LatestDate)
			_ = writef(f, "  Response: %dms | HTTP: %d\n", d.ResponseTime, d.HTTPCode)
			_ = writef(f, "\n")
		}
	}

	_ = writef(f, "\n❌ BROKEN SOURCES (%d):\n", errorCount)
	_ = writef(f, "-------------------------------------------\n")
	for _, d := range diagnostics {
		if d.Status != "OK" {
			_ = writef(f, "Name: %s\n", d.Name)
			_ = writef(f, "  URL: %s\n", d.URL)
			_ = writef(f, "  Status: %s | HTTP: %d\n", d.Status, d.HTTPCode)
			_ = writef(f, "  Error: %s\n", d.ErrorMessage)
			_ = writef(f, "  Response: %dms\n", d.ResponseTime)
			_ = writef(f, "\n")
		}
	}

	log.Println("✅ Text report generated: source_diagnostic_report.txt")
}

func generateJSONReport(diagnostics []SourceDiagnostic) {
	f, err := os.Create("source_diagnostic_report.json")
	if err != nil {
		log.Printf("Failed to create JSON report: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close JSON report file: %v", err)
		}
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnostics); err != nil {
		log.Printf("Failed to write JSON report: %v", err)
		return
	}

	log.Println("✅ JSON report generated: source_diagnostic_report.json")
}
