package mail

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"pulse-digest/internal/domain/entity"
)

// digestTmpl renders the digest document. Item fields come from feeds and
// the model, so everything passes through html/template escaping.
var digestTmpl = template.Must(template.New("digest").Parse(digestTemplate))

type digestData struct {
	Name      string
	Intro     string
	Generated string
	Items     []digestItem
}

type digestItem struct {
	Rank      int
	Title     string
	URL       string
	Source    string
	Published string
	Summary   string
	Score     string
}

// renderDigest produces the digest HTML: greeting, intro paragraph, then
// one block per ranked item.
func renderDigest(profile *entity.Profile, items []entity.RankedItem, intro string, now time.Time) (string, error) {
	data := digestData{
		Name:      profile.Name,
		Intro:     intro,
		Generated: now.Format("Monday, January 2, 2006"),
		Items:     make([]digestItem, 0, len(items)),
	}

	for i, item := range items {
		data.Items = append(data.Items, digestItem{
			Rank:      i + 1,
			Title:     item.Summary.Title,
			URL:       item.Summary.URL,
			Source:    item.SourceName,
			Published: item.PublishedAt.Format("Jan 2 15:04"),
			Summary:   item.Summary.Summary,
			Score:     fmt.Sprintf("%.1f", item.Score),
		})
	}

	var b strings.Builder
	if err := digestTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

const digestTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:24px;background-color:#f4f4f5;font-family:-apple-system,'Segoe UI',Roboto,sans-serif;color:#1f2328;">
<div style="max-width:640px;margin:0 auto;background-color:#ffffff;border-radius:8px;padding:32px;">
  <h1 style="font-size:20px;margin:0 0 4px;">AI News Digest</h1>
  <p style="color:#6b7280;font-size:13px;margin:0 0 24px;">{{.Generated}}</p>
  <p style="margin:0 0 8px;">Hi {{.Name}},</p>
  <p style="margin:0 0 24px;">{{.Intro}}</p>
{{- range .Items}}
  <div style="border-top:1px solid #e5e7eb;padding:16px 0;">
    <h2 style="font-size:16px;margin:0 0 4px;"><a href="{{.URL}}" style="color:#1a56db;text-decoration:none;">{{.Rank}}. {{.Title}}</a></h2>
    <p style="color:#6b7280;font-size:12px;margin:0 0 8px;">{{.Source}} | {{.Published}} | score {{.Score}}</p>
    <p style="margin:0;font-size:14px;line-height:1.5;">{{.Summary}}</p>
  </div>
{{- end}}
  <p style="color:#9ca3af;font-size:12px;border-top:1px solid #e5e7eb;margin-top:8px;padding-top:16px;">Generated from your configured sources.</p>
</div>
</body>
</html>
`
