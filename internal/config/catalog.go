package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pulse-digest/internal/domain/entity"
)

// Catalog is the full set of harvested publications: video channels plus web
// sources. It is loaded once at startup; adding a syndication source is a
// data change only.
type Catalog struct {
	Channels   []entity.Channel `yaml:"channels"`
	WebSources []entity.Source  `yaml:"web_sources"`
}

// LoadCatalog loads the source catalog from a YAML file. An empty path
// returns the built-in default catalog.
// The path parameter is expected to come from a trusted source (command-line argument or SOURCES_PATH).
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	return &catalog, nil
}

// Validate checks every catalog entry and rejects duplicate names, since the
// source name keys failure accounting and metrics labels.
func (c *Catalog) Validate() error {
	if len(c.Channels) == 0 && len(c.WebSources) == 0 {
		return fmt.Errorf("catalog must contain at least one channel or web source")
	}

	seen := make(map[string]bool, len(c.Channels)+len(c.WebSources))

	for i := range c.Channels {
		if err := c.Channels[i].Validate(); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		if seen[c.Channels[i].Name] {
			return fmt.Errorf("duplicate source name %q", c.Channels[i].Name)
		}
		seen[c.Channels[i].Name] = true
	}

	for i := range c.WebSources {
		if err := c.WebSources[i].Validate(); err != nil {
			return fmt.Errorf("web source %d: %w", i, err)
		}
		if seen[c.WebSources[i].Name] {
			return fmt.Errorf("duplicate source name %q", c.WebSources[i].Name)
		}
		seen[c.WebSources[i].Name] = true
	}

	return nil
}

// SourceCount returns the total number of catalog entries.
func (c *Catalog) SourceCount() int {
	return len(c.Channels) + len(c.WebSources)
}

// DefaultCatalog returns the built-in catalog: 3 video channels and 20 web
// sources across official blogs, research, news and safety.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Channels: []entity.Channel{
			{Name: "Varun Mayya", ChannelID: "UCyR2Ct3pDOeZSRyZH5hPO-Q"},
			{Name: "Krish Naik", ChannelID: "UCNU_lfiiWBdtULKOw6X0Dig"},
			{Name: "Codebasics", ChannelID: "UCh9nVJoWXmFb7sLApWGcLPQ"},
		},
		WebSources: []entity.Source{
			// Official AI company blogs
			{
				Name:     "OpenAI Blog",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://openai.com/blog",
				FeedURL:  "https://openai.com/news/rss.xml",
			},
			{
				Name:     "Anthropic Blog",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://www.anthropic.com/news",
				FeedURL:  "https://www.anthropic.com/news/rss",
			},
			{
				Name:     "Google DeepMind",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://deepmind.google/",
				FeedURL:  "https://deepmind.google/discover/blog/rss.xml",
			},
			{
				Name:     "Google Research",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://research.google/",
				FeedURL:  "https://research.google/blog/rss/",
			},
			{
				Name:     "Meta AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://ai.meta.com/",
				FeedURL:  "https://ai.meta.com/blog/rss/",
			},
			{
				Name:     "Hugging Face",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://huggingface.co/blog",
				FeedURL:  "https://huggingface.co/blog/feed.xml",
			},
			{
				Name:     "EleutherAI",
				Kind:     entity.SourceKindRendered,
				Category: entity.CategoryOfficial,
				Endpoint: "https://www.eleuther.ai/",
			},
			{
				Name:     "Stability AI",
				Kind:     entity.SourceKindRendered,
				Category: entity.CategoryOfficial,
				Endpoint: "https://stability.ai/news",
			},
			{
				Name:     "LAION AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryOfficial,
				Endpoint: "https://laion.ai/blog/",
				FeedURL:  "https://laion.ai/blog/feed/",
			},
			// Research papers and preprint servers
			{
				Name:     "arXiv AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryResearch,
				Endpoint: "https://arxiv.org/list/cs.AI/recent",
				FeedURL:  "http://export.arxiv.org/rss/cs.AI",
			},
			{
				Name:     "arXiv ML",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryResearch,
				Endpoint: "https://arxiv.org/list/cs.LG/recent",
				FeedURL:  "http://export.arxiv.org/rss/cs.LG",
			},
			{
				Name:     "Papers With Code",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryResearch,
				Endpoint: "https://paperswithcode.com/",
				FeedURL:  "https://paperswithcode.com/feeds/latest/",
			},
			// AI news and media
			{
				Name:     "VentureBeat AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryNews,
				Endpoint: "https://venturebeat.com/category/ai/",
				FeedURL:  "https://venturebeat.com/category/ai/feed/",
			},
			{
				Name:     "TechCrunch AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryNews,
				Endpoint: "https://techcrunch.com/tag/artificial-intelligence/",
				FeedURL:  "https://techcrunch.com/tag/artificial-intelligence/feed/",
			},
			{
				Name:     "MIT Technology Review",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryNews,
				Endpoint: "https://www.technologyreview.com/topic/artificial-intelligence/",
				FeedURL:  "https://www.technologyreview.com/topic/artificial-intelligence/feed",
			},
			{
				Name:     "The Decoder",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryNews,
				Endpoint: "https://the-decoder.com/",
				FeedURL:  "https://the-decoder.com/feed/",
			},
			{
				Name:     "Ars Technica AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategoryNews,
				Endpoint: "https://arstechnica.com/information-technology/",
				FeedURL:  "https://arstechnica.com/feed/category/information-technology/",
			},
			// AI safety, alignment and policy
			{
				Name:     "Alignment Forum",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategorySafety,
				Endpoint: "https://www.alignmentforum.org/",
				FeedURL:  "https://www.alignmentforum.org/feed.xml",
			},
			{
				Name:     "LessWrong AI",
				Kind:     entity.SourceKindSyndication,
				Category: entity.CategorySafety,
				Endpoint: "https://www.lesswrong.com/tag/artificial-intelligence",
				FeedURL:  "https://www.lesswrong.com/feed.xml?view=community-rss&karmaThreshold=30",
			},
			{
				Name:     "Center for AI Safety",
				Kind:     entity.SourceKindRendered,
				Category: entity.CategorySafety,
				Endpoint: "https://safe.ai/",
			},
		},
	}
}
