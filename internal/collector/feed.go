package collector

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

const defaultMaxFeedItems = 20

// atomNamespace identifies an Atom document by its root element. RSS 2.0
// feeds commonly declare the same namespace for an <atom:link rel="self">
// element, so detection must look at the root, not the raw bytes.
const atomNamespace = "http://www.w3.org/2005/Atom"

// FeedCollector fetches RSS 2.0 and Atom feeds. Parsing is lenient: a
// malformed item or an unparsable publish date degrades to defaults instead
// of failing the poll.
type FeedCollector struct {
	HTTPClient *http.Client
}

// NewFeedCollector creates a feed collector with a bounded-timeout client.
func NewFeedCollector() *FeedCollector {
	return &FeedCollector{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *FeedCollector) Type() string { return models.CollectorTypeFeed }

// ValidateConfig checks the feed variant of the collector config.
func (c *FeedCollector) ValidateConfig(cfg models.CollectorConfig) ValidationResult {
	if cfg.Feed == nil {
		return ValidationResult{Valid: false, Errors: []string{"feed config is required for rss_feed collector"}}
	}
	if cfg.Feed.FeedURL == "" {
		return ValidationResult{Valid: false, Errors: []string{"feed_url is required"}}
	}
	return ValidationResult{Valid: true}
}

// Collect fetches and parses the configured feed.
func (c *FeedCollector) Collect(ctx context.Context, src *models.SourceConfig) *models.CollectorResult {
	cfg := src.CollectorConfig.Feed
	if cfg == nil {
		return failedResult("source has no feed collector config")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.FeedURL, nil)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to create feed request: %v", err))
	}
	req.Header.Set("User-Agent", "crypto-dashboard/1.0 feed collector")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to fetch feed %s: %v", cfg.FeedURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failedResult(fmt.Sprintf("feed %s returned status %d", cfg.FeedURL, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to read feed body: %v", err))
	}

	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxFeedItems
	}

	entries, err := ParseFeed(body, maxItems)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to parse feed %s: %v", cfg.FeedURL, err))
	}

	result := &models.CollectorResult{Success: true}
	for _, e := range entries {
		data := map[string]any{
			"title":       e.Title,
			"link":        e.Link,
			"description": e.Description,
			"published":   e.Published.UTC().Format(time.RFC3339),
		}
		if e.Author != "" {
			data["author"] = e.Author
		}
		if len(e.Categories) > 0 {
			data["categories"] = e.Categories
		}
		result.Items = append(result.Items, models.CollectedItem{Data: data, Raw: data})
	}
	result.Stats.TotalFetched = len(result.Items)
	return result
}

// FeedEntry is one normalized item or entry from either feed format.
type FeedEntry struct {
	Title       string
	Link        string
	Description string
	Published   time.Time
	Author      string
	Categories  []string
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Author      string   `xml:"author"`
	Creator     string   `xml:"creator"` // dc:creator
	Categories  []string `xml:"category"`
}

// ParseFeed auto-detects RSS vs Atom by the document's root element and
// extracts up to maxItems normalized entries. Unparsable publish dates fall
// back to the parse time rather than failing.
func ParseFeed(body []byte, maxItems int) ([]FeedEntry, error) {
	root, err := rootElement(body)
	if err != nil {
		return nil, fmt.Errorf("invalid feed document: %w", err)
	}
	if root.Local == "feed" && (root.Space == "" || root.Space == atomNamespace) {
		return parseAtom(body, maxItems)
	}
	return parseRSS(body, maxItems)
}

// rootElement returns the name of the document's first start element.
func rootElement(body []byte) (xml.Name, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.Name{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name, nil
		}
	}
}

func parseRSS(body []byte, maxItems int) ([]FeedEntry, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid RSS document: %w", err)
	}

	items := doc.Channel.Items
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	out := make([]FeedEntry, 0, len(items))
	for _, it := range items {
		author := it.Author
		if author == "" {
			author = it.Creator
		}
		out = append(out, FeedEntry{
			Title:       cleanText(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: cleanText(it.Description),
			Published:   parseFeedDate(it.PubDate),
			Author:      cleanText(author),
			Categories:  cleanAll(it.Categories),
		})
	}
	return out, nil
}

func parseAtom(body []byte, maxItems int) ([]FeedEntry, error) {
	var doc struct {
		Entries []struct {
			Title string `xml:"title"`
			Links []struct {
				Href string `xml:"href,attr"`
				Rel  string `xml:"rel,attr"`
			} `xml:"link"`
			Summary string `xml:"summary"`
			Content string `xml:"content"`
			Updated string `xml:"updated"`
			Publish string `xml:"published"`
			Author  struct {
				Name string `xml:"name"`
			} `xml:"author"`
			Categories []struct {
				Term string `xml:"term,attr"`
			} `xml:"category"`
		} `xml:"entry"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid Atom document: %w", err)
	}

	entries := doc.Entries
	if len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	out := make([]FeedEntry, 0, len(entries))
	for _, en := range entries {
		link := ""
		for _, l := range en.Links {
			// The first alternate link wins; fall back to the first link
			// of any kind.
			if l.Rel == "alternate" {
				link = l.Href
				break
			}
			if link == "" {
				link = l.Href
			}
		}
		desc := en.Summary
		if desc == "" {
			desc = en.Content
		}
		published := en.Publish
		if published == "" {
			published = en.Updated
		}
		var cats []string
		for _, c := range en.Categories {
			if c.Term != "" {
				cats = append(cats, c.Term)
			}
		}
		out = append(out, FeedEntry{
			Title:       cleanText(en.Title),
			Link:        strings.TrimSpace(link),
			Description: cleanText(desc),
			Published:   parseFeedDate(published),
			Author:      cleanText(en.Author.Name),
			Categories:  cats,
		})
	}
	return out, nil
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

// parseFeedDate tries the common feed date layouts; on failure the
// ingestion time stands in so a sloppy feed never hard-fails a poll.
func parseFeedDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range feedDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	if s != "" {
		log.Printf("FeedCollector: unparsable publish date %q, falling back to now", s)
	}
	return time.Now().UTC()
}

func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

func cleanAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if c := cleanText(s); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
