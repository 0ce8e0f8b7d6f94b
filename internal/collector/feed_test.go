package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleck31/crypto-dashboard/internal/models"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Crypto News</title>
    <item>
      <title>Bitcoin &amp; Ethereum rally</title>
      <link> https://example.com/rally </link>
      <description>Markets move up.</description>
      <pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate>
      <dc:creator>Jane Doe</dc:creator>
      <category>markets</category>
      <category>btc</category>
    </item>
    <item>
      <title>Exchange hacked</title>
      <link>https://example.com/hack</link>
      <description>Funds drained from hot wallet.</description>
      <pubDate>not a date</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Chain Updates</title>
  <entry>
    <title>Protocol upgrade shipped</title>
    <link rel="self" href="https://example.com/self"/>
    <link rel="alternate" href="https://example.com/upgrade"/>
    <summary>The upgrade is live.</summary>
    <published>2026-03-02T08:00:00Z</published>
    <author><name>Core Team</name></author>
    <category term="upgrade"/>
  </entry>
  <entry>
    <title>Weekly digest</title>
    <link href="https://example.com/digest"/>
    <content>All the news.</content>
    <updated>2026-03-01T12:00:00Z</updated>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	entries, err := ParseFeed([]byte(sampleRSS), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "Bitcoin & Ethereum rally", first.Title)
	assert.Equal(t, "https://example.com/rally", first.Link)
	assert.Equal(t, "Jane Doe", first.Author)
	assert.Equal(t, []string{"markets", "btc"}, first.Categories)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), first.Published.UTC())

	// Unparsable date falls back to roughly now instead of failing.
	assert.WithinDuration(t, time.Now().UTC(), entries[1].Published, time.Minute)
}

func TestParseAtom(t *testing.T) {
	entries, err := ParseFeed([]byte(sampleAtom), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "Protocol upgrade shipped", first.Title)
	// Alternate link wins over self.
	assert.Equal(t, "https://example.com/upgrade", first.Link)
	assert.Equal(t, "The upgrade is live.", first.Description)
	assert.Equal(t, "Core Team", first.Author)
	assert.Equal(t, []string{"upgrade"}, first.Categories)

	second := entries[1]
	assert.Equal(t, "https://example.com/digest", second.Link)
	// Content stands in for a missing summary, updated for missing published.
	assert.Equal(t, "All the news.", second.Description)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), second.Published.UTC())
}

func TestParseRSSWithAtomSelfLink(t *testing.T) {
	// Real-world RSS 2.0 feeds declare the Atom namespace for their
	// <atom:link rel="self"> element; that must not route the document to
	// the Atom parser.
	const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>Coin Wire</title>
    <atom:link href="https://example.com/feed" rel="self" type="application/rss+xml"/>
    <item>
      <title>Stablecoin issuer audited</title>
      <link>https://example.com/audit</link>
      <description>Reserves confirmed.</description>
      <pubDate>Tue, 03 Mar 2026 09:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

	entries, err := ParseFeed([]byte(feed), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Stablecoin issuer audited", entries[0].Title)
	assert.Equal(t, "https://example.com/audit", entries[0].Link)
}

func TestParseAtomFirstAlternateWins(t *testing.T) {
	const feed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Two alternates</title>
    <link rel="alternate" href="https://example.com/first"/>
    <link rel="alternate" href="https://example.com/second"/>
  </entry>
</feed>`

	entries, err := ParseFeed([]byte(feed), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/first", entries[0].Link)
}

func TestParseFeedMaxItems(t *testing.T) {
	entries, err := ParseFeed([]byte(sampleRSS), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFeedCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	src := models.NewSourceConfig(models.SourceTypeMarket, "test-feed", "Test Feed", models.CollectorTypeFeed, models.CollectorConfig{
		Feed: &models.FeedConfig{FeedURL: srv.URL, MaxItems: 10},
	})

	result := NewFeedCollector().Collect(context.Background(), src)

	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Stats.TotalFetched)
	assert.Equal(t, "Bitcoin & Ethereum rally", result.Items[0].Data["title"])
	assert.Equal(t, "https://example.com/rally", result.Items[0].Data["link"])
	// Feed items carry no native id; identity comes from the content hash.
	assert.Empty(t, result.Items[0].NativeID)
}

func TestFeedCollectUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := models.NewSourceConfig(models.SourceTypeMarket, "down-feed", "Down Feed", models.CollectorTypeFeed, models.CollectorConfig{
		Feed: &models.FeedConfig{FeedURL: srv.URL},
	})

	result := NewFeedCollector().Collect(context.Background(), src)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "503")
}

func TestFeedValidateConfig(t *testing.T) {
	c := NewFeedCollector()

	assert.False(t, c.ValidateConfig(models.CollectorConfig{}).Valid)
	assert.False(t, c.ValidateConfig(models.CollectorConfig{Feed: &models.FeedConfig{}}).Valid)
	assert.True(t, c.ValidateConfig(models.CollectorConfig{Feed: &models.FeedConfig{FeedURL: "https://example.com/rss"}}).Valid)
}
