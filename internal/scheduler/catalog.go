package scheduler

import (
	"github.com/aleck31/crypto-dashboard/internal/mapping"
	"github.com/aleck31/crypto-dashboard/internal/models"
)

// DefaultCatalog returns the seed source configurations: TVL and market
// endpoints plus the major crypto news feeds.
func DefaultCatalog() []*models.SourceConfig {
	defillama := models.NewSourceConfig(
		models.SourceTypeProject, "defillama", "DeFiLlama Protocols",
		models.CollectorTypeREST,
		models.CollectorConfig{REST: &models.RESTConfig{
			BaseURL: "https://api.llama.fi",
			Endpoints: []models.RESTEndpoint{
				{
					Path:  "/protocols",
					Limit: 50,
					Mapping: mapping.Mapping{
						"id":       {Source: "slug"},
						"name":     {Source: "name"},
						"category": {Source: "category", Transform: mapping.TransformLowercase},
						"tvl":      {Source: "tvl", Transform: mapping.TransformNumber},
						"chain":    {Source: "chain"},
						"logo":     {Source: "logo"},
						"website":  {Source: "url"},
						"twitter":  {Source: "twitter"},
					},
				},
			},
		}},
	)
	defillama.IntervalMinutes = 360
	defillama.Priority = 10

	coingecko := models.NewSourceConfig(
		models.SourceTypeMarket, "coingecko-trending", "CoinGecko Trending",
		models.CollectorTypeREST,
		models.CollectorConfig{REST: &models.RESTConfig{
			BaseURL:   "https://api.coingecko.com/api/v3",
			ItemsPath: "coins",
			Endpoints: []models.RESTEndpoint{
				{
					Path: "/search/trending",
					Mapping: mapping.Mapping{
						"title":  {Source: "item.name"},
						"symbol": {Source: "item.symbol", Transform: mapping.TransformUppercase},
						"link":   {Source: "item.slug", Default: ""},
						"rank":   {Source: "item.market_cap_rank", Transform: mapping.TransformNumber},
					},
				},
			},
		}},
	)
	coingecko.IntervalMinutes = 60
	coingecko.Priority = 20

	coindesk := models.NewSourceConfig(
		models.SourceTypeMarket, "coindesk", "CoinDesk News",
		models.CollectorTypeFeed,
		models.CollectorConfig{Feed: &models.FeedConfig{
			FeedURL:  "https://www.coindesk.com/arc/outboundfeeds/rss/",
			MaxItems: 20,
		}},
	)
	coindesk.IntervalMinutes = 30
	coindesk.Priority = 30

	cointelegraph := models.NewSourceConfig(
		models.SourceTypeMarket, "cointelegraph", "Cointelegraph News",
		models.CollectorTypeFeed,
		models.CollectorConfig{Feed: &models.FeedConfig{
			FeedURL:  "https://cointelegraph.com/rss",
			MaxItems: 20,
		}},
	)
	cointelegraph.IntervalMinutes = 30
	cointelegraph.Priority = 30

	decrypt := models.NewSourceConfig(
		models.SourceTypeMarket, "decrypt", "Decrypt News",
		models.CollectorTypeFeed,
		models.CollectorConfig{Feed: &models.FeedConfig{
			FeedURL:  "https://decrypt.co/feed",
			MaxItems: 20,
		}},
	)
	decrypt.IntervalMinutes = 45
	decrypt.Priority = 40

	return []*models.SourceConfig{defillama, coingecko, coindesk, cointelegraph, decrypt}
}
