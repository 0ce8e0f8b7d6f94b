package models

import "time"

// ApplyFields merges a partial field set into the project. Known top-level
// fields are mapped onto their typed counterparts; anything else lands in
// the category-specific attribute bag. Unknown or badly typed values are
// ignored rather than erroring, matching the lenient policy applied to
// everything that originates from upstream feeds or the resolution stage.
func (p *Project) ApplyFields(fields map[string]any) {
	for key, val := range fields {
		switch key {
		case "name":
			if s, ok := val.(string); ok && s != "" {
				p.Name = s
			}
		case "category":
			if s, ok := val.(string); ok && ValidCategories[ProjectCategory(s)] {
				p.Category = ProjectCategory(s)
			}
		case "description":
			if s, ok := val.(string); ok {
				p.Description = s
			}
		case "logo_url":
			if s, ok := val.(string); ok {
				p.LogoURL = s
			}
		case "website":
			if s, ok := val.(string); ok {
				p.Website = s
			}
		case "twitter":
			if s, ok := val.(string); ok {
				p.Social.Twitter = s
			}
		case "telegram":
			if s, ok := val.(string); ok {
				p.Social.Telegram = s
			}
		case "discord":
			if s, ok := val.(string); ok {
				p.Social.Discord = s
			}
		case "github":
			if s, ok := val.(string); ok {
				p.Social.GitHub = s
			}
		case "health_score":
			if n, ok := toInt(val); ok {
				p.HealthScore = clampScore(n)
			}
		case "news_sentiment":
			switch Sentiment(toStringOr(val, "")) {
			case SentimentPositive, SentimentNeutral, SentimentNegative:
				p.NewsSentiment = Sentiment(val.(string))
			}
		default:
			if p.Attributes == nil {
				p.Attributes = make(map[string]any)
			}
			p.Attributes[key] = val
		}
	}
	p.UpdatedAt = time.Now().UTC()
}

func toInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func toStringOr(val any, fallback string) string {
	if s, ok := val.(string); ok {
		return s
	}
	return fallback
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
