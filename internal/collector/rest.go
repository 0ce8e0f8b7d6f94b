package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aleck31/crypto-dashboard/internal/mapping"
	"github.com/aleck31/crypto-dashboard/internal/models"
)

const (
	defaultRequestDelay = 1000 * time.Millisecond
	maxAttempts         = 3
	backoffUnit         = 1000 * time.Millisecond
	maxRateLimitWait    = 60 * time.Second
)

// RESTCollector iterates a list of endpoints against one base URL, applying
// the source's field mapping per item. Each endpoint owns its own retry
// budget; exhausting it skips that endpoint only, so partial results survive
// a flaky upstream.
type RESTCollector struct {
	HTTPClient *http.Client
}

// NewRESTCollector creates a REST collector with a bounded-timeout client.
func NewRESTCollector() *RESTCollector {
	return &RESTCollector{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RESTCollector) Type() string { return models.CollectorTypeREST }

// ValidateConfig checks the REST variant of the collector config.
func (c *RESTCollector) ValidateConfig(cfg models.CollectorConfig) ValidationResult {
	var errs []string
	if cfg.REST == nil {
		return ValidationResult{Valid: false, Errors: []string{"rest config is required for rest_api collector"}}
	}
	if cfg.REST.BaseURL == "" {
		errs = append(errs, "base_url is required")
	}
	if len(cfg.REST.Endpoints) == 0 {
		errs = append(errs, "at least one endpoint is required")
	}
	for i, ep := range cfg.REST.Endpoints {
		if ep.Path == "" {
			errs = append(errs, fmt.Sprintf("endpoint %d: path is required", i))
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Collect fetches every configured endpoint in order with a fixed
// inter-request delay and reports the aggregate result.
func (c *RESTCollector) Collect(ctx context.Context, src *models.SourceConfig) *models.CollectorResult {
	cfg := src.CollectorConfig.REST
	if cfg == nil {
		return failedResult("source has no rest collector config")
	}

	delay := defaultRequestDelay
	if cfg.RequestDelayMs > 0 {
		delay = time.Duration(cfg.RequestDelayMs) * time.Millisecond
	}

	result := &models.CollectorResult{Success: true}
	var failures []string

	for i, ep := range cfg.Endpoints {
		if i > 0 {
			if !sleepCtx(ctx, delay) {
				failures = append(failures, "collection cancelled")
				break
			}
		}

		items, err := c.fetchEndpoint(ctx, cfg, ep)
		if err != nil {
			log.Printf("RESTCollector: source %s endpoint %s failed after retries: %v", src.ID, ep.Path, err)
			failures = append(failures, fmt.Sprintf("%s: %v", ep.Path, err))
			continue
		}
		result.Items = append(result.Items, items...)
		result.Stats.TotalFetched += len(items)
	}

	if len(failures) > 0 {
		result.Error = strings.Join(failures, "; ")
		// All endpoints failing means the run itself failed.
		if len(failures) == len(cfg.Endpoints) {
			result.Success = false
		}
	}
	return result
}

// fetchEndpoint performs one endpoint request with bounded retries. Plain
// failures back off linearly (1s, 2s, 3s); HTTP 429 is a forced wait of
// min(60s, 1s*2^attempt) and never a terminal failure by itself.
func (c *RESTCollector) fetchEndpoint(ctx context.Context, cfg *models.RESTConfig, ep models.RESTEndpoint) ([]models.CollectedItem, error) {
	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}
	url := strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(ep.Path, "/")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, status, err := c.doRequest(ctx, method, url, cfg.Headers)
		switch {
		case err == nil && status == http.StatusOK:
			return c.parseItems(body, cfg, ep)
		case status == http.StatusTooManyRequests:
			wait := backoffUnit * time.Duration(1<<attempt)
			if wait > maxRateLimitWait {
				wait = maxRateLimitWait
			}
			log.Printf("RESTCollector: rate limited on %s, waiting %v before retry", url, wait)
			lastErr = fmt.Errorf("rate limited (429)")
			if !sleepCtx(ctx, wait) {
				return nil, ctx.Err()
			}
			continue
		default:
			if err == nil {
				err = fmt.Errorf("unexpected status %d", status)
			}
			lastErr = err
			if attempt < maxAttempts {
				if !sleepCtx(ctx, backoffUnit*time.Duration(attempt)) {
					return nil, ctx.Err()
				}
			}
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *RESTCollector) doRequest(ctx context.Context, method, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// parseItems decodes the response body, locates the item array and applies
// the endpoint's field mapping. Items that fail to decode are skipped, never
// fatal.
func (c *RESTCollector) parseItems(body []byte, cfg *models.RESTConfig, ep models.RESTEndpoint) ([]models.CollectedItem, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode JSON response: %w", err)
	}

	if cfg.ItemsPath != "" {
		if obj, ok := decoded.(map[string]any); ok {
			if nested, found := mapping.Lookup(obj, cfg.ItemsPath); found {
				decoded = nested
			}
		}
	}

	var rawItems []map[string]any
	switch v := decoded.(type) {
	case []any:
		for _, entry := range v {
			if obj, ok := entry.(map[string]any); ok {
				rawItems = append(rawItems, obj)
			}
		}
	case map[string]any:
		rawItems = append(rawItems, v)
	default:
		return nil, fmt.Errorf("unexpected response shape: %T", decoded)
	}

	if ep.Limit > 0 && len(rawItems) > ep.Limit {
		rawItems = rawItems[:ep.Limit]
	}

	items := make([]models.CollectedItem, 0, len(rawItems))
	for _, raw := range rawItems {
		data := raw
		if len(ep.Mapping) > 0 {
			data = mapping.Apply(raw, ep.Mapping)
		}
		item := models.CollectedItem{Raw: raw, Data: data}
		if id, ok := data["id"]; ok {
			item.NativeID = fmt.Sprintf("%v", id)
		}
		items = append(items, item)
	}
	return items, nil
}
