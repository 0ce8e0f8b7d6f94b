package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleck31/crypto-dashboard/internal/mapping"
	"github.com/aleck31/crypto-dashboard/internal/models"
)

func restSource(baseURL string, cfg models.RESTConfig) *models.SourceConfig {
	cfg.BaseURL = baseURL
	return models.NewSourceConfig(models.SourceTypeProject, "test", "Test", models.CollectorTypeREST, models.CollectorConfig{REST: &cfg})
}

func TestRESTCollectAppliesMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "a", "profile": {"name": "Alpha"}, "score": "100"},
			{"id": "b", "profile": {"name": "Beta"}, "score": "50"}
		]`))
	}))
	defer srv.Close()

	src := restSource(srv.URL, models.RESTConfig{
		Endpoints: []models.RESTEndpoint{{
			Path: "/items",
			Mapping: mapping.Mapping{
				"id":    {Source: "id"},
				"name":  {Source: "profile.name"},
				"score": {Source: "score", Transform: mapping.TransformNumber},
			},
		}},
	})

	result := NewRESTCollector().Collect(context.Background(), src)

	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Stats.TotalFetched)

	assert.Equal(t, "a", result.Items[0].NativeID)
	assert.Equal(t, "Alpha", result.Items[0].Data["name"])
	assert.Equal(t, 100.0, result.Items[0].Data["score"])
	assert.Equal(t, "b", result.Items[1].NativeID)
	assert.Equal(t, "Beta", result.Items[1].Data["name"])
	assert.Equal(t, 50.0, result.Items[1].Data["score"])

	// Raw payload is preserved alongside mapped data.
	assert.Contains(t, result.Items[0].Raw, "profile")
}

func TestRESTCollectItemsPathAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"coins": [{"id": "one"}, {"id": "two"}, {"id": "three"}]}}`))
	}))
	defer srv.Close()

	src := restSource(srv.URL, models.RESTConfig{
		ItemsPath: "data.coins",
		Endpoints: []models.RESTEndpoint{{Path: "/trending", Limit: 2}},
	})

	result := NewRESTCollector().Collect(context.Background(), src)

	require.True(t, result.Success)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "one", result.Items[0].NativeID)
	assert.Equal(t, "two", result.Items[1].NativeID)
}

func TestRESTCollectRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id": "ok"}]`))
	}))
	defer srv.Close()

	src := restSource(srv.URL, models.RESTConfig{
		Endpoints: []models.RESTEndpoint{{Path: "/flaky"}},
	})

	result := NewRESTCollector().Collect(context.Background(), src)

	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRESTCollectPartialEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[{"id": "good"}]`))
	}))
	defer srv.Close()

	src := restSource(srv.URL, models.RESTConfig{
		RequestDelayMs: 1,
		Endpoints: []models.RESTEndpoint{
			{Path: "/good"},
			{Path: "/bad"},
		},
	})

	result := NewRESTCollector().Collect(context.Background(), src)

	// One endpoint surviving keeps the run successful, with the failure noted.
	assert.True(t, result.Success)
	assert.Len(t, result.Items, 1)
	assert.Contains(t, result.Error, "/bad")
}

func TestRESTCollectAllEndpointsFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := restSource(srv.URL, models.RESTConfig{
		Endpoints: []models.RESTEndpoint{{Path: "/down"}},
	})

	result := NewRESTCollector().Collect(context.Background(), src)

	assert.False(t, result.Success)
	assert.Empty(t, result.Items)
	assert.NotEmpty(t, result.Error)
}

func TestRESTValidateConfig(t *testing.T) {
	c := NewRESTCollector()

	t.Run("missing variant", func(t *testing.T) {
		res := c.ValidateConfig(models.CollectorConfig{})
		assert.False(t, res.Valid)
	})

	t.Run("missing base url and endpoints", func(t *testing.T) {
		res := c.ValidateConfig(models.CollectorConfig{REST: &models.RESTConfig{}})
		assert.False(t, res.Valid)
		assert.Len(t, res.Errors, 2)
	})

	t.Run("valid", func(t *testing.T) {
		res := c.ValidateConfig(models.CollectorConfig{REST: &models.RESTConfig{
			BaseURL:   "https://api.llama.fi",
			Endpoints: []models.RESTEndpoint{{Path: "/protocols"}},
		}})
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
	})
}
