package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalShorthandAndFullRule(t *testing.T) {
	raw := `{
		"name": "profile.title",
		"tvl": {"source": "metrics.tvl", "transform": "number"},
		"chain": {"source": "chain", "default": "ethereum"}
	}`

	var m Mapping
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	assert.Equal(t, FieldRule{Source: "profile.title"}, m["name"])
	assert.Equal(t, TransformNumber, m["tvl"].Transform)
	assert.Equal(t, "ethereum", m["chain"].Default)
}

func TestLookup(t *testing.T) {
	record := map[string]any{
		"profile": map[string]any{"title": "Uniswap"},
		"tags":    []any{"defi", "dex"},
		"empty":   nil,
	}

	t.Run("nested map path", func(t *testing.T) {
		val, ok := Lookup(record, "profile.title")
		assert.True(t, ok)
		assert.Equal(t, "Uniswap", val)
	})

	t.Run("array index path", func(t *testing.T) {
		val, ok := Lookup(record, "tags.1")
		assert.True(t, ok)
		assert.Equal(t, "dex", val)
	})

	t.Run("missing segment", func(t *testing.T) {
		_, ok := Lookup(record, "profile.missing")
		assert.False(t, ok)
	})

	t.Run("out of range index", func(t *testing.T) {
		_, ok := Lookup(record, "tags.7")
		assert.False(t, ok)
	})

	t.Run("nil value counts as absent", func(t *testing.T) {
		_, ok := Lookup(record, "empty")
		assert.False(t, ok)
	})
}

func TestApply(t *testing.T) {
	m := Mapping{
		"name":     {Source: "profile.name"},
		"symbol":   {Source: "profile.symbol", Transform: TransformUppercase},
		"tvl":      {Source: "metrics.tvl", Transform: TransformNumber},
		"chain":    {Source: "chain", Default: "ethereum"},
		"category": {Source: "category", Transform: TransformLowercase},
		"missing":  {Source: "not.there"},
	}
	record := map[string]any{
		"profile":  map[string]any{"name": "Uniswap", "symbol": "uni"},
		"metrics":  map[string]any{"tvl": "4200000000"},
		"category": "DeFi",
	}

	out := Apply(record, m)

	assert.Equal(t, "Uniswap", out["name"])
	assert.Equal(t, "UNI", out["symbol"])
	assert.Equal(t, 4.2e9, out["tvl"])
	assert.Equal(t, "ethereum", out["chain"])
	assert.Equal(t, "defi", out["category"])
	_, present := out["missing"]
	assert.False(t, present)
}

func TestTransforms(t *testing.T) {
	t.Run("number from string", func(t *testing.T) {
		assert.Equal(t, 42.5, applyTransform("42.5", TransformNumber))
	})
	t.Run("number fallback on garbage", func(t *testing.T) {
		assert.Equal(t, "not-a-number", applyTransform("not-a-number", TransformNumber))
	})
	t.Run("date from RFC1123Z", func(t *testing.T) {
		assert.Equal(t, "2026-01-02T10:30:00Z", applyTransform("Fri, 02 Jan 2026 10:30:00 +0000", TransformDate))
	})
	t.Run("date from unix seconds", func(t *testing.T) {
		assert.Equal(t, "2021-01-01T00:00:00Z", applyTransform(float64(1609459200), TransformDate))
	})
	t.Run("array wraps scalars", func(t *testing.T) {
		assert.Equal(t, []any{"solo"}, applyTransform("solo", TransformArray))
	})
	t.Run("string from float drops trailing zeroes", func(t *testing.T) {
		assert.Equal(t, "3.5", applyTransform(3.5, TransformString))
	})
}
