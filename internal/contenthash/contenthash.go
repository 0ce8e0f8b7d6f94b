// Package contenthash derives stable short digests of normalized payloads.
// Identical payloads always hash identically, which is what dedup keys and
// MarketInfo identities rely on.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// HashLen is the number of hex characters kept from the full digest.
const HashLen = 16

// Hash returns a stable short digest of an arbitrary payload. Maps are
// serialized with sorted keys so logically equal payloads hash equally
// regardless of insertion order.
func Hash(payload any) string {
	var b strings.Builder
	writeCanonical(&b, payload)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:HashLen]
}

// HashFields hashes an ordered list of string fields. Used for identities
// built from a fixed tuple such as title+link.
func HashFields(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])[:HashLen]
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(val)
	default:
		// Scalars: rely on JSON encoding for a canonical textual form.
		enc, err := json.Marshal(val)
		if err != nil {
			fmt.Fprintf(b, "%v", val)
			return
		}
		b.Write(enc)
	}
}
