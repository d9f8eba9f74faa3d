package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// MakeKey builds an MD5-stable cache key from an arbitrary set of arguments,
// generalized from the source system's json.dumps(sort_keys=True)+md5
// convention. Map keys are sorted by encoding/json automatically, so nested
// maps are canonical; the top-level arguments are NOT reordered, so their
// order is part of the key, matching the source's positional make_key(*args)
// semantics.
func MakeKey(prefix string, args ...interface{}) string {
	parts := make([]json.RawMessage, 0, len(args)+1)
	if prefix != "" {
		b, _ := json.Marshal(prefix)
		parts = append(parts, b)
	}
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			b, _ = json.Marshal(sortedFallback(a))
		}
		parts = append(parts, b)
	}
	payload, _ := json.Marshal(parts)
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// sortedFallback handles values json.Marshal cannot serialize directly: a
// map[string]interface{} becomes the concatenation of its sorted keys (its
// values are not included), and any other type becomes "".
func sortedFallback(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += k
	}
	return out
}
