package gql

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	json "github.com/goccy/go-json"
)

// LocaleField is the argument carrying the caller's locale. It is excluded
// from batch keys so that otherwise-identical requests group across locales;
// cache and request keys keep it, so per-locale results stay distinct.
const LocaleField = "lang"

// identityFields are arguments that bind a request to a specific caller.
// Requests carrying any of them must never share results with other callers.
var identityFields = []string{"name", "puuid", "userId"}

// Args is the argument set of a single operation call.
type Args map[string]any

// Clone returns a shallow copy of the argument set.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// HasIdentityArgs returns true if the argument set contains any
// caller-identity field.
func (a Args) HasIdentityArgs() bool {
	for _, f := range identityFields {
		if _, ok := a[f]; ok {
			return true
		}
	}
	return false
}

// RequestKey generates the multiplexing key for a call: the operation name
// plus a digest of the full canonicalized argument set. Two calls with the
// same operation and logically equal arguments always produce the same key,
// regardless of how the argument maps were built.
func RequestKey(operation string, args Args) string {
	return hashKey(operation, args)
}

// BatchKey generates the grouping key for the batcher: like RequestKey but
// with the locale argument removed, so locale only varies the per-member
// arguments inside a group, not the group itself.
func BatchKey(operation string, args Args) string {
	if _, ok := args[LocaleField]; !ok {
		return hashKey(operation, args)
	}
	trimmed := args.Clone()
	delete(trimmed, LocaleField)
	return hashKey(operation, trimmed)
}

// CacheKey generates the response-cache key for a call. It uses the full
// argument set: cached results are locale- and argument-exact.
func CacheKey(operation string, args Args) string {
	return hashKey(operation, args)
}

// hashKey builds "operation:" for empty args, otherwise
// "operation:<first 8 bytes of sha256(canonical JSON)>".
func hashKey(operation string, args Args) string {
	if len(args) == 0 {
		return operation + ":"
	}
	sum := sha256.Sum256(CanonicalJSON(args))
	return operation + ":" + hex.EncodeToString(sum[:8])
}

// CanonicalJSON serializes an argument set deterministically: object keys are
// sorted at every nesting level, so logically equal argument sets marshal to
// identical bytes.
func CanonicalJSON(args Args) []byte {
	normalized := normalizeValue(map[string]any(args))
	data, err := json.Marshal(normalized)
	if err != nil {
		// Args come from JSON decoding or literal maps; marshaling them
		// back cannot fail in practice. Fall back to an empty object so
		// keys stay well-formed.
		return []byte("{}")
	}
	return data
}

// normalizeValue recursively rebuilds maps with sorted keys and normalizes
// array elements.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			out[k] = normalizeValue(val[k])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return val
	}
}
