// Package gql models GraphQL-style operations for the gateway: argument
// sets, canonical request/batch/cache keys, and the batchability rules that
// decide which operations may share one upstream call.
package gql

import "sync"

// batchableOperations lists operations whose results do not depend on caller
// identity and may be shared across concurrent callers. Everything else goes
// to the upstream one call at a time.
var batchableOperations = map[string]bool{
	"champions":  true,
	"items":      true,
	"traits":     true,
	"augments":   true,
	"synergies":  true,
	"tierlist":   true,
	"metaDecks":  true,
	"patchNotes": true,
	"rankings":   true,
}

var (
	disabledMu         sync.RWMutex
	disabledOperations = make(map[string]bool)
)

// SetDisabledOperations replaces the set of operations excluded from batching
// at runtime (configured at startup).
func SetDisabledOperations(operations []string) {
	next := make(map[string]bool, len(operations))
	for _, op := range operations {
		next[op] = true
	}
	disabledMu.Lock()
	disabledOperations = next
	disabledMu.Unlock()
}

// Batchable reports whether a call may be grouped with others: the operation
// must be on the allow-list, not disabled, and the arguments must carry no
// caller-identity field.
func Batchable(operation string, args Args) bool {
	disabledMu.RLock()
	disabled := disabledOperations[operation]
	disabledMu.RUnlock()
	if disabled || !batchableOperations[operation] {
		return false
	}
	return !args.HasIdentityArgs()
}

// BatchableOperations returns the allow-listed operation names.
func BatchableOperations() []string {
	ops := make([]string, 0, len(batchableOperations))
	for op := range batchableOperations {
		ops = append(ops, op)
	}
	return ops
}
