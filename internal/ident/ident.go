// Package ident generates short identifiers used to correlate requests and
// batches across logs, cache annotations, and stats.
package ident

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a 12-character random hex identifier.
func New() string {
	b := make([]byte, 6)
	rand.Read(b)
	return hex.EncodeToString(b)
}
