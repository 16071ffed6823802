package gql

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Result is a raw upstream payload for a single operation. The gateway never
// interprets it beyond the missing check below.
type Result = json.RawMessage

var nullLiteral = []byte("null")

// IsMissing reports whether a result slot carries no usable payload: an empty
// slot or a JSON null. Batch members that land on such a slot are failed
// individually rather than poisoning the rest of the group.
func IsMissing(result Result) bool {
	if len(result) == 0 {
		return true
	}
	return bytes.Equal(bytes.TrimSpace(result), nullLiteral)
}
