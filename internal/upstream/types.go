package upstream

import (
	"errors"

	"tftgg/internal/gql"
)

// ErrCircuitOpen is returned without contacting the data service while the
// circuit breaker is shedding load after repeated failures.
var ErrCircuitOpen = errors.New("data service circuit open")

// batchRequest is the wire form of one drained batch: the argument sets of
// every cache miss, in arrival order.
type batchRequest struct {
	ArgSets []gql.Args `json:"argSets"`
}

// batchResponse carries positionally matched results. A null slot means the
// data service resolved nothing for that argument set.
type batchResponse struct {
	Results []gql.Result `json:"results"`
}
