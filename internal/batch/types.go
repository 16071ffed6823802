package batch

import (
	"context"
	"time"

	"tftgg/internal/gql"
)

// Executor performs the real upstream work for a drained batch. It receives
// the full argument set of every cache-missing member in arrival order and
// returns a positionally matched result slice.
type Executor func(ctx context.Context, argSets []gql.Args) ([]gql.Result, error)

// settlement is the single outcome delivered to a pending request.
type settlement struct {
	result gql.Result
	err    error
}

// pendingRequest represents one caller waiting inside a batch group.
type pendingRequest struct {
	id         string
	operation  string
	args       gql.Args
	complexity int
	arrivedAt  time.Time
	resultChan chan settlement // buffered(1); receives exactly one settlement
}

func (p *pendingRequest) settle(result gql.Result, err error) {
	p.resultChan <- settlement{result: result, err: err}
}

// batchGroup accumulates pending requests that share one batch key. The
// executor and context come from the member that created the group.
type batchGroup struct {
	id        string
	key       string
	operation string
	ctx       context.Context
	exec      Executor
	members   []*pendingRequest
	timer     Timer
	createdAt time.Time
}

// GroupSnapshot describes one live (not yet drained) batch group.
type GroupSnapshot struct {
	Key           string  `json:"key"`
	Operation     string  `json:"operation"`
	Size          int     `json:"size"`
	OldestAgeMS   int64   `json:"oldestAgeMs"`
	AvgComplexity float64 `json:"avgComplexity"`
}
