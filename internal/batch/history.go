package batch

import "sync"

// historyLimit bounds the retained execution records; the oldest record is
// evicted first. History feeds statistics only, never correctness.
const historyLimit = 100

// Record summarizes one drained batch.
type Record struct {
	BatchID    string `json:"batchId"`
	Members    int    `json:"members"`
	DurationMS int64  `json:"durationMs"`
	CacheHits  int    `json:"cacheHits"`
	Errors     int    `json:"errors"`
}

// Stats aggregates the retained execution records.
type Stats struct {
	Batches       int      `json:"batches"`
	AvgDurationMS float64  `json:"avgDurationMs"`
	AvgSize       float64  `json:"avgSize"`
	HitRate       float64  `json:"hitRate"`
	ErrorRate     float64  `json:"errorRate"`
	Last          []Record `json:"last"`
}

type history struct {
	mu      sync.Mutex
	records []Record
}

func newHistory() *history {
	return &history{records: make([]Record, 0, historyLimit)}
}

func (h *history) append(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, r)
	if len(h.records) > historyLimit {
		copy(h.records, h.records[len(h.records)-historyLimit:])
		h.records = h.records[:historyLimit]
	}
}

func (h *history) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// stats computes the aggregate view: averages over all retained records, hit
// and error rates over total members, plus the five most recent records in
// chronological order.
func (h *history) stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.records)
	s := Stats{Batches: n, Last: []Record{}}
	if n == 0 {
		return s
	}

	var duration int64
	var members, hits, errs int
	for _, r := range h.records {
		duration += r.DurationMS
		members += r.Members
		hits += r.CacheHits
		errs += r.Errors
	}

	s.AvgDurationMS = float64(duration) / float64(n)
	s.AvgSize = float64(members) / float64(n)
	if members > 0 {
		s.HitRate = float64(hits) / float64(members)
		s.ErrorRate = float64(errs) / float64(members)
	}

	tail := 5
	if n < tail {
		tail = n
	}
	s.Last = append(s.Last, h.records[n-tail:]...)

	return s
}
