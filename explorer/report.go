package explorer

import "sort"

// Report summarizes an exploration.
type Report struct {
	Iterations     int
	Branches       int
	Preemptions    int
	DistinctTraces int
	// Outcomes counts executions per set of values recorded with
	// Thread.Observe, keyed like "y=4".
	Outcomes map[string]int
	Failure  *Failure
}

func newReport() *Report {
	return &Report{Outcomes: make(map[string]int)}
}

// OutcomeKeys returns the observed outcomes in sorted order.
func (r *Report) OutcomeKeys() []string {
	keys := make([]string, 0, len(r.Outcomes))
	for k := range r.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
