package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/o2lab/ordercheck/explorer"
	"github.com/o2lab/ordercheck/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Unix(1700000000, 0)

	passing := report.Result{
		Scenario: "acqrel",
		Passed:   true,
		Report:   &explorer.Report{Iterations: 10, DistinctTraces: 4, Outcomes: map[string]int{"y=4": 6, "y=8": 4}},
	}
	failure := &explorer.Failure{Err: errors.New("invariant violation: y = 2"), Token: "abcd"}
	failing := report.Result{
		Scenario:      "acqrel-demoted",
		ExpectFailure: true,
		Passed:        true,
		Report:        &explorer.Report{Iterations: 3, Outcomes: map[string]int{}, Failure: failure},
		Err:           failure,
	}
	if _, err := s.Record(ctx, passing, start); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, failing, start.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Scenario != "acqrel-demoted" {
		t.Fatalf("Recent = %+v", runs)
	}
	if runs[0].Token != "abcd" || runs[0].Error == "" {
		t.Errorf("failing run = %+v", runs[0])
	}

	runs, err = s.Recent(ctx, "acqrel", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("Recent(acqrel) = %+v", runs)
	}
	if diff := cmp.Diff(passing.Report.Outcomes, runs[0].Outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if !runs[0].StartedAt.Equal(start) || !runs[0].Passed || runs[0].Iterations != 10 {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestOutcomesChanged(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r := report.Result{Scenario: "acqrel", Passed: true, Report: &explorer.Report{Outcomes: map[string]int{"y=4": 1}}}

	changed, err := s.OutcomesChanged(ctx, r)
	if err != nil || changed {
		t.Fatalf("empty history: changed=%v err=%v", changed, err)
	}
	if _, err := s.Record(ctx, r, time.Now()); err != nil {
		t.Fatal(err)
	}
	changed, err = s.OutcomesChanged(ctx, r)
	if err != nil || changed {
		t.Fatalf("same outcomes: changed=%v err=%v", changed, err)
	}
	r.Report = &explorer.Report{Outcomes: map[string]int{"y=4": 1, "y=2": 1}}
	changed, err = s.OutcomesChanged(ctx, r)
	if err != nil || !changed {
		t.Fatalf("new outcome: changed=%v err=%v", changed, err)
	}
}
