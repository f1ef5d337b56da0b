package scenario_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/o2lab/ordercheck/explorer"
	"github.com/o2lab/ordercheck/scenario"
)

// parseOutcome splits an outcome key like "b.x=1 b.y=3 y=6".
func parseOutcome(t *testing.T, key string) map[string]int {
	t.Helper()
	values := make(map[string]int)
	for _, field := range strings.Fields(key) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			t.Fatalf("malformed outcome %q", key)
		}
		v, err := strconv.Atoi(kv[1])
		if err != nil {
			t.Fatalf("malformed outcome %q: %v", key, err)
		}
		values[kv[0]] = v
	}
	return values
}

func TestAcqRelOutcomes(t *testing.T) {
	report, err := (&explorer.Builder{}).Check(context.Background(), scenario.AcqRel)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	want := []string{
		"b.x=0 y=4",
		"b.x=1 b.y=3 y=4",
		"b.x=1 b.y=3 y=6",
		"b.x=1 b.y=4 y=8",
	}
	if diff := cmp.Diff(want, report.OutcomeKeys()); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if report.Failure != nil {
		t.Errorf("unexpected failure %v", report.Failure)
	}
}

func TestAcqRelOutcomeDerivation(t *testing.T) {
	report, err := (&explorer.Builder{}).Check(context.Background(), scenario.AcqRel)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	finals := make(map[int]bool)
	for key := range report.Outcomes {
		o := parseOutcome(t, key)
		y := o["y"]
		finals[y] = true
		if !scenario.Valid(y) {
			t.Errorf("%s: final y outside %v", key, scenario.Legal)
		}
		switch {
		case o["b.x"] != 1:
			if y != 4 {
				t.Errorf("%s: consumer missed the flag but y = %d", key, y)
			}
			if _, ok := o["b.y"]; ok {
				t.Errorf("%s: consumer read y without seeing the flag", key)
			}
		case o["b.y"] == 3:
			if y != 6 && y != 4 {
				t.Errorf("%s: consumer doubled 3 but y = %d", key, y)
			}
		case o["b.y"] == 4:
			if y != 8 {
				t.Errorf("%s: consumer doubled 4 but y = %d", key, y)
			}
		default:
			t.Errorf("%s: consumer read y = %d after acquiring the flag", key, o["b.y"])
		}
	}
	for _, v := range scenario.Legal {
		if !finals[v] {
			t.Errorf("no execution ended with y = %d", v)
		}
	}
}

func TestAcqRelTerminatesUnderPreemptionBound(t *testing.T) {
	for _, bound := range []int{1, 2, 3} {
		b := &explorer.Builder{MaxPreemptions: bound}
		report, err := b.Check(context.Background(), scenario.AcqRel)
		if err != nil {
			t.Fatalf("bound %d: %v", bound, err)
		}
		if report.Iterations == 0 {
			t.Errorf("bound %d: no executions", bound)
		}
	}
}

func TestDemotedAcquireIsCaught(t *testing.T) {
	b := &explorer.Builder{}
	_, err := b.Check(context.Background(), scenario.AcqRelDemoted)
	if !errors.Is(err, scenario.ErrInvariantViolation) {
		t.Fatalf("err = %v, want %v", err, scenario.ErrInvariantViolation)
	}
	if !strings.Contains(err.Error(), "y = 2") {
		t.Errorf("err = %v, want it to name y = 2", err)
	}

	var failure *explorer.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %T, want *explorer.Failure", err)
	}
	_, err = b.Replay(context.Background(), failure.Token, scenario.AcqRelDemoted)
	if !errors.Is(err, scenario.ErrInvariantViolation) {
		t.Fatalf("replay err = %v, want %v", err, scenario.ErrInvariantViolation)
	}
}

func TestValid(t *testing.T) {
	for y := -1; y <= 10; y++ {
		want := y == 4 || y == 6 || y == 8
		if got := scenario.Valid(y); got != want {
			t.Errorf("Valid(%d) = %v, want %v", y, got, want)
		}
	}
}

func TestSelect(t *testing.T) {
	all, err := scenario.Select(nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range all {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"acqrel", "acqrel-demoted"}, names); diff != "" {
		t.Errorf("scenarios mismatch (-want +got):\n%s", diff)
	}
	if _, err := scenario.Select([]string{"acqrel", "nope"}); err == nil {
		t.Error("Select accepted an unknown scenario")
	}
	s, err := scenario.Lookup("acqrel-demoted")
	if err != nil || !s.ExpectFailure {
		t.Errorf("Lookup(acqrel-demoted) = %+v, %v", s, err)
	}
}
