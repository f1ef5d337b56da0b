package scenario

import (
	"fmt"
	"sort"

	"github.com/o2lab/ordercheck/explorer"
)

type Scenario struct {
	Name        string
	Description string
	Body        func(*explorer.Thread)
	// ExpectFailure marks scenarios that must expose an invariant violation.
	ExpectFailure bool
}

var registry = map[string]Scenario{
	"acqrel": {
		Name:        "acqrel",
		Description: "release/acquire publication of x; final y in {4, 6, 8}",
		Body:        AcqRel,
	},
	"acqrel-demoted": {
		Name:          "acqrel-demoted",
		Description:   "acqrel with the consumer's Acquire load demoted to Relaxed",
		Body:          AcqRelDemoted,
		ExpectFailure: true,
	},
}

// All returns every registered scenario sorted by name.
func All() []Scenario {
	all := make([]Scenario, 0, len(registry))
	for _, s := range registry {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func Lookup(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}
	return s, nil
}

// Select resolves names to scenarios; no names selects all of them.
func Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}
	var selected []Scenario
	for _, name := range names {
		s, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	return selected, nil
}
