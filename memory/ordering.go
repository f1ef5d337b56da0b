package memory

// Ordering represents the memory ordering of a modelled atomic operation.
type Ordering int

const (
	// Relaxed only takes part in the per-cell modification order.
	Relaxed Ordering = iota
	// Release publishes the storing thread's history to matching Acquire loads.
	Release
	// Acquire synchronizes with the Release store it reads from.
	Acquire
)

var orderingName = map[Ordering]string{
	Relaxed: "Relaxed",
	Release: "Release",
	Acquire: "Acquire",
}

func (o Ordering) String() string {
	if s, ok := orderingName[o]; ok {
		return s
	}
	return "Invalid"
}

func (o Ordering) validForLoad() bool {
	return o == Relaxed || o == Acquire
}

func (o Ordering) validForStore() bool {
	return o == Relaxed || o == Release
}

// ParseOrdering maps a name as printed by String back to its Ordering.
func ParseOrdering(s string) (Ordering, bool) {
	for o, name := range orderingName {
		if name == s {
			return o, true
		}
	}
	return 0, false
}
