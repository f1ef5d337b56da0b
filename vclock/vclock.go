package vclock

import (
	"fmt"
	"strings"
)

// VC is a vector clock indexed by modelled thread id.
type VC []uint64

func New() VC {
	return nil
}

func max(a, b uint64) uint64 {
	if a < b {
		return b
	}
	return a
}

func (vc VC) Get(tid int) uint64 {
	if tid < len(vc) {
		return vc[tid]
	}
	return 0
}

func (vc VC) grow(n int) VC {
	for len(vc) < n {
		vc = append(vc, 0)
	}
	return vc
}

// Tick advances the component of tid and returns the (possibly grown) clock.
func (vc VC) Tick(tid int) VC {
	vc = vc.grow(tid + 1)
	vc[tid]++
	return vc
}

// Join sets every component to the pointwise maximum of vc and other.
func (vc VC) Join(other VC) VC {
	vc = vc.grow(len(other))
	for k, v := range other {
		vc[k] = max(vc[k], v)
	}
	return vc
}

// LessEq reports whether vc happens-before-or-equals other.
func (vc VC) LessEq(other VC) bool {
	for k, v := range vc {
		if v > other.Get(k) {
			return false
		}
	}
	return true
}

// Covers reports whether the event numbered seq of thread tid is
// contained in vc.
func (vc VC) Covers(tid int, seq uint64) bool {
	return seq <= vc.Get(tid)
}

func (vc VC) Clone() VC {
	if vc == nil {
		return nil
	}
	nvc := make(VC, len(vc))
	copy(nvc, vc)
	return nvc
}

func (vc VC) String() string {
	var b strings.Builder
	b.WriteString("[")
	for k, v := range vc {
		if k > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "(%v,%v)", k, v)
	}
	b.WriteString("]")
	return b.String()
}
