package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Access is one modelled atomic operation as it happened in an execution.
type Access struct {
	Thread int
	Cell   string
	Write  bool
	Order  string
	Value  int
	// Index is the position of the store in the cell's modification order
	// that was written or read.
	Index int
}

type Trace []Access

func (t Trace) Copy() Trace {
	tr := make(Trace, len(t))
	copy(tr, t)
	return tr
}

func (a Access) String() string {
	typ := "load"
	if a.Write {
		typ = "store"
	}
	return fmt.Sprintf("t%d %s %s %s = %d (mo #%d)", a.Thread, typ, a.Cell, a.Order, a.Value, a.Index)
}

// Fingerprint identifies the observable behaviour of an execution: two
// schedules with the same accesses in the same order share a fingerprint.
func (t Trace) Fingerprint() [blake2b.Size256]byte {
	buf := make([]byte, 0, len(t)*24)
	var word [8]byte
	for _, a := range t {
		binary.LittleEndian.PutUint64(word[:], uint64(a.Thread))
		buf = append(buf, word[:]...)
		buf = append(buf, a.Cell...)
		if a.Write {
			buf = append(buf, 'W')
		} else {
			buf = append(buf, 'R')
		}
		buf = append(buf, a.Order...)
		binary.LittleEndian.PutUint64(word[:], uint64(int64(a.Value)))
		buf = append(buf, word[:]...)
		binary.LittleEndian.PutUint64(word[:], uint64(a.Index))
		buf = append(buf, word[:]...)
	}
	return blake2b.Sum256(buf)
}

func PrintTrace(t Trace) {
	for i, a := range t {
		logrus.Infof("    %3d %s", i, a)
	}
}
