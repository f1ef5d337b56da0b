package explorer

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/o2lab/ordercheck/stats"
	"github.com/tchajed/marshal"
)

type branchKind uint64

const (
	scheduleBranch branchKind = iota
	readBranch
)

type branch struct {
	kind branchKind
	n    int
	pick int
}

// path is the sequence of choices of one execution. Between executions it
// is advanced depth-first: the deepest choice with an untried alternative is
// bumped and everything after it is forgotten.
type path struct {
	branches []branch
	pos      int
	max      int
	replay   bool
}

func newPath(max int) *path {
	return &path{max: max}
}

func (p *path) choose(kind branchKind, n int) int {
	if p.pos < len(p.branches) {
		b := p.branches[p.pos]
		if b.kind != kind || b.n != n {
			panic(abortExecution{fmt.Errorf("%w: choice %d had %d alternatives, now %d", ErrNondeterministic, p.pos, b.n, n)})
		}
		p.pos++
		return b.pick
	}
	if p.replay {
		panic(abortExecution{fmt.Errorf("%w: execution continues past the replayed schedule", ErrNondeterministic)})
	}
	if len(p.branches) >= p.max {
		panic(abortExecution{ErrBranchLimit})
	}
	if kind == scheduleBranch {
		stats.IncStat(stats.NScheduleBranch)
	} else {
		stats.IncStat(stats.NReadBranch)
	}
	p.branches = append(p.branches, branch{kind: kind, n: n})
	p.pos++
	return 0
}

// step prepares the next execution and reports whether one is left.
func (p *path) step() bool {
	p.pos = 0
	if p.replay {
		return false
	}
	for len(p.branches) > 0 {
		last := &p.branches[len(p.branches)-1]
		if last.pick+1 < last.n {
			last.pick++
			return true
		}
		p.branches = p.branches[:len(p.branches)-1]
	}
	return false
}

// token returns the replay token of the choices made so far.
func (p *path) token() string {
	enc := make([]byte, 0, 8+len(p.branches[:p.pos])*24)
	enc = marshal.WriteInt(enc, uint64(p.pos))
	for _, b := range p.branches[:p.pos] {
		enc = marshal.WriteInt(enc, uint64(b.kind))
		enc = marshal.WriteInt(enc, uint64(b.n))
		enc = marshal.WriteInt(enc, uint64(b.pick))
	}
	return hex.EncodeToString(enc)
}

var errBadToken = errors.New("malformed replay token")

func decodePath(token string) (*path, error) {
	enc, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadToken, err)
	}
	if len(enc) < 8 {
		return nil, errBadToken
	}
	count, enc := marshal.ReadInt(enc)
	if uint64(len(enc)) != count*24 {
		return nil, fmt.Errorf("%w: %d choices in %d bytes", errBadToken, count, len(enc))
	}
	p := &path{replay: true}
	for i := uint64(0); i < count; i++ {
		var kind, n, pick uint64
		kind, enc = marshal.ReadInt(enc)
		n, enc = marshal.ReadInt(enc)
		pick, enc = marshal.ReadInt(enc)
		if kind > uint64(readBranch) || pick >= n {
			return nil, fmt.Errorf("%w: choice %d is %d of %d", errBadToken, i, pick, n)
		}
		p.branches = append(p.branches, branch{kind: branchKind(kind), n: int(n), pick: int(pick)})
	}
	p.max = len(p.branches)
	return p, nil
}
