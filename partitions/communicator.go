package partitions

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSizeMismatch is returned by a collective when ranks contribute vectors of different lengths
var ErrSizeMismatch = errors.New("collective size mismatch")

// Communicator is the collective interface cooperating ranks use to exchange
// per-source flags
type Communicator interface {
	Rank() int
	Size() int
	// AllGatherBool blocks until every rank has contributed its vector and
	// returns all of them, indexed by rank
	AllGatherBool(local []bool) ([][]bool, error)
}

// SingleProcess is the communicator of a run without domain decomposition
type SingleProcess struct{}

func (SingleProcess) Rank() int { return 0 }
func (SingleProcess) Size() int { return 1 }

func (SingleProcess) AllGatherBool(local []bool) ([][]bool, error) {
	return [][]bool{append([]bool(nil), local...)}, nil
}

// LocalGroup connects ranks running as goroutines of one process. Every rank
// takes its Communicator from Comm and all of them must enter each collective.
type LocalGroup struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	arrived int
	slots   [][]bool
	result  [][]bool
}

// NewLocalGroup creates an in-process group of size ranks
func NewLocalGroup(size int) *LocalGroup {
	if size < 1 {
		size = 1
	}
	g := &LocalGroup{
		size:  size,
		slots: make([][]bool, size),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Size returns the number of ranks in the group
func (g *LocalGroup) Size() int { return g.size }

// Comm returns the communicator endpoint of one rank
func (g *LocalGroup) Comm(rank int) Communicator {
	if rank < 0 || rank >= g.size {
		panic(fmt.Sprintf("rank %d outside group of size %d", rank, g.size))
	}
	return &localComm{group: g, rank: rank}
}

// allGather is a generation counted barrier; the gathered slots of one round
// stay valid until every rank has left it, since the next round cannot
// complete without them.
func (g *LocalGroup) allGather(rank int, local []bool) [][]bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.gen
	g.slots[rank] = append([]bool(nil), local...)
	g.arrived++
	if g.arrived == g.size {
		g.result = g.slots
		g.slots = make([][]bool, g.size)
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for gen == g.gen {
			g.cond.Wait()
		}
	}
	return g.result
}

type localComm struct {
	group *LocalGroup
	rank  int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) AllGatherBool(local []bool) ([][]bool, error) {
	all := c.group.allGather(c.rank, local)
	for r, v := range all {
		if len(v) != len(local) {
			return nil, fmt.Errorf("rank %d contributed %d flags, rank %d has %d: %w",
				r, len(v), c.rank, len(local), ErrSizeMismatch)
		}
	}
	return all, nil
}
