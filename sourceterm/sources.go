package sourceterm

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode tells the solver how to interpret PointSources.Tensor
type Mode int

const (
	// FSRM sources carry a rotated, area scaled moment tensor
	FSRM Mode = iota
	// NRF sources carry a fault basis tan1, tan2, normal plus muA and lambdaA
	NRF
)

func (m Mode) String() string {
	switch m {
	case FSRM:
		return "fsrm"
	case NRF:
		return "nrf"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// PointSources are the sources of one time cluster, in ClusterMapping.Sources order
type PointSources struct {
	Mode            Mode
	NumberOfSources int

	OriginalIndex []int // Index in the rupture description
	MeshIDs       []int // Rank local element
	Centres       []r3.Vec

	// Basis functions at the source divided by the Jacobian determinant
	MInvJInvPhisAtSources [][]float64
	Tensor                [][NumberOfQuantities]float64
	MuA                   []float64 // NRF only
	LambdaA               []float64 // NRF only
	SlipRates             [][3]PiecewiseLinearFunction1D
}

func newPointSources(mode Mode, n int) PointSources {
	ps := PointSources{
		Mode:                  mode,
		NumberOfSources:       n,
		OriginalIndex:         make([]int, n),
		MeshIDs:               make([]int, n),
		Centres:               make([]r3.Vec, n),
		MInvJInvPhisAtSources: make([][]float64, n),
		Tensor:                make([][NumberOfQuantities]float64, n),
		SlipRates:             make([][3]PiecewiseLinearFunction1D, n),
	}
	if mode == NRF {
		ps.MuA = make([]float64, n)
		ps.LambdaA = make([]float64, n)
	}
	return ps
}

// PointSourceConsumer receives the per-cluster sources of a load, typically
// the time stepping manager
type PointSourceConsumer interface {
	SetPointSourcesForClusters(mappings []ClusterMapping, sources []PointSources)
}

// LoadResult is the outcome of one load call on one rank. A new value is
// returned by every load.
type LoadResult struct {
	ID   uuid.UUID
	Mode Mode
	Rank int

	ClusterMappings []ClusterMapping
	Sources         []PointSources

	Found   []bool // Ownership flag per input source after deduplication
	Located int    // Sources found on this rank before deduplication
	Cleaned int    // Sources given up to a lower rank
	Dropped int    // Sources no rank found
}

// NumberOfSources returns the sources owned by this rank
func (r *LoadResult) NumberOfSources() (n int) {
	for _, ps := range r.Sources {
		n += ps.NumberOfSources
	}
	return
}
