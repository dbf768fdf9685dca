// Package lts builds the local time stepping cluster tree of one rank: cells
// grouped by time cluster, then by communication layer.
package lts

import (
	"fmt"
	"math"
)

// LayerType orders the cells of a cluster by their communication role
type LayerType int

const (
	Ghost    LayerType = iota // Copies of neighbor rank elements
	Copy                      // Local elements sent to neighbor ranks, one copy per neighbor
	Interior                  // Local elements with no remote neighbor
)

// NumLayers is the number of layer types per cluster
const NumLayers = 3

func (l LayerType) String() string {
	switch l {
	case Ghost:
		return "ghost"
	case Copy:
		return "copy"
	case Interior:
		return "interior"
	default:
		return fmt.Sprintf("LayerType(%d)", int(l))
	}
}

// Material holds the isotropic elastic parameters of an element
type Material struct {
	Rho    float64 `yaml:"rho"`
	Mu     float64 `yaml:"mu"`
	Lambda float64 `yaml:"lambda"`
}

// PWaveSpeed returns sqrt((lambda+2mu)/rho)
func (m Material) PWaveSpeed() float64 {
	return math.Sqrt((m.Lambda + 2*m.Mu) / m.Rho)
}

// Validate checks the parameters describe a physical solid
func (m Material) Validate() error {
	if m.Rho <= 0 {
		return fmt.Errorf("density must be positive, got %g", m.Rho)
	}
	if m.Mu < 0 {
		return fmt.Errorf("shear modulus must not be negative, got %g", m.Mu)
	}
	if m.Lambda+2*m.Mu <= 0 {
		return fmt.Errorf("p-wave modulus must be positive, got %g", m.Lambda+2*m.Mu)
	}
	return nil
}

// Cell is one entry of the LTS tree
type Cell struct {
	LtsID    int
	MeshID   int // Rank local element index, -1 for ghost cells
	GlobalID int
	Cluster  int
	Layer    LayerType
	Neighbor int // Neighbor partition of copy and ghost cells, -1 for interior cells
	Material Material
	Dofs     []float64
}

// Layer is a contiguous range of cells
type Layer struct {
	Type       LayerType
	LtsIDStart int
	NumCells   int
}

// Cluster is one time cluster of the tree
type Cluster struct {
	ID       int
	TimeStep float64
	Layers   [NumLayers]Layer
}

// NumCells returns the cells of all layers
func (c *Cluster) NumCells() (n int) {
	for _, l := range c.Layers {
		n += l.NumCells
	}
	return
}

// Tree holds the cells of one rank ordered by cluster, then layer
type Tree struct {
	Rank     int
	Clusters []Cluster
	Cells    []Cell
	dofs     []float64
}

// NumClusters returns the global number of time clusters
func (t *Tree) NumClusters() int { return len(t.Clusters) }

// NumCells returns the number of cells, duplicates and ghosts included
func (t *Tree) NumCells() int { return len(t.Cells) }

// Cell returns the cell with the given LTS id
func (t *Tree) Cell(ltsID int) *Cell { return &t.Cells[ltsID] }

// ClusterID returns the time cluster of an LTS id
func (t *Tree) ClusterID(ltsID int) int { return t.Cells[ltsID].Cluster }

// LayerCells returns the cells of one layer of one cluster
func (t *Tree) LayerCells(cluster int, layer LayerType) []Cell {
	l := t.Clusters[cluster].Layers[layer]
	return t.Cells[l.LtsIDStart : l.LtsIDStart+l.NumCells]
}
