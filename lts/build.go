package lts

import (
	"fmt"
	"math"

	"github.com/notargets/DGSource/geometry"
	"github.com/notargets/DGSource/utils"
)

// Parameters control the clustering of element time steps
type Parameters struct {
	Rate                float64 `yaml:"rate"`                   // Time step ratio between consecutive clusters
	CFL                 float64 `yaml:"cfl"`                    // Courant number
	MaxNumberOfClusters int     `yaml:"max_number_of_clusters"` // Clusters above the cap are merged into the last one
	NumberOfDofs        int     `yaml:"number_of_dofs"`         // Degrees of freedom stored per cell
}

// DefaultParameters returns rate 2 clustering at CFL 0.5 with no cluster cap
func DefaultParameters() Parameters {
	return Parameters{
		Rate:                2,
		CFL:                 0.5,
		MaxNumberOfClusters: math.MaxInt32,
		NumberOfDofs:        9,
	}
}

// Validate checks the parameters
func (p Parameters) Validate() error {
	if p.Rate < 1 {
		return fmt.Errorf("cluster rate must be >= 1, got %g", p.Rate)
	}
	if p.CFL <= 0 {
		return fmt.Errorf("CFL must be positive, got %g", p.CFL)
	}
	if p.MaxNumberOfClusters < 1 {
		return fmt.Errorf("max number of clusters must be >= 1, got %d", p.MaxNumberOfClusters)
	}
	if p.NumberOfDofs < 0 {
		return fmt.Errorf("number of dofs must not be negative, got %d", p.NumberOfDofs)
	}
	return nil
}

// MaterialModel assigns a material to every global element
type MaterialModel interface {
	MaterialOf(m *geometry.Mesh, globalElem int) Material
}

// Uniform assigns one material everywhere
type Uniform struct {
	Material Material
}

func (u Uniform) MaterialOf(*geometry.Mesh, int) Material { return u.Material }

// DepthLayer applies its material to elements whose centroid lies below Below
type DepthLayer struct {
	Below    float64  `yaml:"below"`
	Material Material `yaml:"material"`
}

// Layered picks the first layer containing an element's centroid, else Background
type Layered struct {
	Background Material
	Layers     []DepthLayer
}

func (l Layered) MaterialOf(m *geometry.Mesh, globalElem int) Material {
	z := m.Centroid(globalElem).Z
	for _, layer := range l.Layers {
		if z < layer.Below {
			return layer.Material
		}
	}
	return l.Background
}

// TimeSteps returns the CFL time step 2*CFL*inradius/vp of every element
func TimeSteps(m *geometry.Mesh, model MaterialModel, cfl float64) ([]float64, error) {
	dts := make([]float64, m.NumElements())
	for k := range dts {
		mat := model.MaterialOf(m, k)
		if err := mat.Validate(); err != nil {
			return nil, fmt.Errorf("element %d: %w", k, err)
		}
		dts[k] = cfl * 2 * m.Inradius(k) / mat.PWaveSpeed()
		if dts[k] <= 0 {
			return nil, fmt.Errorf("element %d: %w", k, geometry.ErrDegenerateElement)
		}
	}
	return dts, nil
}

// ClusterIDs assigns floor(log_rate(dt/dtMin)) to every time step, capped at
// maxClusters-1, and returns the global minimum time step
func ClusterIDs(dts []float64, rate float64, maxClusters int) (ids []int, dtMin float64) {
	dtMin = math.Inf(1)
	for _, dt := range dts {
		dtMin = math.Min(dtMin, dt)
	}
	ids = make([]int, len(dts))
	if rate <= 1 {
		return ids, dtMin
	}
	for k, dt := range dts {
		// Slack absorbs rounding for steps that are exact powers of the rate
		c := int(math.Floor(math.Log(dt/dtMin)/math.Log(rate) + 1e-10))
		ids[k] = min(c, maxClusters-1)
	}
	return ids, dtMin
}

// Build creates the tree and lookup table of one rank. Clusters are global:
// every rank computes them from the full mesh, so neighbor ranks agree on the
// cluster of the cells they exchange.
func Build(m *geometry.Mesh, fc *utils.FaceConnector, rank int, model MaterialModel, params Parameters) (*Tree, *Lut, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	if m.NumElements() != fc.K {
		return nil, nil, fmt.Errorf("mesh has %d elements, face connector %d", m.NumElements(), fc.K)
	}
	if rank < 0 || rank >= fc.NumPartitions {
		return nil, nil, fmt.Errorf("rank %d outside %d partitions", rank, fc.NumPartitions)
	}

	dts, err := TimeSteps(m, model, params.CFL)
	if err != nil {
		return nil, nil, err
	}
	clusterOf, dtMin := ClusterIDs(dts, params.Rate, params.MaxNumberOfClusters)
	numClusters := 1
	for _, c := range clusterOf {
		numClusters = max(numClusters, c+1)
	}

	local := fc.LocalToGlobalElem[rank]
	tree := &Tree{Rank: rank, Clusters: make([]Cluster, numClusters)}
	lut := &Lut{
		tree:      tree,
		meshToLts: make([]DuplicateList, len(local)),
		materials: make([]Material, len(local)),
	}
	for meshID, g := range local {
		lut.materials[meshID] = model.MaterialOf(m, g)
	}

	addCell := func(cell Cell) error {
		cell.LtsID = len(tree.Cells)
		cell.Material = model.MaterialOf(m, cell.GlobalID)
		if cell.MeshID >= 0 {
			if err := lut.meshToLts[cell.MeshID].Add(cell.LtsID); err != nil {
				return fmt.Errorf("element %d: %w", cell.GlobalID, err)
			}
		}
		tree.Cells = append(tree.Cells, cell)
		return nil
	}

	for c := 0; c < numClusters; c++ {
		cl := &tree.Clusters[c]
		cl.ID = c
		cl.TimeStep = dtMin * math.Pow(params.Rate, float64(c))

		for _, layer := range []LayerType{Ghost, Copy, Interior} {
			start := len(tree.Cells)
			switch layer {
			case Ghost:
				for q := 0; q < fc.NumPartitions; q++ {
					for _, g := range fc.GhostElements(rank, q) {
						if clusterOf[g] != c {
							continue
						}
						if err := addCell(Cell{MeshID: -1, GlobalID: g, Cluster: c, Layer: Ghost, Neighbor: q}); err != nil {
							return nil, nil, err
						}
					}
				}
			case Copy:
				for q := 0; q < fc.NumPartitions; q++ {
					for _, meshID := range fc.GetPickIndices(rank, q) {
						g := local[meshID]
						if clusterOf[g] != c {
							continue
						}
						if err := addCell(Cell{MeshID: meshID, GlobalID: g, Cluster: c, Layer: Copy, Neighbor: q}); err != nil {
							return nil, nil, err
						}
					}
				}
			case Interior:
				for meshID, g := range local {
					if clusterOf[g] != c || len(fc.NeighborPartitions(g)) != 0 {
						continue
					}
					if err := addCell(Cell{MeshID: meshID, GlobalID: g, Cluster: c, Layer: Interior, Neighbor: -1}); err != nil {
						return nil, nil, err
					}
				}
			}
			cl.Layers[layer] = Layer{Type: layer, LtsIDStart: start, NumCells: len(tree.Cells) - start}
		}
	}

	// One contiguous dof buffer, carved per cell
	tree.dofs = make([]float64, len(tree.Cells)*params.NumberOfDofs)
	for i := range tree.Cells {
		off := i * params.NumberOfDofs
		tree.Cells[i].Dofs = tree.dofs[off : off+params.NumberOfDofs : off+params.NumberOfDofs]
	}

	return tree, lut, nil
}
