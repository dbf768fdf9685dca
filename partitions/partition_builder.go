package partitions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/DGSource/geometry"
)

// PartitionBuilder constructs partitions from a mesh
type PartitionBuilder struct {
	Mesh *geometry.Mesh

	// Partitioning parameters
	NumPartitions       int // Exact partition count, takes precedence when > 0
	TargetPartitionSize int // Desired elements per partition
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically

	// Geometric strategies
	SpaceFillingCurve // Morton ordering of element centroids, split into blocks

	// Use the partition ids stored in the mesh file
	FromMesh
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	case SpaceFillingCurve:
		return "morton"
	case FromMesh:
		return "mesh"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration name into a PartitionStrategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "block":
		return BlockPartition, nil
	case "round-robin", "roundrobin", "cyclic":
		return RoundRobin, nil
	case "morton", "sfc", "space-filling-curve":
		return SpaceFillingCurve, nil
	case "mesh", "file":
		return FromMesh, nil
	default:
		return BlockPartition, fmt.Errorf("unknown partition strategy %q", name)
	}
}

// BuildPartitions creates a partition layout from the mesh
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Mesh == nil || pb.Mesh.NumElements() == 0 {
		return nil, fmt.Errorf("partition builder needs a non-empty mesh")
	}
	K := pb.Mesh.NumElements()

	var (
		eToP          []int
		numPartitions int
		err           error
	)
	if pb.Strategy == FromMesh {
		eToP, numPartitions, err = normalizeEToP(pb.Mesh.EToP, K)
		if err != nil {
			return nil, err
		}
	} else {
		numPartitions = pb.calculateNumPartitions()
		eToP = pb.partitionElements(numPartitions)
	}

	partitions := pb.createPartitions(eToP, numPartitions)
	kpartMax := pb.calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxElements = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalElements: K,
		NumPartitions: numPartitions,
		EToP:          eToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	if pb.NumPartitions > 0 {
		return pb.NumPartitions
	}
	numPartitions := 1
	if pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.Mesh.NumElements()) / float64(pb.TargetPartitionSize)))
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements(numPartitions int) []int {
	K := pb.Mesh.NumElements()
	eToP := make([]int, K)

	switch pb.Strategy {
	case RoundRobin:
		for i := 0; i < K; i++ {
			eToP[i] = i % numPartitions
		}

	case SpaceFillingCurve:
		order := mortonOrder(pb.Mesh)
		blockAssign(order, numPartitions, eToP)

	default:
		order := make([]int, K)
		for i := range order {
			order[i] = i
		}
		blockAssign(order, numPartitions, eToP)
	}

	return eToP
}

// blockAssign splits the element order into numPartitions contiguous blocks
func blockAssign(order []int, numPartitions int, eToP []int) {
	elementsPerPartition := int(math.Ceil(float64(len(order)) / float64(numPartitions)))
	for pos, elem := range order {
		p := pos / elementsPerPartition
		if p >= numPartitions {
			p = numPartitions - 1
		}
		eToP[elem] = p
	}
}

// mortonOrder sorts elements along a Z-order curve through their centroids
func mortonOrder(m *geometry.Mesh) []int {
	const bits = 10
	K := m.NumElements()
	centroids := make([][3]float64, K)
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for k := 0; k < K; k++ {
		c := m.Centroid(k)
		centroids[k] = [3]float64{c.X, c.Y, c.Z}
		for d := 0; d < 3; d++ {
			lo[d] = math.Min(lo[d], centroids[k][d])
			hi[d] = math.Max(hi[d], centroids[k][d])
		}
	}

	// One scale for all axes keeps the curve cells cubic
	var span float64
	for d := 0; d < 3; d++ {
		span = math.Max(span, hi[d]-lo[d])
	}

	codes := make([]uint64, K)
	cells := float64(uint64(1)<<bits - 1)
	for k := 0; k < K; k++ {
		var code uint64
		var q [3]uint64
		if span > 0 {
			for d := 0; d < 3; d++ {
				q[d] = uint64((centroids[k][d] - lo[d]) / span * cells)
			}
		}
		for b := 0; b < bits; b++ {
			for d := 0; d < 3; d++ {
				code |= ((q[d] >> b) & 1) << (3*b + d)
			}
		}
		codes[k] = code
	}

	order := make([]int, K)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return codes[order[i]] < codes[order[j]]
	})
	return order
}

// normalizeEToP shifts mesh file partition ids (which may be 1-based) to start at zero
func normalizeEToP(meshEToP []int, K int) ([]int, int, error) {
	if len(meshEToP) != K {
		return nil, 0, fmt.Errorf("mesh carries %d partition ids for %d elements", len(meshEToP), K)
	}
	minP, maxP := math.MaxInt, math.MinInt
	for _, p := range meshEToP {
		minP = min(minP, p)
		maxP = max(maxP, p)
	}
	eToP := make([]int, K)
	for k, p := range meshEToP {
		eToP[k] = p - minP
	}
	return eToP, maxP - minP + 1, nil
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:       i,
			Elements: make([]int, 0),
		}
	}

	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
	}

	return partitions
}

// calculateKpartMax finds maximum elements across all partitions
func (pb *PartitionBuilder) calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}
