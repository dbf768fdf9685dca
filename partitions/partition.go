package partitions

import (
	"fmt"
	"math"
)

// Partition represents a collection of elements owned by one rank
type Partition struct {
	// Unique identifier for this partition, equal to the owning rank
	ID int

	// Element membership
	Elements    []int // Global element indices in this partition, ascending
	NumElements int   // Actual number of active elements
	MaxElements int   // Size of the largest partition in the layout
}

// PartitionLayout manages the complete mesh decomposition
type PartitionLayout struct {
	// All partitions in the mesh
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int // Sum of all actual elements across partitions
	NumPartitions int // Total number of partitions

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout has %d partitions, NumPartitions=%d",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP length %d != TotalElements %d", len(pl.EToP), pl.TotalElements)
	}

	// Verify KpartMax
	actualMax := 0
	total := 0
	for i, p := range pl.Partitions {
		if p.ID != i {
			return fmt.Errorf("partition at position %d has ID %d", i, p.ID)
		}
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != len(Elements) %d",
				p.ID, p.NumElements, len(p.Elements))
		}
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		if p.MaxElements != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d",
				p.ID, p.MaxElements, pl.KpartMax)
		}
		for j, k := range p.Elements {
			if pl.GetPartition(k) != p.ID {
				return fmt.Errorf("partition %d lists element %d owned by partition %d",
					p.ID, k, pl.GetPartition(k))
			}
			if j > 0 && k <= p.Elements[j-1] {
				return fmt.Errorf("partition %d: elements not in ascending order at %d", p.ID, j)
			}
		}
		total += p.NumElements
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, TotalElements=%d", total, pl.TotalElements)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinElements:   math.MaxInt32,
		MaxElements:   0,
		AvgElements:   float64(pl.TotalElements) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		if p.NumElements < stats.MinElements {
			stats.MinElements = p.NumElements
		}
		if p.NumElements > stats.MaxElements {
			stats.MaxElements = p.NumElements
		}
	}

	if stats.AvgElements > 0 {
		stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements
	}

	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinElements   int
	MaxElements   int
	AvgElements   float64
	Imbalance     float64 // MaxElements / AvgElements
}
