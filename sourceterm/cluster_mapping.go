package sourceterm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/DGSource/lts"
)

// ErrClusterMismatch is returned when the copies of one element live in different time clusters
var ErrClusterMismatch = errors.New("element copies span several clusters")

// ClusterLookup resolves rank local mesh elements to their LTS cells
type ClusterLookup interface {
	NumClusters() int
	LtsIDs(meshID int) lts.DuplicateList
	ClusterID(ltsID int) int
	Cell(ltsID int) *lts.Cell
}

// CellToSourcesMapping points one cell copy at its contiguous range of a
// cluster's sources
type CellToSourcesMapping struct {
	Cell                 *lts.Cell
	LtsID                int
	PointSourcesOffset   int
	NumberOfPointSources int
}

// ClusterMapping holds the sources of one time cluster, ordered by mesh
// element, and the cell copies they act on
type ClusterMapping struct {
	Sources       []int // Indices into the mapped mesh id array
	CellToSources []CellToSourcesMapping
}

// MapPointSourcesToClusters groups sources by the time cluster of their
// element. Within a cluster, sources are ordered by mesh id (input order on
// ties) and every copy of an element receives a mapping onto the same range.
func MapPointSourcesToClusters(meshIDs []int, lookup ClusterLookup) ([]ClusterMapping, error) {
	numClusters := lookup.NumClusters()
	clusterToSources := make([][]int, numClusters)
	clusterToNumberOfMappings := make([]int, numClusters)

	for source, meshID := range meshIDs {
		dups := lookup.LtsIDs(meshID)
		if dups.Count() == 0 {
			return nil, fmt.Errorf("source %d: mesh element %d has no LTS cell", source, meshID)
		}
		cluster := lookup.ClusterID(dups.At(0))
		if cluster < 0 || cluster >= numClusters {
			return nil, fmt.Errorf("source %d: cluster %d outside [0,%d)", source, cluster, numClusters)
		}
		for dup := 1; dup < dups.Count(); dup++ {
			if c := lookup.ClusterID(dups.At(dup)); c != cluster {
				return nil, fmt.Errorf("mesh element %d: copy %d in cluster %d, copy 0 in cluster %d: %w",
					meshID, dup, c, cluster, ErrClusterMismatch)
			}
		}
		clusterToSources[cluster] = append(clusterToSources[cluster], source)
		clusterToNumberOfMappings[cluster] += dups.Count()
	}

	cmps := make([]ClusterMapping, numClusters)
	for cluster := range cmps {
		sources := clusterToSources[cluster]
		sort.SliceStable(sources, func(i, j int) bool {
			return meshIDs[sources[i]] < meshIDs[sources[j]]
		})

		mappings := make([]CellToSourcesMapping, 0, clusterToNumberOfMappings[cluster])
		for clusterSource := 0; clusterSource < len(sources); {
			meshID := meshIDs[sources[clusterSource]]
			next := clusterSource + 1
			for next < len(sources) && meshIDs[sources[next]] == meshID {
				next++
			}

			dups := lookup.LtsIDs(meshID)
			for dup := 0; dup < dups.Count(); dup++ {
				ltsID := dups.At(dup)
				mappings = append(mappings, CellToSourcesMapping{
					Cell:                 lookup.Cell(ltsID),
					LtsID:                ltsID,
					PointSourcesOffset:   clusterSource,
					NumberOfPointSources: next - clusterSource,
				})
			}
			clusterSource = next
		}

		cmps[cluster] = ClusterMapping{
			Sources:       sources,
			CellToSources: mappings,
		}
	}
	return cmps, nil
}
