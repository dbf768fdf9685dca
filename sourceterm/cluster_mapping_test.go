package sourceterm

import (
	"errors"
	"testing"

	"github.com/notargets/DGSource/lts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup maps mesh ids to explicit LTS ids and clusters
type fakeLookup struct {
	numClusters int
	dups        map[int][]int
	clusters    []int
	cells       []lts.Cell
}

func newFakeLookup(numClusters int, clusters []int, dups map[int][]int) *fakeLookup {
	f := &fakeLookup{numClusters: numClusters, dups: dups, clusters: clusters}
	f.cells = make([]lts.Cell, len(clusters))
	for id := range f.cells {
		f.cells[id] = lts.Cell{LtsID: id, Cluster: clusters[id]}
	}
	return f
}

func (f *fakeLookup) NumClusters() int { return f.numClusters }
func (f *fakeLookup) ClusterID(ltsID int) int { return f.clusters[ltsID] }
func (f *fakeLookup) Cell(ltsID int) *lts.Cell { return &f.cells[ltsID] }
func (f *fakeLookup) LtsIDs(meshID int) lts.DuplicateList {
	var d lts.DuplicateList
	for _, id := range f.dups[meshID] {
		if err := d.Add(id); err != nil {
			panic(err)
		}
	}
	return d
}

func TestMapPointSourcesToClusters(t *testing.T) {
	lookup := newFakeLookup(2, []int{0, 1, 1, 0, 0}, map[int][]int{
		1: {0},
		2: {1, 2},
		3: {3, 4},
	})
	meshIDs := []int{3, 1, 3, 2, 1}

	cmps, err := MapPointSourcesToClusters(meshIDs, lookup)
	require.NoError(t, err)
	require.Len(t, cmps, 2)

	// Sorted by mesh id, input order on ties
	assert.Equal(t, []int{1, 4, 0, 2}, cmps[0].Sources)
	assert.Equal(t, []int{3}, cmps[1].Sources)

	type span struct{ lts, offset, count int }
	spans := func(cm ClusterMapping) (out []span) {
		for _, m := range cm.CellToSources {
			assert.Same(t, lookup.Cell(m.LtsID), m.Cell)
			out = append(out, span{m.LtsID, m.PointSourcesOffset, m.NumberOfPointSources})
		}
		return
	}
	assert.Equal(t, []span{{0, 0, 2}, {3, 2, 2}, {4, 2, 2}}, spans(cmps[0]))
	assert.Equal(t, []span{{1, 0, 1}, {2, 0, 1}}, spans(cmps[1]))
}

func TestMapPointSourcesToClusters_RoundTrip(t *testing.T) {
	lookup := newFakeLookup(3, []int{0, 2, 2, 1, 1, 1, 0}, map[int][]int{
		0: {0},
		1: {1, 2},
		2: {3, 4, 5},
		3: {6},
	})
	meshIDs := []int{2, 0, 1, 3, 2, 2, 1, 0, 3}

	cmps, err := MapPointSourcesToClusters(meshIDs, lookup)
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, cm := range cmps {
		for _, s := range cm.Sources {
			seen[s]++
		}
		// Every source of the cluster is covered once per copy of its element
		covered := make(map[int]int)
		for _, m := range cm.CellToSources {
			for i := m.PointSourcesOffset; i < m.PointSourcesOffset+m.NumberOfPointSources; i++ {
				source := cm.Sources[i]
				assert.Contains(t, lookup.dups[meshIDs[source]], m.LtsID)
				covered[source]++
			}
		}
		for _, s := range cm.Sources {
			assert.Equal(t, len(lookup.dups[meshIDs[s]]), covered[s], "source %d", s)
		}
	}
	for s := range meshIDs {
		assert.Equal(t, 1, seen[s], "source %d", s)
	}
}

func TestMapPointSourcesToClusters_Errors(t *testing.T) {
	lookup := newFakeLookup(2, []int{0, 1}, map[int][]int{
		0: {0, 1},
		1: {},
	})

	_, err := MapPointSourcesToClusters([]int{0}, lookup)
	assert.True(t, errors.Is(err, ErrClusterMismatch))

	_, err = MapPointSourcesToClusters([]int{1}, lookup)
	assert.Error(t, err)

	cmps, err := MapPointSourcesToClusters(nil, lookup)
	require.NoError(t, err)
	require.Len(t, cmps, 2)
	assert.Empty(t, cmps[0].Sources)
	assert.Empty(t, cmps[1].CellToSources)
}
