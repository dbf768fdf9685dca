package partitions

import (
	"testing"

	"github.com/notargets/DGSource/internal/boxmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPartitions_Block(t *testing.T) {
	pb := &PartitionBuilder{
		Mesh:          boxmesh.Box(1, 1, 2, 1),
		NumPartitions: 2,
		Strategy:      BlockPartition,
	}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	assert.Equal(t, 2, layout.NumPartitions)
	assert.Equal(t, 12, layout.TotalElements)
	assert.Equal(t, 6, layout.KpartMax)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, layout.Partitions[0].Elements)
	assert.Equal(t, []int{6, 7, 8, 9, 10, 11}, layout.Partitions[1].Elements)
	assert.Equal(t, 1, layout.GetPartition(8))
	assert.Equal(t, -1, layout.GetPartition(12))
}

func TestBuildPartitions_Strategies(t *testing.T) {
	mesh := boxmesh.Box(2, 2, 2, 1)
	testCases := []struct {
		name     string
		strategy PartitionStrategy
		target   int
		parts    int
	}{
		{"block by target size", BlockPartition, 10, 5},
		{"round robin", RoundRobin, 16, 3},
		{"morton", SpaceFillingCurve, 12, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pb := &PartitionBuilder{Mesh: mesh, TargetPartitionSize: tc.target, Strategy: tc.strategy}
			layout, err := pb.BuildPartitions()
			require.NoError(t, err)
			assert.Equal(t, tc.parts, layout.NumPartitions)
			require.NoError(t, layout.ValidateLayout())

			stats := layout.PartitionStatistics()
			assert.Equal(t, tc.parts, stats.NumPartitions)
			assert.LessOrEqual(t, stats.MinElements, stats.MaxElements)
			assert.GreaterOrEqual(t, stats.Imbalance, 1.0)
		})
	}
}

func TestBuildPartitions_MortonKeepsCubesTogether(t *testing.T) {
	// Two cubes side by side in x: the first Z-order split is at x=1
	mesh := boxmesh.Box(2, 1, 1, 1)
	pb := &PartitionBuilder{Mesh: mesh, NumPartitions: 2, Strategy: SpaceFillingCurve}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	for _, p := range layout.Partitions {
		assert.Equal(t, 6, p.NumElements)
		cube := p.Elements[0] / 6
		for _, k := range p.Elements {
			assert.Equal(t, cube, k/6, "partition %d mixes cubes", p.ID)
		}
	}
}

func TestBuildPartitions_FromMesh(t *testing.T) {
	mesh := boxmesh.Box(1, 1, 1, 1)
	mesh.EToP = []int{1, 1, 2, 2, 1, 2}
	layout, err := (&PartitionBuilder{Mesh: mesh, Strategy: FromMesh}).BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 2, layout.NumPartitions)
	assert.Equal(t, []int{0, 0, 1, 1, 0, 1}, layout.EToP)
	assert.Equal(t, []int{0, 1, 4}, layout.Partitions[0].Elements)

	mesh.EToP = nil
	_, err = (&PartitionBuilder{Mesh: mesh, Strategy: FromMesh}).BuildPartitions()
	assert.Error(t, err)
}

func TestValidateLayout_Errors(t *testing.T) {
	layout := &PartitionLayout{
		Partitions: []Partition{
			{ID: 0, Elements: []int{0, 1}, NumElements: 2, MaxElements: 2},
			{ID: 1, Elements: []int{2}, NumElements: 1, MaxElements: 2},
		},
		KpartMax:      2,
		TotalElements: 3,
		NumPartitions: 2,
		EToP:          []int{0, 0, 1},
	}
	require.NoError(t, layout.ValidateLayout())

	layout.EToP[1] = 1
	assert.Error(t, layout.ValidateLayout(), "element listed under the wrong partition")
	layout.EToP[1] = 0

	layout.KpartMax = 3
	assert.Error(t, layout.ValidateLayout())
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]PartitionStrategy{
		"":            BlockPartition,
		"Round-Robin": RoundRobin,
		"morton":      SpaceFillingCurve,
		"mesh":        FromMesh,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseStrategy("metis")
	assert.Error(t, err)
}
