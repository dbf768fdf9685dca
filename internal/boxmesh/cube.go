// Package boxmesh builds conforming tetrahedral meshes of cube blocks.
package boxmesh

import (
	"github.com/notargets/DGSource/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// kuhnPermutations orders the axes walked from the cube origin to the
// opposite corner; each permutation yields one of the six Kuhn tetrahedra.
var kuhnPermutations = [6][3]int{
	{0, 1, 2},
	{0, 2, 1},
	{1, 0, 2},
	{1, 2, 0},
	{2, 0, 1},
	{2, 1, 0},
}

// Box returns the Kuhn triangulation of an nx×ny×nz block of cubes with edge
// length h. Cubes are numbered x-fastest, each contributing six consecutive
// elements in kuhnPermutations order, so element 6*c+p lies in cube c.
func Box(nx, ny, nz int, h float64) *geometry.Mesh {
	vid := func(i, j, k int) int {
		return i + (nx+1)*(j+(ny+1)*k)
	}
	vertices := make([]r3.Vec, (nx+1)*(ny+1)*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				vertices[vid(i, j, k)] = r3.Vec{X: float64(i) * h, Y: float64(j) * h, Z: float64(k) * h}
			}
		}
	}

	var eToV [][]int
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				for _, perm := range kuhnPermutations {
					corner := [3]int{i, j, k}
					tet := []int{vid(corner[0], corner[1], corner[2])}
					for _, axis := range perm {
						corner[axis]++
						tet = append(tet, vid(corner[0], corner[1], corner[2]))
					}
					eToV = append(eToV, tet)
				}
			}
		}
	}

	m, err := geometry.NewMesh(vertices, eToV)
	if err != nil {
		panic(err)
	}
	return m
}
