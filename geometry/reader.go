package geometry

import (
	"fmt"

	"github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadMeshFile reads a tetrahedral mesh (.neu, .msh or .su2) through the gocfd
// mesh readers. Partition assignments stored in the file are kept in EToP.
func ReadMeshFile(meshfile string) (*Mesh, error) {
	msh, err := readers.ReadMeshFile(meshfile)
	if err != nil {
		return nil, fmt.Errorf("reading mesh file %s: %w", meshfile, err)
	}
	m, err := fromGocfdMesh(msh)
	if err != nil {
		return nil, fmt.Errorf("mesh file %s: %w", meshfile, err)
	}
	return m, nil
}

func fromGocfdMesh(msh *mesh.Mesh) (*Mesh, error) {
	vertices := make([][]float64, len(msh.Vertices))
	for i, v := range msh.Vertices {
		vertices[i] = []float64{v[0], v[1], v[2]}
	}
	eToV := make([][]int, len(msh.EtoV))
	for k, verts := range msh.EtoV {
		eToV[k] = verts
	}
	m, err := FromArrays(vertices, eToV)
	if err != nil {
		return nil, err
	}
	if len(msh.EToP) == m.NumElements() {
		m.EToP = append([]int(nil), msh.EToP...)
	}
	return m, nil
}

// FromArrays builds a mesh from raw coordinate rows and element connectivity.
// Every element must be a tetrahedron.
func FromArrays(vertices [][]float64, eToV [][]int) (*Mesh, error) {
	verts := make([]r3.Vec, len(vertices))
	for i, v := range vertices {
		if len(v) < 3 {
			return nil, fmt.Errorf("vertex %d has %d coordinates, expected 3", i, len(v))
		}
		verts[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	var numTets int
	for k, ev := range eToV {
		if len(ev) != 4 {
			return nil, fmt.Errorf("element %d is not a tetrahedron (%d vertices)", k, len(ev))
		}
		numTets++
	}
	if numTets == 0 {
		return nil, fmt.Errorf("mesh does not have any tets")
	}
	return NewMesh(verts, eToV)
}
