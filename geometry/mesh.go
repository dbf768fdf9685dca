package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateElement is returned when an element has (numerically) zero volume
var ErrDegenerateElement = errors.New("degenerate element")

// FaceVertices lists the three local vertices forming each tetrahedron face
var FaceVertices = [4][3]int{
	{0, 1, 2}, // Face 0
	{0, 1, 3}, // Face 1
	{1, 2, 3}, // Face 2
	{0, 2, 3}, // Face 3
}

// oppositeVertex is the local vertex not touching each face
var oppositeVertex = [4]int{3, 2, 0, 1}

// Mesh is an unstructured tetrahedral mesh. A Mesh may be a partition-local
// view of a larger mesh, in which case GlobalIDs maps local element
// indices back to the global numbering.
type Mesh struct {
	Vertices  []r3.Vec
	EToV      [][4]int // Element to vertex connectivity
	GlobalIDs []int    // Local element -> global element, nil means identity
	EToP      []int    // Element to partition, nil unless supplied by the mesh file
}

// NewMesh builds a mesh from vertex coordinates and element connectivity
func NewMesh(vertices []r3.Vec, eToV [][]int) (*Mesh, error) {
	m := &Mesh{
		Vertices: vertices,
		EToV:     make([][4]int, len(eToV)),
	}
	for k, verts := range eToV {
		if len(verts) != 4 {
			return nil, fmt.Errorf("element %d has %d vertices, expected 4", k, len(verts))
		}
		for i, v := range verts {
			if v < 0 || v >= len(vertices) {
				return nil, fmt.Errorf("element %d references vertex %d, mesh has %d vertices",
					k, v, len(vertices))
			}
			m.EToV[k][i] = v
		}
	}
	return m, nil
}

// NumElements returns the number of elements in the mesh
func (m *Mesh) NumElements() int {
	return len(m.EToV)
}

// GlobalID returns the global element index of local element k
func (m *Mesh) GlobalID(k int) int {
	if m.GlobalIDs == nil {
		return k
	}
	return m.GlobalIDs[k]
}

// Submesh returns a view holding only the listed elements, numbered in the
// order given. Vertex storage is shared with the parent mesh.
func (m *Mesh) Submesh(elements []int) *Mesh {
	sub := &Mesh{
		Vertices:  m.Vertices,
		EToV:      make([][4]int, len(elements)),
		GlobalIDs: make([]int, len(elements)),
	}
	for i, k := range elements {
		sub.EToV[i] = m.EToV[k]
		sub.GlobalIDs[i] = m.GlobalID(k)
	}
	return sub
}

// ElementVertices returns the four vertex coordinates of element k
func (m *Mesh) ElementVertices(k int) (v [4]r3.Vec) {
	for i, id := range m.EToV[k] {
		v[i] = m.Vertices[id]
	}
	return
}

// Centroid returns the arithmetic mean of the element vertices
func (m *Mesh) Centroid(k int) r3.Vec {
	v := m.ElementVertices(k)
	c := r3.Add(r3.Add(v[0], v[1]), r3.Add(v[2], v[3]))
	return r3.Scale(0.25, c)
}

// Volume returns the unsigned volume of element k
func (m *Mesh) Volume(k int) float64 {
	v := m.ElementVertices(k)
	a := r3.Sub(v[1], v[0])
	b := r3.Sub(v[2], v[0])
	c := r3.Sub(v[3], v[0])
	return math.Abs(r3.Dot(a, r3.Cross(b, c))) / 6
}

// FaceArea returns the area of the given face of element k
func (m *Mesh) FaceArea(k, face int) float64 {
	v := m.ElementVertices(k)
	fv := FaceVertices[face]
	n := r3.Cross(r3.Sub(v[fv[1]], v[fv[0]]), r3.Sub(v[fv[2]], v[fv[0]]))
	return 0.5 * r3.Norm(n)
}

// Inradius returns the radius of the sphere inscribed in element k
func (m *Mesh) Inradius(k int) float64 {
	var area float64
	for face := 0; face < 4; face++ {
		area += m.FaceArea(k, face)
	}
	if area == 0 {
		return 0
	}
	return 3 * m.Volume(k) / area
}

// JacobianDeterminant returns |∂(x,y,z)/∂(r,s,t)| for the affine map from the
// reference tetrahedron (-1,-1,-1),(1,-1,-1),(-1,1,-1),(-1,-1,1) onto element k
func (m *Mesh) JacobianDeterminant(k int) float64 {
	return 0.75 * m.Volume(k)
}

// OutwardNormal returns the unit outward normal of the given face of element k
// together with a point lying on that face
func (m *Mesh) OutwardNormal(k, face int) (n, p r3.Vec, err error) {
	v := m.ElementVertices(k)
	fv := FaceVertices[face]
	p = v[fv[0]]
	n = r3.Cross(r3.Sub(v[fv[1]], p), r3.Sub(v[fv[2]], p))
	mag := r3.Norm(n)
	if mag < 1e-300 {
		return n, p, fmt.Errorf("element %d face %d: %w", k, face, ErrDegenerateElement)
	}
	n = r3.Scale(1/mag, n)
	// Orient away from the vertex opposite the face
	if r3.Dot(n, r3.Sub(v[oppositeVertex[face]], p)) > 0 {
		n = r3.Scale(-1, n)
	}
	return n, p, nil
}

// PlaneEquations returns the four outward face planes of element k laid out
// as planes[dim][face], so that for a homogeneous point [x,y,z,1] the signed
// distance to face f is sum_dim planes[dim][f]*point[dim].
func (m *Mesh) PlaneEquations(k int) (planes [4][4]float64, err error) {
	for face := 0; face < 4; face++ {
		n, p, err := m.OutwardNormal(k, face)
		if err != nil {
			return planes, err
		}
		planes[0][face] = n.X
		planes[1][face] = n.Y
		planes[2][face] = n.Z
		planes[3][face] = -r3.Dot(n, p)
	}
	return planes, nil
}

// ReferenceCoordinates inverts the affine map of element k,
//
//	x = ½(-(1+r+s+t)v0 + (1+r)v1 + (1+s)v2 + (1+t)v3)
//
// returning the reference coordinates (r,s,t) of the physical point x.
func (m *Mesh) ReferenceCoordinates(k int, x r3.Vec) (r, s, t float64, err error) {
	v := m.ElementVertices(k)
	e1 := r3.Sub(v[1], v[0])
	e2 := r3.Sub(v[2], v[0])
	e3 := r3.Sub(v[3], v[0])
	A := mat.NewDense(3, 3, []float64{
		e1.X, e2.X, e3.X,
		e1.Y, e2.Y, e3.Y,
		e1.Z, e2.Z, e3.Z,
	})
	d := r3.Sub(x, v[0])
	rhs := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})

	var xi mat.VecDense
	if err = xi.SolveVec(A, rhs); err != nil {
		return 0, 0, 0, fmt.Errorf("element %d: %w: %v", k, ErrDegenerateElement, err)
	}
	return 2*xi.AtVec(0) - 1, 2*xi.AtVec(1) - 1, 2*xi.AtVec(2) - 1, nil
}
