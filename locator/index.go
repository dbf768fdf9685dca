package locator

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/notargets/DGSource/geometry"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// elementBox is an rtree entry covering the horizontal extent of one element.
// The vertical extent is checked separately, the tree being two dimensional.
type elementBox struct {
	geom.Polygonal
	id         int
	zMin, zMax float64
}

func newElementBox(k int, v [4]r3.Vec, pad float64) *elementBox {
	bounds := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	b := &elementBox{
		id:   k,
		zMin: math.Inf(1),
		zMax: math.Inf(-1),
	}
	for _, p := range v {
		bounds.Min.X = math.Min(bounds.Min.X, p.X)
		bounds.Min.Y = math.Min(bounds.Min.Y, p.Y)
		bounds.Max.X = math.Max(bounds.Max.X, p.X)
		bounds.Max.Y = math.Max(bounds.Max.Y, p.Y)
		b.zMin = math.Min(b.zMin, p.Z)
		b.zMax = math.Max(b.zMax, p.Z)
	}
	bounds.Min.X -= pad
	bounds.Min.Y -= pad
	bounds.Max.X += pad
	bounds.Max.Y += pad
	b.zMin -= pad
	b.zMax += pad
	b.Polygonal = bounds
	return b
}

// locateIndexed prefilters elements with an R-tree and runs the plane test on
// the candidates only. Points are split across workers; each point keeps the
// lowest candidate index that contains it, so the result matches the brute
// force scan exactly.
func locateIndexed(points []r3.Vec, m *geometry.Mesh, planes []elementPlanes, workers int) ([]int, error) {
	tree := rtree.NewTree(25, 50)
	for k := range planes {
		// The box is padded by the inside tolerance so that boundary points
		// accepted by the plane test are never filtered out
		tree.Insert(newElementBox(k, m.ElementVertices(k), 2*planes[k].tol))
	}

	element := newUnassigned(len(points))
	if workers > len(points) {
		workers = len(points)
	}
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		pMin, pMax := blockRange(w, workers, len(points))
		g.Go(func() error {
			for p := pMin; p < pMax; p++ {
				pt := points[p]
				query := &geom.Bounds{
					Min: geom.Point{X: pt.X, Y: pt.Y},
					Max: geom.Point{X: pt.X, Y: pt.Y},
				}
				for _, s := range tree.SearchIntersect(query) {
					box := s.(*elementBox)
					if pt.Z < box.zMin || pt.Z > box.zMax {
						continue
					}
					if element[p] >= 0 && box.id > element[p] {
						continue
					}
					if planes[box.id].inside(pt) {
						element[p] = box.id
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return element, nil
}
