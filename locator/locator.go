package locator

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/notargets/DGSource/geometry"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Strategy selects how candidate elements are enumerated for each point
type Strategy int

const (
	// BruteForce tests every (element, point) pair, elements split across workers
	BruteForce Strategy = iota
	// BoundingBoxIndex prefilters candidate elements with an R-tree over
	// element bounding boxes before running the plane test
	BoundingBoxIndex
)

func (s Strategy) String() string {
	switch s {
	case BruteForce:
		return "brute-force"
	case BoundingBoxIndex:
		return "bbox-index"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration name into a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "brute-force", "bruteforce", "brute":
		return BruteForce, nil
	case "bbox-index", "rtree", "index":
		return BoundingBoxIndex, nil
	default:
		return BruteForce, fmt.Errorf("unknown locator strategy %q", name)
	}
}

// DefaultTolerance is the relative slack allowed on the inside test, scaled
// by the size of each element and its distance from the origin
const DefaultTolerance = 1e-12

// Options controls a Locate call
type Options struct {
	Workers   int     // Parallel workers, 0 means runtime.NumCPU()
	Strategy  Strategy
	Tolerance float64 // Relative inside-test slack, 0 means DefaultTolerance
}

// Result holds, per point, whether it was found and the containing element.
// Element[p] is -1 when Found[p] is false.
type Result struct {
	Found   []bool
	Element []int
}

// NumFound returns the number of points located in some element
func (r *Result) NumFound() (n int) {
	for _, f := range r.Found {
		if f {
			n++
		}
	}
	return
}

// elementPlanes holds the face planes of one element plus its inside tolerance
type elementPlanes struct {
	planes [4][4]float64
	tol    float64
}

// inside reports whether the homogeneous point [x,y,z,1] is on the inner side
// of all four faces
func (ep *elementPlanes) inside(p r3.Vec) bool {
	var result [4]float64
	point := [4]float64{p.X, p.Y, p.Z, 1}
	for dim := 0; dim < 4; dim++ {
		for face := 0; face < 4; face++ {
			result[face] += ep.planes[dim][face] * point[dim]
		}
	}
	for face := 0; face < 4; face++ {
		if result[face] > ep.tol {
			return false
		}
	}
	return true
}

func buildPlanes(m *geometry.Mesh, relTol float64) ([]elementPlanes, error) {
	planes := make([]elementPlanes, m.NumElements())
	for k := range planes {
		p, err := m.PlaneEquations(k)
		if err != nil {
			return nil, err
		}
		v := m.ElementVertices(k)
		var scale float64
		for i := 1; i < 4; i++ {
			scale = math.Max(scale, r3.Norm(r3.Sub(v[i], v[0])))
		}
		scale += r3.Norm(v[0])
		planes[k] = elementPlanes{planes: p, tol: relTol * scale}
	}
	return planes, nil
}

// Locate finds, for every point, the mesh element containing it. When a point
// lies inside several elements (shared faces, edges or vertices) the element
// with the lowest index wins, independent of worker scheduling.
func Locate(points []r3.Vec, m *geometry.Mesh, opts Options) (*Result, error) {
	relTol := opts.Tolerance
	if relTol == 0 {
		relTol = DefaultTolerance
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	planes, err := buildPlanes(m, relTol)
	if err != nil {
		return nil, fmt.Errorf("building plane equations: %w", err)
	}

	var element []int
	switch opts.Strategy {
	case BruteForce:
		element, err = locateBruteForce(points, planes, workers)
	case BoundingBoxIndex:
		element, err = locateIndexed(points, m, planes, workers)
	default:
		return nil, fmt.Errorf("unsupported locator strategy %v", opts.Strategy)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Found:   make([]bool, len(points)),
		Element: element,
	}
	for p, k := range element {
		res.Found[p] = k >= 0
	}
	return res, nil
}

// locateBruteForce runs the two-phase reduction: every worker scans a
// contiguous block of elements into a private buffer, then the buffers are
// merged in block order so the lowest element index is kept.
func locateBruteForce(points []r3.Vec, planes []elementPlanes, workers int) ([]int, error) {
	K := len(planes)
	if workers > K {
		workers = K
	}
	element := newUnassigned(len(points))
	if workers == 0 {
		return element, nil
	}

	buffers := make([][]int, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		kMin, kMax := blockRange(w, workers, K)
		buffers[w] = newUnassigned(len(points))
		buf := buffers[w]
		g.Go(func() error {
			for k := kMin; k < kMax; k++ {
				for p := range points {
					if buf[p] < 0 && planes[k].inside(points[p]) {
						buf[p] = k
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for p := range element {
		for w := 0; w < workers; w++ {
			if buffers[w][p] >= 0 {
				element[p] = buffers[w][p]
				break
			}
		}
	}
	return element, nil
}

// blockRange returns the half-open element range [kMin, kMax) of block w
func blockRange(w, numBlocks, K int) (kMin, kMax int) {
	base := K / numBlocks
	rem := K % numBlocks
	kMin = w*base + min(w, rem)
	kMax = kMin + base
	if w < rem {
		kMax++
	}
	return
}

func newUnassigned(n int) []int {
	e := make([]int, n)
	for i := range e {
		e[i] = -1
	}
	return e
}
