package sourceterm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/DGSource/basis"
	"github.com/notargets/DGSource/geometry"
	"github.com/notargets/DGSource/locator"
	"github.com/notargets/DGSource/lts"
	"github.com/notargets/DGSource/partitions"
)

// MaterialLookup returns the material of a rank local mesh element
type MaterialLookup interface {
	Material(meshID int) lts.Material
}

// Manager loads rupture descriptions onto the elements of one rank. Mesh holds
// the rank local elements, so its element indices are the mesh ids known to
// Lookup and Materials.
//
// Loading is collective over Comm: every rank of the group must load the same
// description. A rank whose location step or setup fails still takes part in
// the deduplication, owning no source, and reports its error afterwards.
// Invalid descriptions fail before the collective on every rank alike.
type Manager struct {
	Mesh       *geometry.Mesh
	Lookup     ClusterLookup
	Materials  MaterialLookup
	Comm       partitions.Communicator
	Locator    locator.Options
	BasisOrder int
	Logger     *slog.Logger
	Metrics    *Metrics
}

// NewManager returns a manager resolving clusters and materials through lut.
// A nil comm runs single-process and a nil logger logs to slog.Default().
func NewManager(mesh *geometry.Mesh, lut *lts.Lut, comm partitions.Communicator, logger *slog.Logger) *Manager {
	return &Manager{
		Mesh:      mesh,
		Lookup:    lut,
		Materials: lut,
		Comm:      comm,
		Logger:    logger,
	}
}

func (m *Manager) rank() int {
	if m.Comm == nil {
		return 0
	}
	return m.Comm.Rank()
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// LoadSourcesFromFSRMFile reads an FSRM file and loads it
func (m *Manager) LoadSourcesFromFSRMFile(path string, consumer PointSourceConsumer) (*LoadResult, error) {
	m.logger().Info("reading point sources", "rank", m.rank(), "path", path)
	desc, err := ReadFSRMFile(path)
	if err != nil {
		return nil, err
	}
	return m.LoadSourcesFromFSRM(desc, consumer)
}

// LoadSourcesFromFSRM rotates the shared moment tensor of desc per source,
// scales it by the source area and uses the source's time history as the
// slip rate of the first channel
func (m *Manager) LoadSourcesFromFSRM(desc *FSRMDescription, consumer PointSourceConsumer) (*LoadResult, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return m.load(FSRM, desc.Centres, nil, func(ps *PointSources, i, original, meshID int) error {
		tensor := TransformMomentTensor(desc.MomentTensor,
			desc.Strikes[original], desc.Dips[original], desc.Rakes[original])
		for q := range tensor {
			tensor[q] *= desc.Areas[original]
		}
		ps.Tensor[i] = tensor
		ps.SlipRates[i][0] = SamplesToPiecewiseLinearFunction1D(
			desc.TimeHistory(original), desc.Onsets[original], desc.Timestep)
		return nil
	}, consumer)
}

// LoadSourcesFromNRFFile reads an NRF file and loads it
func (m *Manager) LoadSourcesFromNRFFile(path string, consumer PointSourceConsumer) (*LoadResult, error) {
	m.logger().Info("reading point sources", "rank", m.rank(), "path", path)
	desc, err := ReadNRFFile(path)
	if err != nil {
		return nil, err
	}
	return m.LoadSourcesFromNRF(desc, consumer)
}

// LoadSourcesFromNRF stores each subfault's basis tan1, tan2, normal as the
// source tensor together with mu*area and lambda*area. A subfault without a
// shear modulus takes the modulus of its element.
func (m *Manager) LoadSourcesFromNRF(desc *NRFDescription, consumer PointSourceConsumer) (*LoadResult, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	var setupErr error
	if m.Materials == nil {
		setupErr = fmt.Errorf("loading NRF sources: no material lookup")
	}
	return m.load(NRF, desc.Centres, setupErr, func(ps *PointSources, i, original, meshID int) error {
		sf := desc.Subfaults[original]
		ps.Tensor[i] = [NumberOfQuantities]float64{
			sf.Tan1.X, sf.Tan1.Y, sf.Tan1.Z,
			sf.Tan2.X, sf.Tan2.Y, sf.Tan2.Z,
			sf.Normal.X, sf.Normal.Y, sf.Normal.Z,
		}
		material := m.Materials.Material(meshID)
		mu := sf.Mu
		if mu == 0 {
			mu = material.Mu
		}
		ps.MuA[i] = mu * sf.Area
		ps.LambdaA[i] = material.Lambda * sf.Area
		for c := 0; c < 3; c++ {
			ps.SlipRates[i][c] = SamplesToPiecewiseLinearFunction1D(
				desc.Samples(original, c), sf.Tinit, sf.Timestep)
		}
		return nil
	}, consumer)
}

type sourceBuilder func(ps *PointSources, i, original, meshID int) error

// load runs the pipeline of one rank. A non-nil setupErr, like a failed
// location, is returned only once the rank has joined the collective.
func (m *Manager) load(mode Mode, centres []r3.Vec, setupErr error, build sourceBuilder, consumer PointSourceConsumer) (*LoadResult, error) {
	start := time.Now()
	res := &LoadResult{
		ID:   uuid.New(),
		Mode: mode,
		Rank: m.rank(),
	}
	log := m.logger().With("rank", res.Rank, "load_id", res.ID.String(), "mode", mode.String())

	log.Info("finding mesh ids for point sources", "sources", len(centres))
	var located *locator.Result
	if setupErr == nil {
		var err error
		if located, err = locator.Locate(centres, m.Mesh, m.Locator); err != nil {
			setupErr = fmt.Errorf("locating point sources: %w", err)
		}
	}
	contained := make([]bool, len(centres))
	if setupErr == nil {
		contained = located.Found
		res.Located = located.NumFound()
	}

	log.Info("cleaning possible double occurring point sources")
	found, report, err := partitions.Deduplicate(m.Comm, contained)
	if setupErr != nil {
		log.Error("point source load failed", "error", setupErr)
		return nil, setupErr
	}
	if err != nil {
		return nil, fmt.Errorf("deduplicating point sources: %w", err)
	}
	res.Found = found
	res.Cleaned = report.Cleaned
	res.Dropped = report.Unassigned
	log.Info("cleaned double occurring point sources", "cleaned", res.Cleaned)
	if res.Dropped > 0 {
		log.Warn("point sources outside the mesh", "dropped", res.Dropped)
	}

	var originalIndex, meshIDs []int
	for source, owned := range found {
		if owned {
			originalIndex = append(originalIndex, source)
			meshIDs = append(meshIDs, located.Element[source])
		}
	}

	log.Info("mapping point sources to LTS cells", "sources", len(meshIDs))
	res.ClusterMappings, err = MapPointSourcesToClusters(meshIDs, m.Lookup)
	if err != nil {
		return nil, fmt.Errorf("mapping point sources: %w", err)
	}

	res.Sources = make([]PointSources, len(res.ClusterMappings))
	for cluster, cm := range res.ClusterMappings {
		ps := newPointSources(mode, len(cm.Sources))
		for i, source := range cm.Sources {
			original, meshID := originalIndex[source], meshIDs[source]
			ps.OriginalIndex[i] = original
			ps.MeshIDs[i] = meshID
			ps.Centres[i] = centres[original]
			if ps.MInvJInvPhisAtSources[i], err = m.basisAtSource(meshID, centres[original]); err != nil {
				return nil, fmt.Errorf("source %d: %w", original, err)
			}
			if err := build(&ps, i, original, meshID); err != nil {
				return nil, fmt.Errorf("source %d: %w", original, err)
			}
		}
		res.Sources[cluster] = ps
	}

	if consumer != nil {
		consumer.SetPointSourcesForClusters(res.ClusterMappings, res.Sources)
	}

	elapsed := time.Since(start)
	m.Metrics.observe(res, elapsed.Seconds())
	log.Info(".. finished point source initialization",
		"sources", res.NumberOfSources(), "dropped", res.Dropped, "cleaned", res.Cleaned,
		"clusters", len(res.ClusterMappings), "elapsed", elapsed)
	return res, nil
}

// basisAtSource evaluates the modal basis at x scaled by the inverse mass
// matrix of the element, which is 1/|J| for an orthonormal basis
func (m *Manager) basisAtSource(meshID int, x r3.Vec) ([]float64, error) {
	r, s, t, err := m.Mesh.ReferenceCoordinates(meshID, x)
	if err != nil {
		return nil, err
	}
	phis := basis.EvaluateAt(m.BasisOrder, r, s, t)
	invJ := 1 / m.Mesh.JacobianDeterminant(meshID)
	for i := range phis {
		phis[i] *= invJ
	}
	return phis, nil
}
