package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/DGSource/config"
	"github.com/notargets/DGSource/lts"
	"github.com/notargets/DGSource/partitions"
	"github.com/notargets/DGSource/sourceterm"
	"github.com/notargets/DGSource/utils"
)

type loadOptions struct {
	configPath   string
	sources      string
	format       string
	ranks        int
	printMetrics bool
	logger       *slog.Logger
}

// rank is one simulated process of the load
type rank struct {
	tree    *lts.Tree
	manager *sourceterm.Manager
	result  *sourceterm.LoadResult
}

func loadConfig(opts loadOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.sources != "" {
		cfg.Sources.Path = opts.sources
	}
	if opts.format != "" {
		cfg.Sources.Format = opts.format
	}
	if opts.ranks > 0 {
		cfg.Partition.Ranks = opts.ranks
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runLoad(out io.Writer, opts loadOptions) error {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	mesh, err := cfg.LoadMesh()
	if err != nil {
		return fmt.Errorf("load mesh: %w", err)
	}
	// Every rank must reach the collective, so reject bad geometry up front
	for k := 0; k < mesh.NumElements(); k++ {
		if _, err := mesh.PlaneEquations(k); err != nil {
			return fmt.Errorf("check mesh: %w", err)
		}
	}

	pb, err := cfg.PartitionBuilder(mesh)
	if err != nil {
		return err
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return fmt.Errorf("partition mesh: %w", err)
	}
	stats := layout.PartitionStatistics()
	logger.Info("mesh partitioned",
		"elements", mesh.NumElements(),
		"ranks", layout.NumPartitions,
		"strategy", pb.Strategy.String(),
		"imbalance", stats.Imbalance)

	fc, err := utils.NewFaceConnector(mesh.EToV, layout.EToP)
	if err != nil {
		return fmt.Errorf("connect faces: %w", err)
	}
	if err := fc.Verify(); err != nil {
		return fmt.Errorf("connect faces: %w", err)
	}

	locatorOpts, err := cfg.LocatorOptions()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	metrics, err := sourceterm.NewMetrics(reg)
	if err != nil {
		return err
	}

	var group *partitions.LocalGroup
	if layout.NumPartitions > 1 {
		group = partitions.NewLocalGroup(layout.NumPartitions)
	}
	model := cfg.MaterialModel()
	ranks := make([]rank, layout.NumPartitions)
	for r := range ranks {
		tree, lut, err := lts.Build(mesh, fc, r, model, cfg.LTS)
		if err != nil {
			return fmt.Errorf("rank %d: build LTS tree: %w", r, err)
		}
		var comm partitions.Communicator = partitions.SingleProcess{}
		if group != nil {
			comm = group.Comm(r)
		}
		m := sourceterm.NewManager(mesh.Submesh(fc.LocalToGlobalElem[r]), lut, comm, logger)
		m.Locator = locatorOpts
		m.BasisOrder = cfg.Basis.Order
		m.Metrics = metrics
		ranks[r] = rank{tree: tree, manager: m}
	}

	load, err := readSources(cfg, logger)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for r := range ranks {
		g.Go(func() error {
			res, err := load(ranks[r].manager)
			if err != nil {
				return fmt.Errorf("rank %d: %w", r, err)
			}
			ranks[r].result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printSummary(out, ranks)
	if opts.printMetrics {
		if err := printMetrics(out, reg); err != nil {
			return err
		}
	}
	return nil
}

// readSources parses the rupture description once and returns the load
// every rank runs on the shared, read-only description
func readSources(cfg *config.Config, logger *slog.Logger) (func(*sourceterm.Manager) (*sourceterm.LoadResult, error), error) {
	logger.Info("reading point sources", "format", cfg.Sources.Format, "path", cfg.Sources.Path)
	switch strings.ToLower(cfg.Sources.Format) {
	case "fsrm":
		desc, err := sourceterm.ReadFSRMFile(cfg.Sources.Path)
		if err != nil {
			return nil, err
		}
		return func(m *sourceterm.Manager) (*sourceterm.LoadResult, error) {
			return m.LoadSourcesFromFSRM(desc, nil)
		}, nil
	case "nrf":
		desc, err := sourceterm.ReadNRFFile(cfg.Sources.Path)
		if err != nil {
			return nil, err
		}
		return func(m *sourceterm.Manager) (*sourceterm.LoadResult, error) {
			return m.LoadSourcesFromNRF(desc, nil)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported source format %q", cfg.Sources.Format)
	}
}

func printSummary(out io.Writer, ranks []rank) {
	for r, rk := range ranks {
		res := rk.result
		fmt.Fprintf(out, "rank %d: %d elements, %d sources (located %d, cleaned %d, dropped %d)\n",
			r, rk.manager.Mesh.NumElements(), res.NumberOfSources(), res.Located, res.Cleaned, res.Dropped)
		for c, cm := range res.ClusterMappings {
			cl := rk.tree.Clusters[c]
			fmt.Fprintf(out, "  cluster %d: dt %.6g, %d cells (ghost %d, copy %d, interior %d), %d sources, %d cell mappings\n",
				c, cl.TimeStep, cl.NumCells(),
				cl.Layers[lts.Ghost].NumCells, cl.Layers[lts.Copy].NumCells, cl.Layers[lts.Interior].NumCells,
				len(cm.Sources), len(cm.CellToSources))
		}
	}
}

func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Fprintf(out, "%s %g\n", name, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(out, "%s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}
