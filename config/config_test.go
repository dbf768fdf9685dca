package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGSource/locator"
	"github.com/notargets/DGSource/lts"
	"github.com/notargets/DGSource/partitions"
)

func validDefault() *Config {
	cfg := DefaultConfig()
	cfg.Sources.Path = "sources.fsrm"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, cfg.Partition.Ranks)
	assert.Equal(t, "fsrm", cfg.Sources.Format)
	assert.Equal(t, lts.DefaultParameters(), cfg.LTS)
	assert.Equal(t, locator.DefaultTolerance, cfg.Locator.Tolerance)
	assert.Error(t, cfg.Validate(), "sources.path has no default")
	assert.NoError(t, validDefault().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"mesh file skips box", func(c *Config) { c.Mesh.File = "m.neu"; c.Mesh.Box = BoxConfig{} }, false},
		{"empty box", func(c *Config) { c.Mesh.Box.NX = 0 }, true},
		{"negative edge", func(c *Config) { c.Mesh.Box.H = -1 }, true},
		{"unknown partition strategy", func(c *Config) { c.Partition.Strategy = "metis" }, true},
		{"negative ranks", func(c *Config) { c.Partition.Ranks = -2 }, true},
		{"rate below one", func(c *Config) { c.LTS.Rate = 0.5 }, true},
		{"unknown locator", func(c *Config) { c.Locator.Strategy = "octree" }, true},
		{"negative tolerance", func(c *Config) { c.Locator.Tolerance = -1 }, true},
		{"negative order", func(c *Config) { c.Basis.Order = -1 }, true},
		{"bad background", func(c *Config) { c.Material.Background.Rho = 0 }, true},
		{
			"bad layer",
			func(c *Config) { c.Material.Layers = []lts.DepthLayer{{Below: 1, Material: lts.Material{}}} },
			true,
		},
		{"unknown format", func(c *Config) { c.Sources.Format = "srf" }, true},
		{"nrf format", func(c *Config) { c.Sources.Format = "NRF" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefault()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mesh:
  box: {nx: 1, ny: 1, nz: 2, h: 0.5}
partition:
  strategy: morton
  ranks: 2
lts:
  rate: 3
locator:
  strategy: bbox-index
  workers: 4
basis:
  order: 2
material:
  background: {rho: 1, mu: 1, lambda: 2}
  layers:
    - below: 0.5
      material: {rho: 4, mu: 1, lambda: 2}
sources:
  format: nrf
  path: rupture.nrf
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BoxConfig{NX: 1, NY: 1, NZ: 2, H: 0.5}, cfg.Mesh.Box)
	assert.Equal(t, 3.0, cfg.LTS.Rate)
	assert.Equal(t, 0.5, cfg.LTS.CFL, "unset fields keep their defaults")
	assert.Equal(t, 2, cfg.Basis.Order)
	assert.Equal(t, "rupture.nrf", cfg.Sources.Path)

	opts, err := cfg.LocatorOptions()
	require.NoError(t, err)
	assert.Equal(t, locator.BoundingBoxIndex, opts.Strategy)
	assert.Equal(t, 4, opts.Workers)

	mesh, err := cfg.LoadMesh()
	require.NoError(t, err)
	assert.Equal(t, 12, mesh.NumElements())

	pb, err := cfg.PartitionBuilder(mesh)
	require.NoError(t, err)
	assert.Equal(t, partitions.SpaceFillingCurve, pb.Strategy)
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 2, layout.NumPartitions)

	model, ok := cfg.MaterialModel().(lts.Layered)
	require.True(t, ok)
	assert.Equal(t, 4.0, model.MaterialOf(mesh, 0).Rho)
	assert.Equal(t, 1.0, model.MaterialOf(mesh, 11).Rho)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mesh: [unclosed"), 0o644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestMaterialModel_Uniform(t *testing.T) {
	cfg := DefaultConfig()
	_, ok := cfg.MaterialModel().(lts.Uniform)
	assert.True(t, ok)
}
