// Package config provides configuration loading for the source mapping tool.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/notargets/DGSource/geometry"
	"github.com/notargets/DGSource/internal/boxmesh"
	"github.com/notargets/DGSource/locator"
	"github.com/notargets/DGSource/lts"
	"github.com/notargets/DGSource/partitions"
)

// Config represents a complete point source load
type Config struct {
	Mesh      MeshConfig      `yaml:"mesh"`
	Partition PartitionConfig `yaml:"partition"`
	LTS       lts.Parameters  `yaml:"lts"`
	Locator   LocatorConfig   `yaml:"locator"`
	Basis     BasisConfig     `yaml:"basis"`
	Material  MaterialConfig  `yaml:"material"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// MeshConfig selects the mesh: a mesh file, or a generated box when File is empty
type MeshConfig struct {
	// File is a Gambit, Gmsh or SU2 mesh read through the gocfd readers
	File string    `yaml:"file"`
	Box  BoxConfig `yaml:"box"`
}

// BoxConfig describes a block of cubes, each split into six tetrahedra
type BoxConfig struct {
	NX int     `yaml:"nx"`
	NY int     `yaml:"ny"`
	NZ int     `yaml:"nz"`
	H  float64 `yaml:"h"` // Cube edge length
}

// PartitionConfig splits the mesh into simulated ranks
type PartitionConfig struct {
	// Strategy is one of block, round-robin, morton or mesh
	Strategy string `yaml:"strategy"`
	// Ranks is the exact number of partitions, takes precedence over TargetSize
	Ranks      int `yaml:"ranks"`
	TargetSize int `yaml:"target_size"`
}

// LocatorConfig configures the point location search
type LocatorConfig struct {
	// Strategy is brute-force or bbox-index
	Strategy string `yaml:"strategy"`
	// Workers per rank, 0 uses all CPUs
	Workers int `yaml:"workers"`
	// Tolerance relative to the element size
	Tolerance float64 `yaml:"tolerance"`
}

// BasisConfig sets the order of the modal basis evaluated at each source
type BasisConfig struct {
	Order int `yaml:"order"`
}

// MaterialConfig is a background material with optional depth layers
type MaterialConfig struct {
	Background lts.Material     `yaml:"background"`
	Layers     []lts.DepthLayer `yaml:"layers"`
}

// SourcesConfig names the rupture description to load
type SourcesConfig struct {
	// Format is fsrm or nrf
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// DefaultConfig returns a single rank load on a small generated box
func DefaultConfig() *Config {
	return &Config{
		Mesh: MeshConfig{
			Box: BoxConfig{NX: 2, NY: 2, NZ: 2, H: 1},
		},
		Partition: PartitionConfig{
			Strategy: "block",
			Ranks:    1,
		},
		LTS: lts.DefaultParameters(),
		Locator: LocatorConfig{
			Strategy:  "brute-force",
			Tolerance: locator.DefaultTolerance,
		},
		Basis: BasisConfig{Order: 0},
		Material: MaterialConfig{
			Background: lts.Material{Rho: 2700, Mu: 3.2e10, Lambda: 3.2e10},
		},
		Sources: SourcesConfig{Format: "fsrm"},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Mesh.File == "" {
		b := c.Mesh.Box
		if b.NX < 1 || b.NY < 1 || b.NZ < 1 {
			return fmt.Errorf("mesh.box dimensions must be positive, got %dx%dx%d", b.NX, b.NY, b.NZ)
		}
		if b.H <= 0 {
			return fmt.Errorf("mesh.box.h must be positive, got %g", b.H)
		}
	}
	if _, err := partitions.ParseStrategy(c.Partition.Strategy); err != nil {
		return fmt.Errorf("partition.strategy: %w", err)
	}
	if c.Partition.Ranks < 0 || c.Partition.TargetSize < 0 {
		return fmt.Errorf("partition.ranks and partition.target_size must not be negative")
	}
	if err := c.LTS.Validate(); err != nil {
		return fmt.Errorf("lts: %w", err)
	}
	if _, err := locator.ParseStrategy(c.Locator.Strategy); err != nil {
		return fmt.Errorf("locator.strategy: %w", err)
	}
	if c.Locator.Tolerance < 0 {
		return fmt.Errorf("locator.tolerance must not be negative, got %g", c.Locator.Tolerance)
	}
	if c.Basis.Order < 0 {
		return fmt.Errorf("basis.order must not be negative, got %d", c.Basis.Order)
	}
	if err := c.Material.Background.Validate(); err != nil {
		return fmt.Errorf("material.background: %w", err)
	}
	for i, layer := range c.Material.Layers {
		if err := layer.Material.Validate(); err != nil {
			return fmt.Errorf("material.layers[%d]: %w", i, err)
		}
	}
	switch strings.ToLower(c.Sources.Format) {
	case "fsrm", "nrf":
	default:
		return fmt.Errorf("sources.format must be fsrm or nrf, got %q", c.Sources.Format)
	}
	if c.Sources.Path == "" {
		return fmt.Errorf("sources.path is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadMesh reads the mesh file or generates the box
func (c *Config) LoadMesh() (*geometry.Mesh, error) {
	if c.Mesh.File != "" {
		return geometry.ReadMeshFile(c.Mesh.File)
	}
	b := c.Mesh.Box
	return boxmesh.Box(b.NX, b.NY, b.NZ, b.H), nil
}

// PartitionBuilder returns a builder for the configured partitioning of m
func (c *Config) PartitionBuilder(m *geometry.Mesh) (*partitions.PartitionBuilder, error) {
	strategy, err := partitions.ParseStrategy(c.Partition.Strategy)
	if err != nil {
		return nil, err
	}
	return &partitions.PartitionBuilder{
		Mesh:                m,
		NumPartitions:       c.Partition.Ranks,
		TargetPartitionSize: c.Partition.TargetSize,
		Strategy:            strategy,
	}, nil
}

// LocatorOptions converts the locator section
func (c *Config) LocatorOptions() (locator.Options, error) {
	strategy, err := locator.ParseStrategy(c.Locator.Strategy)
	if err != nil {
		return locator.Options{}, err
	}
	return locator.Options{
		Workers:   c.Locator.Workers,
		Strategy:  strategy,
		Tolerance: c.Locator.Tolerance,
	}, nil
}

// MaterialModel returns a uniform model, or a layered one when layers are given
func (c *Config) MaterialModel() lts.MaterialModel {
	if len(c.Material.Layers) == 0 {
		return lts.Uniform{Material: c.Material.Background}
	}
	return lts.Layered{Background: c.Material.Background, Layers: c.Material.Layers}
}
