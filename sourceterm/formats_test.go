package sourceterm

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const fsrmTwoSources = `Seismic Moment Tensor
0 1 0
1 0 0
0 0 0
Number of subfaults
2
x y z strike dip rake area Onset time
0.5 0.5 0.25  90 45 0  2.0 0.1
1.5 0.5 0.75  0 90 180 3.0 0.0

source time function
0.01 3
samples
0
1
0.5
0 0.25 0.5
`

func TestReadFSRM(t *testing.T) {
	f, err := ReadFSRM(strings.NewReader(fsrmTwoSources))
	require.NoError(t, err)

	assert.Equal(t, doubleCoupleXY, f.MomentTensor)
	require.Equal(t, 2, f.NumberOfSources())
	assert.Equal(t, r3.Vec{X: 1.5, Y: 0.5, Z: 0.75}, f.Centres[1])
	assert.InDelta(t, math.Pi/2, f.Strikes[0], 1e-15)
	assert.InDelta(t, math.Pi/4, f.Dips[0], 1e-15)
	assert.InDelta(t, math.Pi, f.Rakes[1], 1e-15)
	assert.Equal(t, []float64{2, 3}, f.Areas)
	assert.Equal(t, []float64{0.1, 0}, f.Onsets)
	assert.Equal(t, 0.01, f.Timestep)
	assert.Equal(t, 3, f.NumberOfSamples)
	assert.Equal(t, []float64{0, 0.25, 0.5}, f.TimeHistory(1))
}

func TestReadFSRMFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.fsrm")
	require.NoError(t, os.WriteFile(path, []byte(fsrmTwoSources), 0o644))
	f, err := ReadFSRMFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumberOfSources())

	_, err = ReadFSRMFile(filepath.Join(t.TempDir(), "missing.fsrm"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadFSRM_FormatErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing header": strings.Replace(fsrmTwoSources, "Seismic Moment Tensor\n", "", 1),
		"short row":      strings.Replace(fsrmTwoSources, "1 0 0\n", "1 0\n", 1),
		"bad count":      strings.Replace(fsrmTwoSources, "\n2\n", "\n2.5\n", 1),
		"bad number":     strings.Replace(fsrmTwoSources, "0.5 0.5 0.25", "0.5 x 0.25", 1),
		"short samples":  strings.Replace(fsrmTwoSources, "0 0.25 0.5\n", "0 0.25\n", 1),
		"bad sample":     strings.Replace(fsrmTwoSources, "0 0.25 0.5", "0 0.25 abc", 1),
		"zero timestep":  strings.Replace(fsrmTwoSources, "0.01 3", "0 3", 1),
		"huge samples":   strings.Replace(fsrmTwoSources, "0.01 3", "0.01 1e16", 1),
		"sample product": strings.Replace(fsrmTwoSources, "0.01 3", "0.01 2000000000", 1),
		"huge count":     strings.Replace(fsrmTwoSources, "\n2\n", "\n1e16\n", 1),
		"nan samples":    strings.Replace(fsrmTwoSources, "0.01 3", "0.01 NaN", 1),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFSRM(strings.NewReader(input))
			assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
		})
	}
}

func testNRF() *NRFDescription {
	return &NRFDescription{
		Centres: []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.25}, {X: 0.25, Y: 0.75, Z: 1.5}},
		Subfaults: []Subfault{
			{
				Tan1: r3.Vec{X: 1}, Tan2: r3.Vec{Y: 1}, Normal: r3.Vec{Z: 1},
				Mu: 0, Area: 2, Tinit: 0.5, Timestep: 0.1,
			},
			{
				Tan1: r3.Vec{Y: 1}, Tan2: r3.Vec{Z: 1}, Normal: r3.Vec{X: 1},
				Mu: 3e10, Area: 4, Tinit: 0, Timestep: 0.2,
			},
		},
		SROffsets: []Offsets{{0, 0, 0}, {3, 0, 1}, {5, 0, 2}},
		SlipRates: [3][]float64{
			{0, 1, 0, 2, 2},
			nil,
			{7, 8},
		},
	}
}

func TestNRF_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rupture.nrf")
	want := testNRF()
	require.NoError(t, WriteNRFFile(path, want))

	got, err := ReadNRFFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, []float64{2, 2}, got.Samples(1, 0))
	assert.Empty(t, got.Samples(0, 1))
	assert.Equal(t, []float64{7}, got.Samples(0, 2))
}

func TestNRF_Validate(t *testing.T) {
	n := testNRF()
	n.SROffsets[1][0] = 6
	assert.True(t, errors.Is(n.Validate(), ErrFormat))

	n = testNRF()
	n.SROffsets = n.SROffsets[:2]
	assert.True(t, errors.Is(n.Validate(), ErrFormat))

	n = testNRF()
	n.SlipRates[0] = n.SlipRates[0][:4]
	assert.True(t, errors.Is(n.Validate(), ErrFormat))

	n = testNRF()
	n.Subfaults[0].Timestep = 0
	assert.True(t, errors.Is(n.Validate(), ErrFormat))
}

func TestNRF_WriteErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.nrf")
	err := WriteNRFFile(path, &NRFDescription{SROffsets: []Offsets{{}}})
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReadNRF_NotNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.nrf")
	require.NoError(t, os.WriteFile(path, []byte(fsrmTwoSources), 0o644))
	_, err := ReadNRFFile(path)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReadNRF_WithoutDataVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unversioned.nrf")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeNRF(file, testNRF(), ""))
	require.NoError(t, file.Close())

	got, err := ReadNRFFile(path)
	require.NoError(t, err)
	assert.Equal(t, testNRF(), got)
}

func TestReadNRF_DataVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.nrf")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeNRF(file, testNRF(), "2.0"))
	require.NoError(t, file.Close())

	_, err = ReadNRFFile(path)
	assert.True(t, errors.Is(err, ErrFormat), "got %v", err)
}

func TestReadNRF_NetCDF4(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compound.nrf")
	header := append([]byte("\x89HDF\r\n\x1a\n"), make([]byte, 512)...)
	require.NoError(t, os.WriteFile(path, header, 0o644))

	_, err := ReadNRFFile(path)
	assert.True(t, errors.Is(err, ErrNetCDF4), "got %v", err)
	assert.True(t, errors.Is(err, ErrFormat))
}
