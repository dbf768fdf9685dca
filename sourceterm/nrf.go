package sourceterm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Subfault is one point source of a kinematic rupture
type Subfault struct {
	Tan1, Tan2, Normal r3.Vec // Fault basis
	Mu                 float64 // Shear modulus, 0 selects the modulus of the host element
	Area               float64
	Tinit              float64 // Rupture onset
	Timestep           float64 // Slip rate sampling interval
}

// Offsets holds, per slip direction, the start of a subfault's samples
type Offsets [3]int

// NRFDescription is a subfault based rupture. Subfault i owns samples
// SlipRates[c][SROffsets[i][c]:SROffsets[i+1][c]] of direction c.
type NRFDescription struct {
	Centres   []r3.Vec
	Subfaults []Subfault
	SROffsets []Offsets // Length NumberOfSources()+1
	SlipRates [3][]float64
}

// NumberOfSources returns the number of subfaults
func (n *NRFDescription) NumberOfSources() int { return len(n.Centres) }

// Samples returns the direction c slip rate samples of subfault i
func (n *NRFDescription) Samples(i, c int) []float64 {
	return n.SlipRates[c][n.SROffsets[i][c]:n.SROffsets[i+1][c]]
}

// Validate checks array lengths and offset monotonicity
func (n *NRFDescription) Validate() error {
	num := n.NumberOfSources()
	if len(n.Subfaults) != num {
		return fmt.Errorf("%w: %d subfaults for %d centres", ErrFormat, len(n.Subfaults), num)
	}
	if len(n.SROffsets) != num+1 {
		return fmt.Errorf("%w: %d slip rate offsets for %d sources", ErrFormat, len(n.SROffsets), num)
	}
	for c := 0; c < 3; c++ {
		if n.SROffsets[0][c] != 0 {
			return fmt.Errorf("%w: direction %d offsets start at %d", ErrFormat, c, n.SROffsets[0][c])
		}
		for i := 0; i < num; i++ {
			if n.SROffsets[i+1][c] < n.SROffsets[i][c] {
				return fmt.Errorf("%w: direction %d offsets decrease at source %d", ErrFormat, c, i)
			}
			if n.SROffsets[i+1][c] > n.SROffsets[i][c]+1 && !(n.Subfaults[i].Timestep > 0) {
				return fmt.Errorf("%w: source %d has time step %g", ErrFormat, i, n.Subfaults[i].Timestep)
			}
		}
		if n.SROffsets[num][c] > len(n.SlipRates[c]) {
			return fmt.Errorf("%w: direction %d offsets reach %d, only %d samples",
				ErrFormat, c, n.SROffsets[num][c], len(n.SlipRates[c]))
		}
	}
	return nil
}

// ReadNRFFile reads an NRF netCDF file
func ReadNRFFile(path string) (*NRFDescription, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	n, err := ReadNRF(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// NRFDataVersion tags files written by WriteNRF. Files without the attribute
// are read as the same layout.
const NRFDataVersion = "1.0"

// ErrNetCDF4 is returned for HDF5 based files, such as NRF files with
// compound subfault records, which the classic decoder cannot read
var ErrNetCDF4 = fmt.Errorf("%w: netCDF-4/HDF5 encoding, convert to the classic layout", ErrFormat)

var hdf5Signature = []byte("\x89HDF\r\n\x1a\n")

var vectorVariables = []string{"centres", "tan1", "tan2", "normal"}
var scalarVariables = []string{"mu", "area", "tinit", "timestep"}
var sliprateVariables = [3]string{"sliprates1", "sliprates2", "sliprates3"}

// ReadNRF reads the classic netCDF layout written by WriteNRF
func ReadNRF(rw cdf.ReaderWriterAt) (n *NRFDescription, err error) {
	// The decoder panics on some malformed headers and on type mismatches
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("%w: %v", ErrFormat, r)
		}
	}()

	sig := make([]byte, len(hdf5Signature))
	if _, err := rw.ReadAt(sig, 0); err == nil && bytes.Equal(sig, hdf5Signature) {
		return nil, ErrNetCDF4
	}

	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if version, ok := f.Header.GetAttribute("", "data_version").(string); ok && version != NRFDataVersion {
		return nil, fmt.Errorf("%w: data version %q, expected %q", ErrFormat, version, NRFDataVersion)
	}

	lengths := f.Header.Lengths("centres")
	if len(lengths) != 2 || lengths[1] != 3 {
		return nil, fmt.Errorf("%w: centres has shape %v, expected (source, 3)", ErrFormat, lengths)
	}
	num := lengths[0]

	vectors := make(map[string][]float64, len(vectorVariables))
	for _, name := range vectorVariables {
		if vectors[name], err = readFloat64(f, name, num*3); err != nil {
			return nil, err
		}
	}
	scalars := make(map[string][]float64, len(scalarVariables))
	for _, name := range scalarVariables {
		if scalars[name], err = readFloat64(f, name, num); err != nil {
			return nil, err
		}
	}

	offsets, err := readInt32(f, "sroffsets", (num+1)*3)
	if err != nil {
		return nil, err
	}

	n = &NRFDescription{
		Centres:   make([]r3.Vec, num),
		Subfaults: make([]Subfault, num),
		SROffsets: make([]Offsets, num+1),
	}
	vec := func(name string, i int) r3.Vec {
		v := vectors[name]
		return r3.Vec{X: v[3*i], Y: v[3*i+1], Z: v[3*i+2]}
	}
	for i := 0; i < num; i++ {
		n.Centres[i] = vec("centres", i)
		n.Subfaults[i] = Subfault{
			Tan1:     vec("tan1", i),
			Tan2:     vec("tan2", i),
			Normal:   vec("normal", i),
			Mu:       scalars["mu"][i],
			Area:     scalars["area"][i],
			Tinit:    scalars["tinit"][i],
			Timestep: scalars["timestep"][i],
		}
	}
	for i := 0; i <= num; i++ {
		for c := 0; c < 3; c++ {
			n.SROffsets[i][c] = int(offsets[3*i+c])
		}
	}

	for c, name := range sliprateVariables {
		// Empty directions are stored with a single padding sample
		if n.SROffsets[num][c] == 0 {
			continue
		}
		l := f.Header.Lengths(name)
		if len(l) != 1 {
			return nil, fmt.Errorf("%w: %s has shape %v", ErrFormat, name, l)
		}
		if n.SlipRates[c], err = readFloat64(f, name, l[0]); err != nil {
			return nil, err
		}
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func readFloat64(f *cdf.File, name string, expected int) ([]float64, error) {
	if got := product(f.Header.Lengths(name)); got != expected {
		return nil, fmt.Errorf("%w: variable %s has %d values, expected %d", ErrFormat, name, got, expected)
	}
	buf := make([]float64, expected)
	if err := readAll(f, name, buf, expected); err != nil {
		return nil, err
	}
	return buf, nil
}

func readInt32(f *cdf.File, name string, expected int) ([]int32, error) {
	if got := product(f.Header.Lengths(name)); got != expected {
		return nil, fmt.Errorf("%w: variable %s has %d values, expected %d", ErrFormat, name, got, expected)
	}
	buf := make([]int32, expected)
	if err := readAll(f, name, buf, expected); err != nil {
		return nil, err
	}
	return buf, nil
}

func readAll(f *cdf.File, name string, buf interface{}, expected int) error {
	got, err := f.Reader(name, nil, nil).Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && got == expected) {
		return fmt.Errorf("%w: reading %s: %v", ErrFormat, name, err)
	}
	if got != expected {
		return fmt.Errorf("%w: read %d values of %s, expected %d", ErrFormat, got, name, expected)
	}
	return nil
}

func product(lengths []int) int {
	if len(lengths) == 0 {
		return 0
	}
	n := 1
	for _, l := range lengths {
		n *= l
	}
	return n
}

// WriteNRFFile writes an NRF netCDF file, replacing any existing file
func WriteNRFFile(path string, n *NRFDescription) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteNRF(file, n); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}

// WriteNRF writes the rupture in classic netCDF format
func WriteNRF(w cdf.ReaderWriterAt, n *NRFDescription) error {
	return writeNRF(w, n, NRFDataVersion)
}

// writeNRF omits the data_version attribute when version is empty
func writeNRF(w cdf.ReaderWriterAt, n *NRFDescription, version string) error {
	if err := n.Validate(); err != nil {
		return err
	}
	num := n.NumberOfSources()
	if num == 0 {
		return fmt.Errorf("%w: an NRF file needs at least one source", ErrFormat)
	}

	// netCDF reserves length 0 for the record dimension
	var sampleLengths [3]int
	for c := range sampleLengths {
		sampleLengths[c] = max(n.SROffsets[num][c], 1)
	}
	h := cdf.NewHeader(
		[]string{"source", "sroffset", "direction", "sample1", "sample2", "sample3"},
		[]int{num, num + 1, 3, sampleLengths[0], sampleLengths[1], sampleLengths[2]})
	h.AddAttribute("", "comment", "point source rupture description")
	if version != "" {
		h.AddAttribute("", "data_version", version)
	}
	for _, name := range vectorVariables {
		h.AddVariable(name, []string{"source", "direction"}, []float64{0})
	}
	for _, name := range scalarVariables {
		h.AddVariable(name, []string{"source"}, []float64{0})
	}
	h.AddVariable("sroffsets", []string{"sroffset", "direction"}, []int32{0})
	for c, name := range sliprateVariables {
		h.AddVariable(name, []string{fmt.Sprintf("sample%d", c+1)}, []float64{0})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}

	vectors := map[string]func(i int) r3.Vec{
		"centres": func(i int) r3.Vec { return n.Centres[i] },
		"tan1":    func(i int) r3.Vec { return n.Subfaults[i].Tan1 },
		"tan2":    func(i int) r3.Vec { return n.Subfaults[i].Tan2 },
		"normal":  func(i int) r3.Vec { return n.Subfaults[i].Normal },
	}
	for _, name := range vectorVariables {
		data := make([]float64, 0, 3*num)
		for i := 0; i < num; i++ {
			v := vectors[name](i)
			data = append(data, v.X, v.Y, v.Z)
		}
		if err := writeVariable(f, name, data); err != nil {
			return err
		}
	}

	scalars := map[string]func(s Subfault) float64{
		"mu":       func(s Subfault) float64 { return s.Mu },
		"area":     func(s Subfault) float64 { return s.Area },
		"tinit":    func(s Subfault) float64 { return s.Tinit },
		"timestep": func(s Subfault) float64 { return s.Timestep },
	}
	for _, name := range scalarVariables {
		data := make([]float64, num)
		for i, s := range n.Subfaults {
			data[i] = scalars[name](s)
		}
		if err := writeVariable(f, name, data); err != nil {
			return err
		}
	}

	offsets := make([]int32, 0, 3*(num+1))
	for _, o := range n.SROffsets {
		offsets = append(offsets, int32(o[0]), int32(o[1]), int32(o[2]))
	}
	if err := writeVariable(f, "sroffsets", offsets); err != nil {
		return err
	}

	for c, name := range sliprateVariables {
		data := make([]float64, sampleLengths[c])
		copy(data, n.SlipRates[c][:n.SROffsets[num][c]])
		if err := writeVariable(f, name, data); err != nil {
			return err
		}
	}
	return nil
}

func writeVariable(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(data); err != nil {
		return fmt.Errorf("writing variable %s: %w", name, err)
	}
	return nil
}
