package sourceterm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrFormat is wrapped by every error caused by a malformed rupture description
var ErrFormat = errors.New("malformed rupture description")

// FSRMDescription is an explicit moment tensor rupture: one tensor shared by
// all sources, rotated per source by strike, dip and rake. Angles are stored
// in radians.
type FSRMDescription struct {
	MomentTensor    [3][3]float64
	Centres         []r3.Vec
	Strikes         []float64
	Dips            []float64
	Rakes           []float64
	Areas           []float64
	Onsets          []float64
	Timestep        float64
	NumberOfSamples int
	TimeHistories   []float64 // NumberOfSamples values per source, source-major
}

// NumberOfSources returns the number of point sources
func (f *FSRMDescription) NumberOfSources() int { return len(f.Centres) }

// TimeHistory returns the samples of one source
func (f *FSRMDescription) TimeHistory(source int) []float64 {
	return f.TimeHistories[source*f.NumberOfSamples : (source+1)*f.NumberOfSamples]
}

// Validate checks the array lengths agree
func (f *FSRMDescription) Validate() error {
	n := f.NumberOfSources()
	for name, l := range map[string]int{
		"strikes": len(f.Strikes), "dips": len(f.Dips), "rakes": len(f.Rakes),
		"areas": len(f.Areas), "onsets": len(f.Onsets),
	} {
		if l != n {
			return fmt.Errorf("%w: %d %s for %d sources", ErrFormat, l, name, n)
		}
	}
	if f.NumberOfSamples < 0 {
		return fmt.Errorf("%w: negative number of samples %d", ErrFormat, f.NumberOfSamples)
	}
	if f.NumberOfSamples > 1 && !(f.Timestep > 0) {
		return fmt.Errorf("%w: time step must be positive, got %g", ErrFormat, f.Timestep)
	}
	if len(f.TimeHistories) != n*f.NumberOfSamples {
		return fmt.Errorf("%w: %d samples, expected %d", ErrFormat, len(f.TimeHistories), n*f.NumberOfSamples)
	}
	return nil
}

// ReadFSRMFile reads an FSRM text file
func ReadFSRMFile(path string) (*FSRMDescription, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	f, err := ReadFSRM(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ReadFSRM parses the FSRM text format: a header line before each of the
// moment tensor, the source count, the per-source lines
// "x y z strike dip rake area onset", the sampling "dt numberOfSamples" and
// the samples. Angles in the file are degrees. Blank lines are ignored.
func ReadFSRM(r io.Reader) (*FSRMDescription, error) {
	lr := &lineReader{scanner: bufio.NewScanner(r)}
	f := &FSRMDescription{}

	if err := lr.header("moment tensor"); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		row, err := lr.floats("moment tensor row", 3)
		if err != nil {
			return nil, err
		}
		copy(f.MomentTensor[i][:], row)
	}

	if err := lr.header("number of subfaults"); err != nil {
		return nil, err
	}
	count, err := lr.floats("number of subfaults", 1)
	if err != nil {
		return nil, err
	}
	n, ok := toCount(count[0])
	if !ok {
		return nil, lr.errorf("invalid number of subfaults %g", count[0])
	}

	if err := lr.header("subfault table"); err != nil {
		return nil, err
	}
	deg := math.Pi / 180
	for i := 0; i < n; i++ {
		v, err := lr.floats("subfault", 8)
		if err != nil {
			return nil, err
		}
		f.Centres = append(f.Centres, r3.Vec{X: v[0], Y: v[1], Z: v[2]})
		f.Strikes = append(f.Strikes, v[3]*deg)
		f.Dips = append(f.Dips, v[4]*deg)
		f.Rakes = append(f.Rakes, v[5]*deg)
		f.Areas = append(f.Areas, v[6])
		f.Onsets = append(f.Onsets, v[7])
	}

	if err := lr.header("source time function"); err != nil {
		return nil, err
	}
	sampling, err := lr.floats("sampling", 2)
	if err != nil {
		return nil, err
	}
	f.Timestep = sampling[0]
	if f.NumberOfSamples, ok = toCount(sampling[1]); !ok {
		return nil, lr.errorf("invalid number of samples %g", sampling[1])
	}
	if n > 0 && f.NumberOfSamples > math.MaxInt32/n {
		return nil, lr.errorf("%d samples for %d subfaults overflows", f.NumberOfSamples, n)
	}

	if err := lr.header("samples"); err != nil {
		return nil, err
	}
	// The buffer grows with the samples actually present, not the header count
	total := n * f.NumberOfSamples
	for len(f.TimeHistories) < total {
		line, err := lr.next("samples")
		if err != nil {
			return nil, err
		}
		for _, tok := range strings.Fields(line) {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, lr.errorf("sample %q: %v", tok, err)
			}
			f.TimeHistories = append(f.TimeHistories, v)
		}
	}
	if len(f.TimeHistories) != total {
		return nil, lr.errorf("%d samples, expected %d", len(f.TimeHistories), total)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// toCount converts a header count, rejecting fractions, negatives and values
// beyond int32
func toCount(v float64) (int, bool) {
	if !(v >= 0 && v <= math.MaxInt32) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// lineReader hands out non-blank lines and tracks the line number for errors
type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func (lr *lineReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrFormat, lr.line, fmt.Sprintf(format, args...))
}

func (lr *lineReader) next(what string) (string, error) {
	for lr.scanner.Scan() {
		lr.line++
		if line := strings.TrimSpace(lr.scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := lr.scanner.Err(); err != nil {
		return "", err
	}
	return "", lr.errorf("unexpected end of input, expected %s", what)
}

// header consumes a free text header line, which must not start with a number
func (lr *lineReader) header(what string) error {
	line, err := lr.next(what + " header")
	if err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(strings.Fields(line)[0], 64); err == nil {
		return lr.errorf("missing %s header, found %q", what, line)
	}
	return nil
}

func (lr *lineReader) floats(what string, count int) ([]float64, error) {
	line, err := lr.next(what)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) < count {
		return nil, lr.errorf("%s: %d values, expected %d", what, len(fields), count)
	}
	v := make([]float64, count)
	for i := range v {
		if v[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return nil, lr.errorf("%s: %v", what, err)
		}
	}
	return v, nil
}
