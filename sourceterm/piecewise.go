package sourceterm

import "math"

// PiecewiseLinearFunction1D is a uniformly sampled time function. It is zero
// before Onset, interpolates linearly between samples and holds the last
// sample afterwards. A function without samples is identically zero.
type PiecewiseLinearFunction1D struct {
	Onset            float64
	SamplingInterval float64
	Samples          []float64
}

// SamplesToPiecewiseLinearFunction1D copies samples taken every dt starting at onset
func SamplesToPiecewiseLinearFunction1D(samples []float64, onset, dt float64) PiecewiseLinearFunction1D {
	if len(samples) == 0 {
		return PiecewiseLinearFunction1D{}
	}
	return PiecewiseLinearFunction1D{
		Onset:            onset,
		SamplingInterval: dt,
		Samples:          append([]float64(nil), samples...),
	}
}

// IsZero reports whether the function has no samples
func (f *PiecewiseLinearFunction1D) IsZero() bool { return len(f.Samples) == 0 }

// End returns the time of the last sample
func (f *PiecewiseLinearFunction1D) End() float64 {
	if len(f.Samples) == 0 {
		return f.Onset
	}
	return f.Onset + float64(len(f.Samples)-1)*f.SamplingInterval
}

// Evaluate returns the function value at time t
func (f *PiecewiseLinearFunction1D) Evaluate(t float64) float64 {
	n := len(f.Samples)
	if n == 0 || t < f.Onset {
		return 0
	}
	last := f.Samples[n-1]
	if n == 1 || f.SamplingInterval <= 0 {
		return last
	}
	x := (t - f.Onset) / f.SamplingInterval
	i := int(math.Floor(x))
	if i >= n-1 {
		return last
	}
	frac := x - float64(i)
	return f.Samples[i] + frac*(f.Samples[i+1]-f.Samples[i])
}

// Integrate returns the exact integral of Evaluate over [from, to]
func (f *PiecewiseLinearFunction1D) Integrate(from, to float64) float64 {
	if to < from {
		return -f.Integrate(to, from)
	}
	n := len(f.Samples)
	a := math.Max(from, f.Onset)
	if n == 0 || a >= to {
		return 0
	}

	var total float64
	end := f.End()
	if n > 1 && f.SamplingInterval > 0 && a < end {
		first := int(math.Floor((a - f.Onset) / f.SamplingInterval))
		for i := max(first, 0); i < n-1; i++ {
			t0 := f.Onset + float64(i)*f.SamplingInterval
			t1 := t0 + f.SamplingInterval
			if t0 >= to {
				break
			}
			lo := math.Max(a, t0)
			hi := math.Min(to, t1)
			if hi > lo {
				// Linear on the segment, so the trapezoid rule is exact
				total += (hi - lo) * (f.Evaluate(lo) + f.Evaluate(hi)) / 2
			}
		}
	}

	// Constant tail after the last sample
	if lo := math.Max(a, end); to > lo {
		total += (to - lo) * f.Samples[n-1]
	}
	return total
}
