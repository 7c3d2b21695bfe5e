// Package filter implements the single-pole IIR low-pass filter that
// sits between a device's calibrated conversion and its published
// value (spec.md §4.6): y[n] = alpha*x[n] + (1-alpha)*y[n-1].
package filter

import "time"

// LowPass is one channel of single-pole IIR filter state.
type LowPass struct {
	alpha     float64
	y         float64
	primed    bool // first sample seeds y rather than blending
}

// NewLowPass builds a filter channel whose cutoff is derived from the
// device's nominal sample rate, the same convention the teacher uses
// when deriving its gyro/accel digital low-pass-filter register
// settings from the chosen sample rate (icm20948.go SetGyroLPF/
// SetAccelLPF pick a DLPF bandwidth as a fraction of sampleRate).
//
// alpha = dt / (rc + dt), rc = 1 / (2*pi*cutoffHz).
func NewLowPass(sampleRate time.Duration, cutoffHz float64) *LowPass {
	dt := sampleRate.Seconds()
	rc := 1.0 / (2 * 3.14159265358979323846 * cutoffHz)
	return &LowPass{alpha: dt / (rc + dt)}
}

// Step feeds one new sample through the filter and returns the updated
// filtered value.
func (f *LowPass) Step(x float64) float64 {
	if !f.primed {
		f.y = x
		f.primed = true
		return f.y
	}
	f.y = f.alpha*x + (1-f.alpha)*f.y
	return f.y
}

// Value returns the filter's current output without advancing it.
func (f *LowPass) Value() float64 { return f.y }

// Bank is a device's per-axis filter state: one LowPass channel per
// dimension of the device's physical sample.
type Bank struct {
	channels []*LowPass
}

// NewBank builds a Bank of n channels sharing the same sample rate and
// cutoff.
func NewBank(n int, sampleRate time.Duration, cutoffHz float64) *Bank {
	b := &Bank{channels: make([]*LowPass, n)}
	for i := range b.channels {
		b.channels[i] = NewLowPass(sampleRate, cutoffHz)
	}
	return b
}

// Step runs one calibrated sample through the bank in place, writing
// the filtered output into out (which must have the same length as in).
func (b *Bank) Step(in, out []float64) {
	for i, v := range in {
		out[i] = b.channels[i].Step(v)
	}
}

// Current copies the bank's present filtered values into out without
// advancing any channel.
func (b *Bank) Current(out []float64) {
	for i, c := range b.channels {
		out[i] = c.Value()
	}
}
