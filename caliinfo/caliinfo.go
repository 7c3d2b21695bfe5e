// Package caliinfo implements the per-device calibration info: bias and
// standard-deviation vectors learned during a stationary calibration
// phase, plus apply() to remove the bias from a subsequent raw reading.
//
// Mutated only during the calibration phase; read-only during flight
// (spec.md §3), so no lock is needed once Drone_I2C_Calibration-
// equivalent orchestration has returned.
package caliinfo

import "github.com/wtchen-rtpi/rtpidrone/config"

// Info holds a device's learned bias and standard-deviation vectors.
// len(Bias) == len(SD) == the device's dimension at all times.
type Info struct {
	bias []float64
	sd   []float64
	// scale is an optional per-axis rescaling table (spec.md §3:
	// "optional scale/offset table"). New sets every entry to 1.0, and
	// no device in this module changes it; a caller can write through
	// Scale() to set one.
	scale []float64
}

// New allocates a zeroed Info for a device of the given dimension.
// Before calibration, bias and sd are zero (spec.md §3 invariant).
func New(dimension int) *Info {
	scale := make([]float64, dimension)
	for i := range scale {
		scale[i] = 1.0
	}
	return &Info{
		bias:  make([]float64, dimension),
		sd:    make([]float64, dimension),
		scale: scale,
	}
}

// Dimension returns len(Bias) == len(SD).
func (c *Info) Dimension() int { return len(c.bias) }

// Mean returns a mutable reference to the bias vector, for the
// calibration aggregator to fill in directly (mirrors the original's
// Drone_I2C_Cali_getMean, which returns a pointer the caller writes
// through).
func (c *Info) Mean() []float64 { return c.bias }

// SD returns a mutable reference to the standard-deviation vector, for
// the aggregator to fill in directly.
func (c *Info) SD() []float64 { return c.sd }

// Scale returns a mutable reference to the optional per-axis scale
// table.
func (c *Info) Scale() []float64 { return c.scale }

// SetMeanSD overwrites the bias and sd vectors wholesale. Used by the
// calibration aggregator once it has computed the final statistics.
func (c *Info) SetMeanSD(mean, sd []float64) {
	copy(c.bias, mean)
	copy(c.sd, sd)
}

// Apply subtracts the learned bias (and, if set, applies the optional
// per-axis scale) from a raw physical-units sample, returning the
// calibrated value. Calibration is not idempotent: applying Apply
// twice to an already-calibrated sample is not the same as applying it
// once (spec.md §8).
func (c *Info) Apply(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		d := v - c.bias[i]
		if i < len(c.scale) {
			d *= c.scale[i]
		}
		out[i] = d
	}
	return out
}

// WithinBiasBound reports whether the learned bias satisfies spec.md
// §3's post-calibration invariant |bias| < DEVICE_MAX_BIAS.
func (c *Info) WithinBiasBound() bool {
	for _, b := range c.bias {
		if b >= config.DeviceMaxBias || b <= -config.DeviceMaxBias {
			return false
		}
	}
	return true
}
