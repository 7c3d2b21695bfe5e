// Package data implements the shared sample record (spec.md §3, §5):
// a single-writer, multi-reader snapshot of every sensor's latest
// reading plus derived attitude estimates, published without a lock.
// Torn reads by an offline logging/telemetry consumer are accepted;
// the scheduler and the (same-thread, external) attitude estimator
// need no synchronization.
package data

import (
	"math"
	"time"

	"github.com/wtchen-rtpi/rtpidrone/caliinfo"
	"github.com/wtchen-rtpi/rtpidrone/config"
)

const radToDeg = 180 / math.Pi

// Record is the per-tick sample record consumed by the (external)
// attitude estimator and the PWM command bus, and observed read-only by
// the telemetry broadcaster.
type Record struct {
	Acc, AccEst []float64 // 3
	Gyr, GyrEst []float64 // 3
	Mag, MagEst []float64 // 3

	Altitude, AltEst     float64 // BMP085
	AltitudeHT, AltHTEst float64 // MS5611

	Temperature float64
	Pressure    float64

	// Roll, pitch, yaw, in degrees.
	Angle [3]float64

	Power [4]uint32

	T          time.Time
	DT         time.Duration
	DTAccu     time.Duration
}

// New allocates a zeroed Record with PWM setpoints at PWM_MIN, as the
// original's Drone_I2C_DataInit does before any calibration mean is
// available.
func New() *Record {
	r := &Record{
		Acc: make([]float64, 3), AccEst: make([]float64, 3),
		Gyr: make([]float64, 3), GyrEst: make([]float64, 3),
		Mag: make([]float64, 3), MagEst: make([]float64, 3),
	}
	for i := range r.Power {
		r.Power[i] = config.PWMMin
	}
	return r
}

// normN returns the Euclidean length of the first n elements of v,
// matching the original's getSqrt(vec, n) helper used to normalize
// acc/mag before printing and to derive roll/pitch/yaw.
func normN(v []float64, n int) float64 {
	var s float64
	for i := 0; i < n; i++ {
		s += v[i] * v[i]
	}
	return math.Sqrt(s)
}

// SeedFromCalibration seeds the record's initial acc/mag/angle fields
// from the stationary calibration means, rather than leaving the
// first tick's derived angles as meaningless zeros. This mirrors
// Drone_I2C_DataInit in original_source/src/RTPiDrone_I2C.c, a detail
// spec.md's distillation dropped (see SPEC_FULL.md §3.3).
func (r *Record) SeedFromCalibration(accCali, magCali, baroCali *caliinfo.Info) {
	copy(r.Acc, accCali.Mean())
	copy(r.AccEst, accCali.Mean())
	for i := range r.Gyr {
		r.Gyr[i] = 0
	}
	copy(r.Mag, magCali.Mean())
	copy(r.MagEst, magCali.Mean())

	// BMP085's calibration vector is [altitude, temperature, pressure]
	// (original_source hard-codes nData=3 for both barometer
	// calibration workers); index 0 seeds Altitude/AltEst.
	baroMean := baroCali.Mean()
	if len(baroMean) >= 3 {
		r.Altitude = baroMean[0]
		r.AltEst = baroMean[0]
		r.Temperature = baroMean[1]
		r.Pressure = baroMean[2]
	}

	r.Angle[0] = math.Atan2(r.Acc[1], r.Acc[2]) * radToDeg          // roll
	r.Angle[1] = -math.Atan2(r.Acc[0], normN(r.Acc, 3)) * radToDeg  // pitch
	r.Angle[2] = math.Acos(r.Mag[1]/normN(r.Mag, 2)) * radToDeg     // yaw (approx, XY-plane)

	for i := range r.Power {
		r.Power[i] = config.PWMMin
	}
}
