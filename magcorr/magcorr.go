// Package magcorr implements the magnetometer cross-talk compensator
// (spec.md §4.7): the four motors induce a DC magnetic bias on the
// compass that depends on each motor's current PWM, modeled per-motor
// per-axis as:
//
//	f(pwm) = a*sqrt(pwm) + b*pwm^(1/4) + c
//
// and subtracted from the filtered mag reading whenever a motor's PWM
// exceeds config.MagPWMThreshold (strictly greater than, not
// greater-or-equal: spec.md §8's boundary case).
package magcorr

import (
	"math"

	"github.com/wtchen-rtpi/rtpidrone/config"
)

// fit evaluates a single motor/axis coefficient triple against a PWM
// value, mirroring the original's magFitFunc exactly:
//
//	t[0]*sqrtf(power) + powf(power, 0.25)*t[1] + t[2]
func fit(pwm uint32, coeff [3]float64) float64 {
	p := float64(pwm)
	return coeff[0]*math.Sqrt(p) + math.Pow(p, 0.25)*coeff[1] + coeff[2]
}

// Correct subtracts the motor-induced bias from magEst in place, one
// axis at a time, for every motor whose PWM exceeds the idle threshold.
// power must have length 4 and magEst length 3.
func Correct(power [4]uint32, magEst []float64) {
	for i := 0; i < 4; i++ {
		if power[i] <= config.MagPWMThreshold {
			continue
		}
		for j := 0; j < 3; j++ {
			magEst[j] -= fit(power[i], Table[i][j])
		}
	}
}
