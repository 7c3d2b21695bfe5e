package magcorr

import (
	"math"
	"testing"

	"github.com/wtchen-rtpi/rtpidrone/config"
)

// referenceFit is an independent reimplementation of the fit formula
// (spec.md §4.7), used as the "reference implementation" end-to-end
// scenario 4 demands.
func referenceFit(pwm uint32, coeff [3]float64) float64 {
	p := float64(pwm)
	return coeff[0]*math.Sqrt(p) + coeff[1]*math.Pow(p, 0.25) + coeff[2]
}

func TestThresholdIsStrictlyGreaterThan(t *testing.T) {
	mag := []float64{100, 100, 100}
	power := [4]uint32{config.MagPWMThreshold, config.MagPWMThreshold, config.MagPWMThreshold, config.MagPWMThreshold}
	Correct(power, mag)
	for i, v := range mag {
		if v != 100 {
			t.Errorf("mag[%d] = %v at pwm == threshold, want unchanged 100 (threshold is strict >)", i, v)
		}
	}

	mag = []float64{100, 100, 100}
	power = [4]uint32{config.MagPWMThreshold + 1, config.MagPWMThreshold + 1, config.MagPWMThreshold + 1, config.MagPWMThreshold + 1}
	Correct(power, mag)
	for i, v := range mag {
		if v == 100 {
			t.Errorf("mag[%d] unchanged at pwm == threshold+1, want full subtraction applied", i)
		}
	}
}

func TestCorrectMatchesReferenceBitExactly(t *testing.T) {
	power := [4]uint32{3000, 3000, 3000, 3000}
	mag := []float64{100, 100, 100}

	want := []float64{100, 100, 100}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			want[j] -= referenceFit(power[i], Table[i][j])
		}
	}

	Correct(power, mag)

	for j := 0; j < 3; j++ {
		if mag[j] != want[j] {
			t.Errorf("mag_est[%d] = %v, want %v (bit-exact against reference fit)", j, mag[j], want[j])
		}
	}
}
