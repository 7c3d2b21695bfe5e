// Package pca9685 implements the PWM driver contract (spec.md §4.8)
// for the PCA9685PW, the I²C PWM generator driving the four ESCs.
//
// Unlike the other sensors, this device is write-only and rate-limited
// rather than sampled: write enforces a minimum inter-write interval
// of MS5611_Period and returns errdefs.ErrNotDue if called early,
// exactly as PCA9685PW_write does in original_source (it is the
// "step" branch of Drone_I2C_ExchangeData, gated by the same slow-tick
// cadence as the barometers).
package pca9685

import (
	"time"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

const (
	i2cAddr = 0x40

	regMode1    = 0x00
	regPrescale = 0xFE
	regLED0OnL  = 0x06 // LED0_ON_L; each channel occupies 4 consecutive registers

	mode1Sleep  = 0x10
	mode1AutoInc = 0xA0

	numChannels = 4

	// pwmResolution is the PCA9685's 12-bit counter width; power ticks
	// (1750..3500, in spec.md's PWM_MIN/PWM_MAX units) are mapped onto
	// it linearly across a 20ms (50Hz) period.
	pwmResolution = 4096
	pwmFreqHz     = 50
)

// Driver is the PCA9685PW PWM actuator driver. It is not a device.Device:
// the scheduler holds it directly since its contract (write/writeOnly,
// rate limiting) doesn't fit the sample-oriented Device interface.
type Driver struct {
	a *bus.Arbiter

	lastWrite time.Time
	hasWrite  bool
}

// New constructs the PCA9685PW driver bound to a.
func New(a *bus.Arbiter) *Driver {
	return &Driver{a: a}
}

// Init configures the chip for 50Hz output with register
// auto-increment enabled, per the PCA9685 datasheet's standard
// oscillator/prescale sequence.
func (d *Driver) Init() error {
	g := d.a.Acquire()
	defer g.Release()

	if err := d.a.Bus.WriteByteToReg(i2cAddr, regMode1, mode1Sleep); err != nil {
		return &errdefs.SensorInitError{Which: "PCA9685PW", Cause: err}
	}
	prescale := byte(25000000/(pwmResolution*pwmFreqHz) - 1)
	if err := d.a.Bus.WriteByteToReg(i2cAddr, regPrescale, prescale); err != nil {
		return &errdefs.SensorInitError{Which: "PCA9685PW", Cause: err}
	}
	if err := d.a.Bus.WriteByteToReg(i2cAddr, regMode1, mode1AutoInc); err != nil {
		return &errdefs.SensorInitError{Which: "PCA9685PW", Cause: err}
	}
	time.Sleep(500 * time.Microsecond) // oscillator stabilization
	glog.Infof("PCA9685PW: initialized (50Hz, auto-increment)")
	return nil
}

// Write validates power against [PWM_MIN, PWM_MAX], enforces the
// minimum inter-write interval (MS5611_Period), and on success writes
// all four channels and records now as the last write time. Returns PWMOutOfRange on a
// contract violation, or errdefs.ErrNotDue if called before the
// interval has elapsed.
func (d *Driver) Write(power [4]uint32, now time.Time) error {
	if d.hasWrite && now.Sub(d.lastWrite) < config.MS5611Period {
		return errdefs.ErrNotDue
	}
	if err := d.writeOnly(power); err != nil {
		return err
	}
	d.lastWrite = now
	d.hasWrite = true
	return nil
}

// WriteOnly writes all four channels unconditionally, bypassing the
// rate limit. Used by the ESC arming sequence (spec.md §4.8) and by
// the mag-PWM calibration sweep (external tooling, not reimplemented
// here per SPEC_FULL.md §3).
func (d *Driver) WriteOnly(power [4]uint32) error {
	return d.writeOnly(power)
}

func (d *Driver) writeOnly(power [4]uint32) error {
	for i, p := range power {
		if p < config.PWMMin || p > config.PWMMax {
			return &errdefs.PWMOutOfRange{Value: p, Min: config.PWMMin, Max: config.PWMMax}
		}
		if err := d.writeChannel(i, p); err != nil {
			return err
		}
	}
	return nil
}

// writeChannel maps a power tick onto the 12-bit on/off counts for one
// channel and writes all four registers in one bus acquisition.
func (d *Driver) writeChannel(channel int, power uint32) error {
	span := config.PWMMax - config.PWMMin
	ticks := uint16((uint64(power-config.PWMMin) * (pwmResolution - 1)) / uint64(span))

	g := d.a.Acquire()
	defer g.Release()

	base := byte(int(regLED0OnL) + 4*channel)
	regs := []struct {
		off byte
		val byte
	}{
		{0, 0x00},
		{1, 0x00},
		{2, byte(ticks & 0xFF)},
		{3, byte(ticks >> 8)},
	}
	for _, r := range regs {
		if err := d.a.Bus.WriteByteToReg(i2cAddr, base+r.off, r.val); err != nil {
			return &errdefs.SensorReadError{Which: "PCA9685PW", Cause: err}
		}
	}
	return nil
}

// Arm runs the ESC start-up sequence exactly once (spec.md §4.8): write
// MIN, wait 40ms; write MAX, wait 70ms; write MIN, wait 50ms. Errors
// from each write are aggregated rather than aborting mid-sequence,
// matching original_source's PCA9685PW_ESC_Init, which sums return
// codes across all three writes instead of short-circuiting.
func (d *Driver) Arm() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	min := [4]uint32{config.PWMMin, config.PWMMin, config.PWMMin, config.PWMMin}
	max := [4]uint32{config.PWMMax, config.PWMMax, config.PWMMax, config.PWMMax}

	record(d.writeOnly(min))
	time.Sleep(40 * time.Millisecond)
	record(d.writeOnly(max))
	time.Sleep(70 * time.Millisecond)
	record(d.writeOnly(min))
	time.Sleep(50 * time.Millisecond)

	if first != nil {
		glog.Errorf("PCA9685PW: ESC arming sequence had failures: %v", first)
	}
	return first
}
