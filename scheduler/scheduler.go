// Package scheduler implements the periodic control loop (spec.md §4.5):
// a single dedicated loop ticking at CONTROL_PERIOD, reading the
// accelerometer and gyroscope every tick (the "inertial phase") and,
// every PWM_CONTROLPERIOD-th tick (the "slow phase"), writing the
// current PWM setpoints, reading the magnetometer (with motor
// cross-talk correction) and both barometers.
//
// Grounded on original_source's Drone_I2C_ExchangeData: the `step`
// boolean there is this package's slow-tick gate, and the per-field
// ordering (accel, gyro, PWM write, mag, baro1, baro2) is preserved
// exactly since the mag correction consumes the PWM values just
// written (spec.md §5).
package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/data"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
	"github.com/wtchen-rtpi/rtpidrone/internal/clock"
	"github.com/wtchen-rtpi/rtpidrone/magcorr"
	"github.com/wtchen-rtpi/rtpidrone/sensors/pca9685"
)

// Scheduler drives the periodic control loop over a fixed set of
// devices and the PWM actuator driver.
type Scheduler struct {
	Arbiter *bus.Arbiter
	Clock   clock.Clock

	Acc, Gyr, Mag    device.Device
	Baro1, Baro2     device.Device // BMP085, MS5611
	PWM              *pca9685.Driver

	Record *data.Record

	stop uint32 // atomic: 0 running, 1 stop requested

	lastAcc, lastGyr, lastMag, lastBaro1, lastBaro2 int64

	ticks uint64 // total ticks executed, exposed for tests
	magReads, pwmWrites uint64
}

// New builds a Scheduler. The caller is responsible for having already
// run Init and calibration on every device.
func New(a *bus.Arbiter, c clock.Clock, acc, gyr, mag, baro1, baro2 device.Device, pwm *pca9685.Driver, rec *data.Record) *Scheduler {
	return &Scheduler{
		Arbiter: a,
		Clock:   c,
		Acc:     acc,
		Gyr:     gyr,
		Mag:     mag,
		Baro1:   baro1,
		Baro2:   baro2,
		PWM:     pwm,
		Record:  rec,
	}
}

// Stop requests a clean exit. Checked once per tick (spec.md §5); the
// loop drives PWM to PWM_MIN before returning.
func (s *Scheduler) Stop() {
	atomic.StoreUint32(&s.stop, 1)
}

func (s *Scheduler) stopRequested() bool {
	return atomic.LoadUint32(&s.stop) == 1
}

// Run executes the ESC arming sequence once, then ticks the control
// loop every CONTROL_PERIOD until Stop is called, returning the number
// of ticks executed.
func (s *Scheduler) Run() (uint64, error) {
	if err := s.PWM.Arm(); err != nil {
		glog.Errorf("scheduler: ESC arming reported a failure: %v", err)
	}

	deadline := s.Clock.NowNano()
	for !s.stopRequested() {
		deadline += config.ControlPeriod.Nanoseconds()
		if err := s.tick(); err != nil {
			glog.Errorf("scheduler: tick error: %v", err)
		}
		clock.SleepUntil(s.Clock, deadline)
	}

	if err := s.PWM.WriteOnly([4]uint32{config.PWMMin, config.PWMMin, config.PWMMin, config.PWMMin}); err != nil {
		glog.Errorf("scheduler: final PWM_MIN write failed: %v", err)
	}
	for i := range s.Record.Power {
		s.Record.Power[i] = config.PWMMin
	}
	return s.ticks, nil
}

// tick executes exactly one scheduler tick.
func (s *Scheduler) tick() error {
	s.ticks++

	if err := s.sampleVector(s.Acc, &s.lastAcc, s.Record.Acc, s.Record.AccEst); err != nil && !errdefs.IsNotDue(err) {
		return err
	}
	if err := s.sampleVector(s.Gyr, &s.lastGyr, s.Record.Gyr, s.Record.GyrEst); err != nil && !errdefs.IsNotDue(err) {
		return err
	}

	if !s.isSlowTick() {
		return nil
	}

	s.pwmWrites++
	now := time.Unix(0, s.Clock.NowNano())
	if err := s.PWM.Write(s.Record.Power, now); err == nil {
		s.Record.DTAccu += config.ControlPeriod
	} else {
		s.Record.DTAccu = 0
		if !errdefs.IsNotDue(err) {
			glog.Errorf("scheduler: PWM write failed: %v", err)
		}
	}
	s.Record.DT = config.ControlPeriod

	err := s.sampleVector(s.Mag, &s.lastMag, s.Record.Mag, s.Record.MagEst)
	if err == nil {
		s.magReads++
		magcorr.Correct(s.Record.Power, s.Record.MagEst)
	} else if !errdefs.IsNotDue(err) {
		return err
	}

	if err := s.sampleBaro(s.Baro1, &s.lastBaro1, &s.Record.Altitude, &s.Record.AltEst, &s.Record.Temperature, &s.Record.Pressure); err != nil && !errdefs.IsNotDue(err) {
		return err
	}
	if err := s.sampleBaro(s.Baro2, &s.lastBaro2, &s.Record.AltitudeHT, &s.Record.AltHTEst, nil, nil); err != nil && !errdefs.IsNotDue(err) {
		return err
	}

	return nil
}

// isSlowTick reports whether the current tick is a PWM_CONTROLPERIOD-th
// tick. With PWMControlPeriod == 2, ticks 2, 4, 6, ... (1-indexed) are
// slow ticks: exactly half of every run, so over 1000 ticks the
// magnetometer is read and a PWM write is attempted 500 times each
// (spec.md §8 scenario 3).
func (s *Scheduler) isSlowTick() bool {
	return s.ticks%uint64(config.PWMControlPeriod) == 0
}

// sampleVector runs one device through read/convert/filter if its
// nominal period has elapsed since lastUpdate, writing the result into
// destRaw/destFiltered. Returns errdefs.ErrNotDue if the sensor isn't
// due yet, matching get_filtered_value's status distinction (spec.md
// §4.6): NotDue is a status, not a failure.
func (s *Scheduler) sampleVector(d device.Device, lastUpdate *int64, destRaw, destFiltered []float64) error {
	now := s.Clock.NowNano()
	if *lastUpdate != 0 && now-*lastUpdate < d.Period().Nanoseconds() {
		return errdefs.ErrNotDue
	}
	if err := d.ReadRaw(s.Arbiter); err != nil {
		return err
	}
	if err := d.Convert(); err != nil {
		return err
	}
	d.InputFilter()
	copy(destRaw, d.Data())
	copy(destFiltered, d.FilteredData())
	*lastUpdate = now
	return nil
}

// sampleBaro is sampleVector specialized for the two barometer devices,
// whose 3-wide [altitude, temperature, pressure] sample doesn't map
// onto Record's slice fields. tempOut/pressureOut may be nil (MS5611's
// record fields don't carry a second temperature/pressure pair).
func (s *Scheduler) sampleBaro(d device.Device, lastUpdate *int64, altOut, altEstOut, tempOut, pressureOut *float64) error {
	now := s.Clock.NowNano()
	if *lastUpdate != 0 && now-*lastUpdate < d.Period().Nanoseconds() {
		return errdefs.ErrNotDue
	}
	if err := d.ReadRaw(s.Arbiter); err != nil {
		return err
	}
	if err := d.Convert(); err != nil {
		return err
	}
	d.InputFilter()

	phys := d.Data()
	filt := d.FilteredData()
	*altOut = phys[0]
	*altEstOut = filt[0]
	if tempOut != nil {
		*tempOut = phys[1]
	}
	if pressureOut != nil {
		*pressureOut = phys[2]
	}
	*lastUpdate = now
	return nil
}
