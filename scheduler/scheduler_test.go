package scheduler

import (
	"testing"
	"time"

	"github.com/kidoman/embd"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/caliinfo"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/data"
	"github.com/wtchen-rtpi/rtpidrone/internal/clock"
	"github.com/wtchen-rtpi/rtpidrone/sensors/pca9685"
)

// stepClock is a deterministic clock.Clock: Sleep never actually
// blocks, it advances a synthetic nanosecond counter by exactly d and
// invokes onSleep, letting a test drive a fixed number of ticks in
// real time of a few milliseconds (spec.md §8's "stub clock ticking
// at 250 Hz").
type stepClock struct {
	now     int64
	sleeps  int
	onSleep func(sleeps int)
}

func (c *stepClock) NowNano() int64 { return c.now }

func (c *stepClock) Sleep(d time.Duration) {
	c.now += int64(d)
	c.sleeps++
	if c.onSleep != nil {
		c.onSleep(c.sleeps)
	}
}

var _ clock.Clock = (*stepClock)(nil)

// fakeVectorDevice is a deterministic device.Device stand-in that
// never fails and never touches the bus, standing in for the
// accelerometer/gyroscope/magnetometer/barometer devices.
type fakeVectorDevice struct {
	name   string
	dim    int
	period time.Duration
	val    []float64
	reads  int
	cali   *caliinfo.Info
}

func newFakeVectorDevice(name string, dim int, period time.Duration) *fakeVectorDevice {
	val := make([]float64, dim)
	for i := range val {
		val[i] = float64(i + 1)
	}
	return &fakeVectorDevice{name: name, dim: dim, period: period, val: val, cali: caliinfo.New(dim)}
}

func (d *fakeVectorDevice) Name() string              { return d.name }
func (d *fakeVectorDevice) Dimension() int            { return d.dim }
func (d *fakeVectorDevice) Period() time.Duration     { return d.period }
func (d *fakeVectorDevice) Init(a *bus.Arbiter) error { return nil }
func (d *fakeVectorDevice) End() error                { return nil }
func (d *fakeVectorDevice) Data() []float64           { return d.val }
func (d *fakeVectorDevice) FilteredData() []float64   { return d.val }
func (d *fakeVectorDevice) CaliInfo() *caliinfo.Info  { return d.cali }
func (d *fakeVectorDevice) InputFilter()              {}
func (d *fakeVectorDevice) Convert() error             { return nil }

func (d *fakeVectorDevice) ReadRaw(a *bus.Arbiter) error {
	d.reads++
	return nil
}

// fakeI2CBus is a no-op embd.I2CBus, standing in for the physical bus
// behind the scheduler's PWM driver.
type fakeI2CBus struct{}

func (fakeI2CBus) ReadByte(addr byte) (byte, error)                  { return 0, nil }
func (fakeI2CBus) ReadBytes(addr byte, num int) ([]byte, error)      { return make([]byte, num), nil }
func (fakeI2CBus) WriteByte(addr byte, value byte) error             { return nil }
func (fakeI2CBus) WriteBytes(addr byte, value []byte) error          { return nil }
func (fakeI2CBus) ReadFromReg(addr, reg byte, n int) ([]byte, error) { return make([]byte, n), nil }
func (fakeI2CBus) ReadByteFromReg(addr, reg byte) (byte, error)      { return 0, nil }
func (fakeI2CBus) ReadWordFromReg(addr, reg byte) (uint16, error)    { return 0, nil }
func (fakeI2CBus) WriteToReg(addr, reg byte, value []byte) error     { return nil }
func (fakeI2CBus) WriteByteToReg(addr, reg, value byte) error        { return nil }
func (fakeI2CBus) WriteWordToReg(addr, reg byte, value uint16) error { return nil }
func (fakeI2CBus) Close() error                                      { return nil }

var _ embd.I2CBus = fakeI2CBus{}

func newTestScheduler() (*Scheduler, *stepClock) {
	a := bus.New(fakeI2CBus{})
	c := &stepClock{}
	acc := newFakeVectorDevice("ACC", 3, config.InertialPeriod)
	gyr := newFakeVectorDevice("GYR", 3, config.InertialPeriod)
	// The slow-phase devices are given a period equal to the control
	// tick itself, so every slow tick is due: this isolates the tick
	// pacing mechanism (isSlowTick) from each real sensor's own native
	// rate, which sampleVector/sampleBaro gate independently.
	mag := newFakeVectorDevice("MAG", 3, config.ControlPeriod)
	baro1 := newFakeVectorDevice("BARO1", 3, config.ControlPeriod)
	baro2 := newFakeVectorDevice("BARO2", 3, config.ControlPeriod)
	pwm := pca9685.New(a)
	rec := data.New()

	s := New(a, c, acc, gyr, mag, baro1, baro2, pwm, rec)
	return s, c
}

// TestTickPacing is spec.md §8 end-to-end scenario 3: a stub clock
// ticking at 250Hz (CONTROL_PERIOD) for 1000 ticks reads the
// accelerometer and gyroscope 1000 times each, and attempts a PWM write
// and reads the magnetometer exactly 500 times (the slow-tick cadence).
// pwmWrites counts those attempts, including the ones the driver's
// MS5611_Period minimum interval turns away as not due.
func TestTickPacing(t *testing.T) {
	s, c := newTestScheduler()
	acc := s.Acc.(*fakeVectorDevice)
	gyr := s.Gyr.(*fakeVectorDevice)
	mag := s.Mag.(*fakeVectorDevice)

	const wantTicks = 1000
	c.onSleep = func(sleeps int) {
		if sleeps >= wantTicks {
			s.Stop()
		}
	}

	ticks, err := s.Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if ticks != wantTicks {
		t.Fatalf("Run() executed %d ticks, want %d", ticks, wantTicks)
	}
	if acc.reads != wantTicks {
		t.Errorf("accelerometer reads = %d, want %d", acc.reads, wantTicks)
	}
	if gyr.reads != wantTicks {
		t.Errorf("gyroscope reads = %d, want %d", gyr.reads, wantTicks)
	}
	if mag.reads != wantTicks/2 {
		t.Errorf("magnetometer reads = %d, want %d", mag.reads, wantTicks/2)
	}
	if s.pwmWrites != wantTicks/2 {
		t.Errorf("pwmWrites = %d, want %d", s.pwmWrites, wantTicks/2)
	}
}

// TestGracefulCancellation is spec.md §8 end-to-end scenario 5:
// stopping mid-flight must drive every ESC to PWM_MIN as the final
// act before Run returns.
func TestGracefulCancellation(t *testing.T) {
	s, c := newTestScheduler()

	for i := range s.Record.Power {
		s.Record.Power[i] = config.PWMMax
	}

	const stopAfter = 500
	c.onSleep = func(sleeps int) {
		if sleeps >= stopAfter {
			s.Stop()
		}
	}

	ticks, err := s.Run()
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if ticks != stopAfter {
		t.Fatalf("Run() executed %d ticks, want %d", ticks, stopAfter)
	}
	for i, p := range s.Record.Power {
		if p != config.PWMMin {
			t.Errorf("Power[%d] = %d after stop, want PWM_MIN (%d)", i, p, config.PWMMin)
		}
	}
	if s.Arbiter.Busy() {
		t.Error("bus left busy after Run returned")
	}
}
