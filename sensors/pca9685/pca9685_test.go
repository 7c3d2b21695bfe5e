package pca9685

import (
	"testing"
	"time"

	"github.com/kidoman/embd"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

// fakeI2CBus records every WriteByteToReg call (with its wall-clock
// time) and never errors, standing in for the real embd.I2CBus in
// tests.
type fakeI2CBus struct {
	writes []regWrite
}

type regWrite struct {
	addr, reg, value byte
	at               time.Time
}

func (f *fakeI2CBus) ReadByte(addr byte) (byte, error)                     { return 0, nil }
func (f *fakeI2CBus) ReadBytes(addr byte, num int) ([]byte, error)         { return make([]byte, num), nil }
func (f *fakeI2CBus) WriteByte(addr byte, value byte) error                { return nil }
func (f *fakeI2CBus) WriteBytes(addr byte, value []byte) error             { return nil }
func (f *fakeI2CBus) ReadFromReg(addr, reg byte, n int) ([]byte, error)    { return make([]byte, n), nil }
func (f *fakeI2CBus) ReadByteFromReg(addr, reg byte) (byte, error)         { return 0, nil }
func (f *fakeI2CBus) ReadWordFromReg(addr, reg byte) (uint16, error)       { return 0, nil }
func (f *fakeI2CBus) WriteToReg(addr, reg byte, value []byte) error        { return nil }
func (f *fakeI2CBus) WriteWordToReg(addr, reg byte, value uint16) error    { return nil }
func (f *fakeI2CBus) Close() error                                        { return nil }

func (f *fakeI2CBus) WriteByteToReg(addr, reg, value byte) error {
	f.writes = append(f.writes, regWrite{addr, reg, value, time.Now()})
	return nil
}

var _ embd.I2CBus = (*fakeI2CBus)(nil)

func newTestDriver() (*Driver, *fakeI2CBus) {
	fake := &fakeI2CBus{}
	a := bus.New(fake)
	return New(a), fake
}

// plateau is one group of 16 writes (4 channels x 4 registers) issued
// by a single writeOnly call, with channel 0's decoded tick value and
// the time of its first write.
type plateau struct {
	at     time.Time
	ticks0 uint16
}

func plateaus(writes []regWrite) []plateau {
	var out []plateau
	for i := 0; i+16 <= len(writes); i += 16 {
		group := writes[i : i+16]
		var lo, hi byte
		for _, w := range group {
			if w.reg == regLED0OnL+2 {
				lo = w.value
			}
			if w.reg == regLED0OnL+3 {
				hi = w.value
			}
		}
		out = append(out, plateau{at: group[0].at, ticks0: uint16(hi)<<8 | uint16(lo)})
	}
	return out
}

func ticksForPower(power uint32) uint16 {
	span := config.PWMMax - config.PWMMin
	return uint16((uint64(power-config.PWMMin) * (pwmResolution - 1)) / uint64(span))
}

func TestWriteOnlyRejectsOutOfRangePower(t *testing.T) {
	d, _ := newTestDriver()
	power := [4]uint32{config.PWMMin, config.PWMMax + 1, config.PWMMin, config.PWMMin}
	err := d.WriteOnly(power)
	if _, ok := err.(*errdefs.PWMOutOfRange); !ok {
		t.Fatalf("WriteOnly with out-of-range power = %v, want *errdefs.PWMOutOfRange", err)
	}
}

func TestWriteEnforcesMinimumInterval(t *testing.T) {
	d, _ := newTestDriver()
	power := [4]uint32{config.PWMMin, config.PWMMin, config.PWMMin, config.PWMMin}
	now := time.Now()

	if err := d.Write(power, now); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := d.Write(power, now.Add(time.Millisecond)); !errdefs.IsNotDue(err) {
		t.Fatalf("Write before MS5611_Period elapsed = %v, want ErrNotDue", err)
	}
	if err := d.Write(power, now.Add(config.MS5611Period+time.Millisecond)); err != nil {
		t.Fatalf("Write after the interval elapsed failed: %v", err)
	}
}

// TestArm is spec.md §8 end-to-end scenario 6: exactly three writes,
// values (MIN, MAX, MIN), with >=~40ms between the first two and >=~70ms
// between the last two. The 50ms wait after the final write is not
// observed by the recorded write times and is not checked here.
func TestArm(t *testing.T) {
	d, fake := newTestDriver()

	if err := d.Arm(); err != nil {
		t.Fatalf("Arm() returned error: %v", err)
	}

	ps := plateaus(fake.writes)
	if len(ps) != 3 {
		t.Fatalf("observed %d write plateaus, want 3", len(ps))
	}

	wantTicks := []uint16{ticksForPower(config.PWMMin), ticksForPower(config.PWMMax), ticksForPower(config.PWMMin)}
	for i, p := range ps {
		if p.ticks0 != wantTicks[i] {
			t.Errorf("plateau %d ticks = %d, want %d", i, p.ticks0, wantTicks[i])
		}
	}

	gap1 := ps[1].at.Sub(ps[0].at)
	gap2 := ps[2].at.Sub(ps[1].at)
	if gap1 < 35*time.Millisecond {
		t.Errorf("gap between MIN and MAX writes = %v, want >= ~40ms", gap1)
	}
	if gap2 < 65*time.Millisecond {
		t.Errorf("gap between MAX and MIN writes = %v, want >= ~70ms", gap2)
	}
}
