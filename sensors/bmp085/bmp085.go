// Package bmp085 implements the Device contract for the BMP085
// barometric pressure/temperature/altitude sensor.
//
// spec.md §9 leaves an open question about how BMP085_PeriodLong/Short
// interact with the alternating raw-read state machine; SPEC_FULL.md §4
// resolves it by following original_source's Calibration_Single_BMP085
// literally: each full sample alternates a long and a short ADC cycle,
// with the *previous* read's outcome selecting the next sleep.
package bmp085

import (
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

const (
	i2cAddr = 0x77

	regCalAC1 = 0xAA // 11 big-endian 16-bit calibration words follow, AC1..MD
	regCtrl   = 0xF4
	regData   = 0xF6

	cmdReadTemp     = 0x2E
	cmdReadPressure = 0x34 // OSS=0; + (oss<<6) for higher oversampling

	seaLevelPa = 101325.0
)

// calCoeffs holds the factory calibration words read from EEPROM.
type calCoeffs struct {
	AC1, AC2, AC3     int16
	AC4, AC5, AC6     uint16
	B1, B2, MB, MC, MD int16
}

// Sensor is the BMP085 device. Its calibration vector (and hence
// Dimension) is 3: [altitude, temperature, pressure], matching
// original_source's hard-coded nData=3 for both barometer calibration
// workers.
type Sensor struct {
	device.Base

	cal      calCoeffs
	lastMode int // 0 -> next sleep is Long, 1 -> next sleep is Short

	ut, up int32 // last raw temperature/pressure readings
}

// New constructs the BMP085 factory.
func New() *Sensor {
	return &Sensor{Base: device.NewBase("BMP085", 3, config.BMP085PeriodLong+config.BMP085PeriodShort, 2)}
}

// Init reads the factory calibration words.
func (s *Sensor) Init(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	words := make([]int16, 11)
	for i := range words {
		v, err := a.Bus.ReadWordFromReg(i2cAddr, byte(int(regCalAC1)+2*i))
		if err != nil {
			return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
		}
		words[i] = int16(v)
	}
	s.cal = calCoeffs{
		AC1: words[0], AC2: words[1], AC3: words[2],
		AC4: uint16(words[3]), AC5: uint16(words[4]), AC6: uint16(words[5]),
		B1: words[6], B2: words[7], MB: words[8], MC: words[9], MD: words[10],
	}
	glog.Infof("%s: initialized, calibration words loaded", s.Name())
	return nil
}

// ReadRaw alternates a temperature conversion and a pressure
// conversion, sleeping outside the bus-held critical section between
// the write-command and the data read.
func (s *Sensor) ReadRaw(a *bus.Arbiter) error {
	sleepFor := func() time.Duration {
		if s.lastMode == 0 {
			return config.BMP085PeriodLong
		}
		return config.BMP085PeriodShort
	}

	// Temperature phase.
	if err := s.writeCmd(a, cmdReadTemp); err != nil {
		return err
	}
	time.Sleep(sleepFor())
	ut, err := s.readData(a, 2)
	if err != nil {
		return err
	}
	s.ut = ut
	s.lastMode = 1 - s.lastMode

	// Pressure phase (OSS=0).
	if err := s.writeCmd(a, cmdReadPressure); err != nil {
		return err
	}
	time.Sleep(sleepFor())
	up, err := s.readData(a, 3)
	if err != nil {
		return err
	}
	s.up = up >> 8 // OSS=0: only the top 16 bits are significant
	s.lastMode = 1 - s.lastMode

	return nil
}

func (s *Sensor) writeCmd(a *bus.Arbiter, cmd byte) error {
	g := a.Acquire()
	defer g.Release()
	if err := a.Bus.WriteByteToReg(i2cAddr, regCtrl, cmd); err != nil {
		return &errdefs.SensorReadError{Which: s.Name(), Cause: err}
	}
	return nil
}

func (s *Sensor) readData(a *bus.Arbiter, nBytes int) (int32, error) {
	g := a.Acquire()
	defer g.Release()
	var v int32
	for i := 0; i < nBytes; i++ {
		b, err := a.Bus.ReadByteFromReg(i2cAddr, byte(int(regData)+i))
		if err != nil {
			return 0, &errdefs.SensorReadError{Which: s.Name(), Cause: err}
		}
		v = (v << 8) | int32(b)
	}
	return v, nil
}

// Convert runs the classic Bosch compensation formula (OSS=0) to turn
// the raw UT/UP pair into temperature (degC), pressure (Pa), and
// altitude (m), then applies bias/scale calibration.
func (s *Sensor) Convert() error {
	c := s.cal
	x1 := (int64(s.ut) - int64(c.AC6)) * int64(c.AC5) >> 15
	x2 := (int64(c.MC) << 11) / (x1 + int64(c.MD))
	b5 := x1 + x2
	tempC := float64((b5+8)>>4) / 10.0

	b6 := b5 - 4000
	x1p := (int64(c.B2) * (b6 * b6 >> 12)) >> 11
	x2p := (int64(c.AC2) * b6) >> 11
	x3 := x1p + x2p
	b3 := ((int64(c.AC1)*4 + x3) + 2) / 4
	x1q := (int64(c.AC3) * b6) >> 13
	x2q := (int64(c.B1) * (b6 * b6 >> 12)) >> 16
	x3q := (x1q + x2q + 2) >> 2
	b4 := uint64(c.AC4) * uint64(x3q+32768) >> 15
	b7 := (uint64(s.up) - uint64(b3)) * 50000
	var pressure int64
	if b7 < 0x80000000 {
		pressure = int64(b7*2) / int64(b4)
	} else {
		pressure = int64(b7/uint64(b4)) * 2
	}
	x1r := (pressure >> 8) * (pressure >> 8)
	x1r = (x1r * 3038) >> 16
	x2r := (-7357 * pressure) >> 16
	pressure = pressure + (x1r+x2r+3791)>>4

	altitude := 44330.0 * (1.0 - math.Pow(float64(pressure)/seaLevelPa, 1.0/5.255))

	phys := []float64{altitude, tempC, float64(pressure)}
	s.SetConverted(s.CaliInfo().Apply(phys))
	return nil
}

// End powers the device down.
func (s *Sensor) End() error {
	return s.DefaultEnd()
}

var _ device.Device = (*Sensor)(nil)
