// Package ms5611 implements the Device contract for the MS5611 second
// barometric altimeter (spec.md's "two independent sensors" barometer
// pair, alongside bmp085).
package ms5611

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
	i2cAddr = 0x76

	cmdReset      = 0x1E
	cmdConvertD1  = 0x48 // D1 (pressure), OSR=4096
	cmdConvertD2  = 0x58 // D2 (temperature), OSR=4096
	cmdADCRead    = 0x00
	regPROMBase   = 0xA2 // C1..C6 at 0xA2, 0xA4, ..., 0xAC

	seaLevelPa = 101325.0
)

// promCoeffs holds the factory calibration words read from PROM.
type promCoeffs struct {
	C1, C2, C3, C4, C5, C6 uint16
}

// Sensor is the MS5611 device. Dimension 3: [altitude, temperature,
// pressure], matching BMP085's calibration vector shape.
type Sensor struct {
	device.Base

	prom promCoeffs

	d1, d2 int64 // last raw pressure/temperature ADC readings
}

// New constructs the MS5611 factory.
func New() *Sensor {
	return &Sensor{Base: device.NewBase("MS5611", 3, 2*config.MS5611Period, 2)}
}

// Init resets the device and reads its PROM calibration coefficients.
func (s *Sensor) Init(a *bus.Arbiter) error {
	g := a.Acquire()
	if err := a.Bus.WriteByte(i2cAddr, cmdReset); err != nil {
		g.Release()
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	g.Release()
	time.Sleep(3 * time.Millisecond)

	coeffs := make([]uint16, 6)
	g = a.Acquire()
	defer g.Release()
	for i := range coeffs {
		v, err := a.Bus.ReadWordFromReg(i2cAddr, byte(int(regPROMBase)+2*i))
		if err != nil {
			return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
		}
		coeffs[i] = uint16(v)
	}
	s.prom = promCoeffs{C1: coeffs[0], C2: coeffs[1], C3: coeffs[2], C4: coeffs[3], C5: coeffs[4], C6: coeffs[5]}
	glog.Infof("%s: initialized, PROM coefficients loaded", s.Name())
	return nil
}

// ReadRaw alternates a pressure and a temperature ADC conversion, each
// requiring MS5611_Period of conversion time (spec.md §6).
func (s *Sensor) ReadRaw(a *bus.Arbiter) error {
	d1, err := s.convertAndRead(a, cmdConvertD1)
	if err != nil {
		return err
	}
	s.d1 = d1

	d2, err := s.convertAndRead(a, cmdConvertD2)
	if err != nil {
		return err
	}
	s.d2 = d2
	return nil
}

func (s *Sensor) convertAndRead(a *bus.Arbiter, cmd byte) (int64, error) {
	g := a.Acquire()
	if err := a.Bus.WriteByte(i2cAddr, cmd); err != nil {
		g.Release()
		return 0, &errdefs.SensorReadError{Which: s.Name(), Cause: err}
	}
	g.Release()

	time.Sleep(config.MS5611Period)

	g = a.Acquire()
	defer g.Release()
	if err := a.Bus.WriteByte(i2cAddr, cmdADCRead); err != nil {
		return 0, &errdefs.SensorReadError{Which: s.Name(), Cause: err}
	}
	var v int64
	for i := 0; i < 3; i++ {
		b, err := a.Bus.ReadByte(i2cAddr)
		if err != nil {
			return 0, &errdefs.SensorReadError{Which: s.Name(), Cause: err}
		}
		v = (v << 8) | int64(b)
	}
	return v, nil
}

// Convert runs the MS5611 first-order compensation formula to derive
// temperature, pressure, and altitude, then applies calibration.
func (s *Sensor) Convert() error {
	c := s.prom
	dT := s.d2 - int64(c.C5)*256
	tempC := 2000 + dT*int64(c.C6)/8388608

	off := int64(c.C2)*65536 + (int64(c.C4)*dT)/128
	sens := int64(c.C3)*32768 + (int64(c.C5)*dT)/256

	pressure := (s.d1*sens/2097152 - off) / 32768

	phys := []float64{
		44330.0 * (1.0 - math.Pow(float64(pressure)/seaLevelPa, 1.0/5.255)),
		float64(tempC) / 100.0,
		float64(pressure),
	}
	s.SetConverted(s.CaliInfo().Apply(phys))
	return nil
}

// End powers the device down.
func (s *Sensor) End() error {
	return s.DefaultEnd()
}

var _ device.Device = (*Sensor)(nil)
