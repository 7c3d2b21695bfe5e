// Package adxl345 implements the Device contract for the ADXL345
// three-axis accelerometer, grounded on the teacher's i2cWrite/
// i2cRead2 idiom in icm20948.go (embd.I2CBus.WriteByteToReg/
// ReadWordFromReg) and register map conventions.
package adxl345

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

const (
	i2cAddr = 0x53

	regDEVID       = 0x00
	regBWRate      = 0x2C
	regPowerCtl    = 0x2D
	regDataFormat  = 0x31
	regDataX0      = 0x32

	devID = 0xE5

	bwRate400Hz  = 0x0C
	powerCtlMeas = 0x08
	fullResRange16G = 0x0B // full resolution, +-16g

	lsbToG = 1.0 / 256.0 // full-resolution mode: 3.9 mg/LSB ~= 1/256 g
)

// Sensor is the ADXL345 accelerometer device.
type Sensor struct {
	device.Base
}

// New constructs the ADXL345 factory: wires the concrete i2c functions
// and private state (spec.md §4.2). Cutoff at a quarter of the nominal
// rate, the same ratio the teacher uses for its DLPF selection.
func New() *Sensor {
	return &Sensor{Base: device.NewBase("ADXL345", 3, config.InertialPeriod, float64(config.ADXL345Rate)/4)}
}

// Init resets and configures the ADXL345: verify WHOAMI, set full
// resolution +-16g range, 400 Hz output rate, enable measurement mode.
func (s *Sensor) Init(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	id, err := a.Bus.ReadByteFromReg(i2cAddr, regDEVID)
	if err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if id != devID {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: fmt.Errorf("unexpected DEVID 0x%02X, want 0x%02X", id, devID)}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regDataFormat, fullResRange16G); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regBWRate, bwRate400Hz); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regPowerCtl, powerCtlMeas); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	glog.Infof("%s: initialized (full-res +-16g, 400Hz)", s.Name())
	return nil
}

// ReadRaw reads the three 16-bit axis registers in one bus acquisition.
func (s *Sensor) ReadRaw(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	raw := s.RawData()
	for i := 0; i < 3; i++ {
		v, err := a.Bus.ReadWordFromReg(i2cAddr, byte(regDataX0+2*i))
		if err != nil {
			return &errdefs.SensorReadError{Which: s.Name(), Cause: err}
		}
		raw[i] = float64(int16(v))
	}
	return nil
}

// Convert scales the raw counts to m/s^2, then applies bias/scale
// calibration.
func (s *Sensor) Convert() error {
	raw := s.RawData()
	phys := make([]float64, 3)
	for i, v := range raw {
		phys[i] = v * lsbToG * 9.80665 // m/s^2
	}
	s.SetConverted(s.CaliInfo().Apply(phys))
	return nil
}

// End powers the device down.
func (s *Sensor) End() error {
	return s.DefaultEnd()
}

var _ device.Device = (*Sensor)(nil)
