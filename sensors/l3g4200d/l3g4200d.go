// Package l3g4200d implements the Device contract for the L3G4200D
// three-axis gyroscope.
package l3g4200d

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

const (
	i2cAddr = 0x69

	regWhoAmI   = 0x0F
	regCtrlReg1 = 0x20
	regCtrlReg4 = 0x23
	regOutXL    = 0x28 | 0x80 // auto-increment bit set for multi-byte burst reads

	whoAmIValue = 0xD3

	ctrlReg1Normal800Hz = 0xFF // normal mode, all axes enabled, ODR 800Hz/110 cutoff
	ctrlReg4FS2000dps   = 0x30

	dpsPerLSB = 70.0 / 1000.0 // 70 mdps/LSB at +-2000dps full scale
	degToRad  = 3.14159265358979323846 / 180.0
)

// Sensor is the L3G4200D gyroscope device.
type Sensor struct {
	device.Base
}

// New constructs the L3G4200D factory.
func New() *Sensor {
	return &Sensor{Base: device.NewBase("L3G4200D", 3, config.InertialPeriod, float64(config.L3G4200DRate)/4)}
}

// Init verifies WHOAMI and configures +-2000dps full scale.
func (s *Sensor) Init(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	id, err := a.Bus.ReadByteFromReg(i2cAddr, regWhoAmI)
	if err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if id != whoAmIValue {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: fmt.Errorf("unexpected WHO_AM_I 0x%02X, want 0x%02X", id, whoAmIValue)}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regCtrlReg1, ctrlReg1Normal800Hz); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regCtrlReg4, ctrlReg4FS2000dps); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	glog.Infof("%s: initialized (+-2000dps)", s.Name())
	return nil
}

// ReadRaw reads the three 16-bit axis registers in one bus acquisition.
func (s *Sensor) ReadRaw(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	raw := s.RawData()
	for i := 0; i < 3; i++ {
		v, err := a.Bus.ReadWordFromReg(i2cAddr, byte(regOutXL+2*i))
		if err != nil {
			return &errdefs.SensorReadError{Which: s.Name(), Cause: err}
		}
		raw[i] = float64(int16(v))
	}
	return nil
}

// Convert scales raw counts to rad/s and applies calibration.
func (s *Sensor) Convert() error {
	raw := s.RawData()
	phys := make([]float64, 3)
	for i, v := range raw {
		phys[i] = v * dpsPerLSB * degToRad
	}
	s.SetConverted(s.CaliInfo().Apply(phys))
	return nil
}

// End powers the device down.
func (s *Sensor) End() error {
	return s.DefaultEnd()
}

var _ device.Device = (*Sensor)(nil)
