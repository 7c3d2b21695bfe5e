// Package hmc5883l implements the Device contract for the HMC5883L
// three-axis digital compass. Note the chip's unusual register
// ordering: data comes back X, Z, Y rather than X, Y, Z.
package hmc5883l

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

const (
	i2cAddr = 0x1E

	regIDA      = 0x0A
	regConfigA  = 0x00
	regConfigB  = 0x01
	regMode     = 0x02
	regDataXMSB = 0x03 // X, Z, Y order, 16-bit big-endian each

	idAValue = 'H' // 0x48, first byte of the three-byte ID string "H43"

	configAAvg8_75Hz = 0x78
	configBGain1_3Ga = 0x20
	modeContinuous   = 0x00

	// 1.3 Ga range: 0.92 mG/LSB, converted to microtesla.
	milliGaussPerLSB = 0.92
	milliGaussToUT   = 0.1
)

// Sensor is the HMC5883L magnetometer device.
type Sensor struct {
	device.Base
}

// New constructs the HMC5883L factory.
func New() *Sensor {
	return &Sensor{Base: device.NewBase("HMC5883L", 3, config.HMC5883LPeriod, float64(config.HMC5883LRate)/3)}
}

// Init verifies the identification register and selects continuous
// measurement mode at 75Hz, gain 1.3Ga.
func (s *Sensor) Init(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	id, err := a.Bus.ReadByteFromReg(i2cAddr, regIDA)
	if err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if id != idAValue {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: fmt.Errorf("unexpected ID_A 0x%02X, want 0x%02X", id, idAValue)}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regConfigA, configAAvg8_75Hz); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regConfigB, configBGain1_3Ga); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	if err := a.Bus.WriteByteToReg(i2cAddr, regMode, modeContinuous); err != nil {
		return &errdefs.SensorInitError{Which: s.Name(), Cause: err}
	}
	glog.Infof("%s: initialized (continuous, 1.3Ga, 75Hz)", s.Name())
	return nil
}

// ReadRaw reads X, Z, Y (chip order) and reorders into raw[0..2] =
// X, Y, Z for a uniform device-facing convention.
func (s *Sensor) ReadRaw(a *bus.Arbiter) error {
	g := a.Acquire()
	defer g.Release()

	x, err := a.Bus.ReadWordFromReg(i2cAddr, regDataXMSB)
	if err != nil {
		return &errdefs.SensorReadError{Which: s.Name(), Cause: err}
	}
	z, err := a.Bus.ReadWordFromReg(i2cAddr, regDataXMSB+2)
	if err != nil {
		return &errdefs.SensorReadError{Which: s.Name(), Cause: err}
	}
	y, err := a.Bus.ReadWordFromReg(i2cAddr, regDataXMSB+4)
	if err != nil {
		return &errdefs.SensorReadError{Which: s.Name(), Cause: err}
	}

	raw := s.RawData()
	raw[0] = float64(int16(x))
	raw[1] = float64(int16(y))
	raw[2] = float64(int16(z))
	return nil
}

// Convert scales raw counts to microtesla and applies calibration.
func (s *Sensor) Convert() error {
	raw := s.RawData()
	phys := make([]float64, 3)
	for i, v := range raw {
		phys[i] = v * milliGaussPerLSB * milliGaussToUT
	}
	s.SetConverted(s.CaliInfo().Apply(phys))
	return nil
}

// End powers the device down.
func (s *Sensor) End() error {
	return s.DefaultEnd()
}

var _ device.Device = (*Sensor)(nil)
