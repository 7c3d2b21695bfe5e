// Package config holds the compile-time constants of the flight-control
// core. None of these are read from a file or environment variable:
// spec.md's data model has no runtime configuration surface, and a
// sensor whose period isn't known at compile time is explicitly out of
// scope.
package config

import "time"

// Scheduler tick.
const (
	// ControlPeriod is the wall-clock duration of one scheduler tick.
	ControlPeriod = 4 * time.Millisecond

	// PWMControlPeriod is the number of ticks between PWM writes (the
	// "slow phase" cadence).
	PWMControlPeriod = 2
)

// PID gains, consumed by the external attitude estimator/controller.
// Carried here because they are part of the same compile-time constant
// table as everything else in spec.md §6, even though no CORE component
// reads them directly.
const (
	KP = 7.5
	KI = 0.7
	KD = 140.0
)

// PWM bounds, shared by every actuator write.
const (
	PWMMin uint32 = 1750
	PWMMax uint32 = 3500
)

// MagPWMThreshold is the PWM value above which a motor's field is
// considered strong enough to correct for (spec.md §4.7: "applied only
// when pwm_i > 1800").
const MagPWMThreshold uint32 = 1800

// Per-sensor nominal sample rates/periods.
const (
	ADXL345Rate  = 400 // Hz
	L3G4200DRate = 400 // Hz
	HMC5883LRate = 75  // Hz

	HMC5883LPeriod = time.Second / HMC5883LRate

	BMP085PeriodLong  = 25500 * time.Microsecond
	BMP085PeriodShort = 4500 * time.Microsecond

	MS5611Period = 10 * time.Millisecond
)

// InertialPeriod is the nominal period shared by the accelerometer and
// gyroscope (both sampled at the same rate in this design).
const InertialPeriod = time.Second / ADXL345Rate

// Calibration sample counts. spec.md §9 resolves the 2000-vs-3000
// discrepancy in the original sources in favor of 3000.
const (
	CalibrationSamplesInertial = 3000
	CalibrationSamplesMag      = CalibrationSamplesInertial / 5  // 600
	CalibrationSamplesBaro     = CalibrationSamplesInertial / 10 // 300
)

// CalibrationMaxConsecutiveFailures is the retry budget before a
// calibration worker aborts with CalibrationAborted (spec.md §4.4).
const CalibrationMaxConsecutiveFailures = 10

// DeviceMaxBias bounds a successfully calibrated bias vector (spec.md
// §3 invariant: |bias| < DEVICE_MAX_BIAS after calibration).
const DeviceMaxBias = 1000.0
