// Package errdefs collects the error kinds named in spec.md §7, except
// BusInitFailure, which the bus package defines. Each is
// a small struct satisfying the error interface, constructed with the
// same fmt.Errorf-flavored messages the teacher uses throughout
// icm20948.go (e.g. "ICM20948 Error: ...").
package errdefs

import "fmt"

// SensorInitError indicates a sensor's WHOAMI check or configuration
// write failed during initialization. Fatal.
type SensorInitError struct {
	Which string
	Cause error
}

func (e *SensorInitError) Error() string {
	return fmt.Sprintf("%s: init error: %v", e.Which, e.Cause)
}

func (e *SensorInitError) Unwrap() error { return e.Cause }

// SensorReadError indicates a single raw read failed (timeout or
// invalid status). Transient: retried locally by the caller.
type SensorReadError struct {
	Which string
	Cause error
}

func (e *SensorReadError) Error() string {
	return fmt.Sprintf("%s: read error: %v", e.Which, e.Cause)
}

func (e *SensorReadError) Unwrap() error { return e.Cause }

// ConversionError indicates a raw value was out of range for the
// device's datasheet during raw-to-physical conversion.
type ConversionError struct {
	Which string
	Raw   float64
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: raw value %g out of range for conversion", e.Which, e.Raw)
}

// CalibrationAborted indicates a calibration worker's retry budget was
// exhausted (10 consecutive read failures, spec.md §4.4) or its computed
// bias fell outside DeviceMaxBias. No overall time limit is enforced on
// a calibration worker.
type CalibrationAborted struct {
	Which  string
	Reason string
}

func (e *CalibrationAborted) Error() string {
	return fmt.Sprintf("%s: calibration aborted: %s", e.Which, e.Reason)
}

// PWMOutOfRange is a contract violation by the caller of the PWM
// driver (power value outside [PWM_MIN, PWM_MAX]). Fatal: indicates an
// estimator bug.
type PWMOutOfRange struct {
	Value uint32
	Min   uint32
	Max   uint32
}

func (e *PWMOutOfRange) Error() string {
	return fmt.Sprintf("PWM value %d out of range [%d, %d]", e.Value, e.Min, e.Max)
}

// ErrNotDue is returned by the PWM driver and by the scheduler's
// per-sensor sampling when the nominal period has not yet elapsed. It is a status,
// not an error: callers must not log it as a failure (spec.md §7).
var ErrNotDue = notDueError{}

type notDueError struct{}

func (notDueError) Error() string { return "not due" }

// IsNotDue reports whether err is the NotDue status.
func IsNotDue(err error) bool {
	_, ok := err.(notDueError)
	return ok
}
