// Package device defines the polymorphic device abstraction used
// uniformly by the calibration orchestrator and the sample scheduler:
// a capability set {initialize, read raw, convert to physical, filter,
// shut down, expose current data, expose name} (spec.md §4.2).
//
// In the C source this was a struct of function pointers plus an
// opaque state pointer; re-architected per spec.md §9's design note as
// a Go interface, one concrete type per sensor variant.
package device

import (
	"time"

	"github.com/golang/glog"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/caliinfo"
	"github.com/wtchen-rtpi/rtpidrone/filter"
)

// Device is the uniform contract every sensor satisfies. The PWM
// actuator driver (sensors/pca9685) does not implement it.
type Device interface {
	// Name is the device's stable human-readable identifier, also used
	// as the calibration log file stem ("<name>_calibration.log").
	Name() string

	// Dimension is the width of the device's physical sample (3 for
	// accel/gyro/mag, and 3 for the barometers: altitude, temperature,
	// pressure).
	Dimension() int

	// Period is the device's nominal sampling period, known at compile
	// time (a sensor whose period isn't is out of scope, spec.md §1).
	Period() time.Duration

	// Init brings the device up (WHOAMI + configuration writes).
	// Returns SensorInitError on failure.
	Init(a *bus.Arbiter) error

	// ReadRaw acquires the bus itself (possibly more than one
	// transaction for multi-phase devices like the barometers) and
	// stores a fresh raw sample. Returns SensorReadError on failure.
	ReadRaw(a *bus.Arbiter) error

	// Convert transforms the most recent raw sample into physical
	// units, applies this device's CaliInfo bias/scale, and stores the
	// result (retrievable via Data). Returns ConversionError if the raw
	// value is out of datasheet range.
	Convert() error

	// InputFilter runs the current Data() through this device's filter
	// bank and stores the result (retrievable via FilteredData).
	InputFilter()

	// End shuts the device down. The default implementation prints the
	// device's name.
	End() error

	// Data returns the device's current converted (bias/scale-applied)
	// physical sample.
	Data() []float64

	// FilteredData returns the device's current low-pass filtered
	// sample.
	FilteredData() []float64

	// CaliInfo exposes the device's calibration handle.
	CaliInfo() *caliinfo.Info
}

// Base provides default Init and End bodies (DefaultInit, DefaultEnd)
// plus the shared bookkeeping (name, dimension, period, cali info, data
// buffers, filter bank) every concrete sensor embeds. Base has no
// default ReadRaw or Convert: each concrete sensor type embeds Base and
// supplies those itself, along with its own Init and End.
type Base struct {
	name      string
	dimension int
	period    time.Duration

	raw      []float64
	data     []float64
	filtered []float64

	cali   *caliinfo.Info
	filter *filter.Bank
}

// NewBase wires the shared state every device factory needs: name,
// dimension, nominal period, a fresh CaliInfo, and a filter bank tuned
// to cutoffHz at the device's nominal rate.
func NewBase(name string, dimension int, period time.Duration, cutoffHz float64) Base {
	return Base{
		name:      name,
		dimension: dimension,
		period:    period,
		raw:       make([]float64, dimension),
		data:      make([]float64, dimension),
		filtered:  make([]float64, dimension),
		cali:      caliinfo.New(dimension),
		filter:    filter.NewBank(dimension, period, cutoffHz),
	}
}

// Name returns the device's stable human-readable identifier.
func (b *Base) Name() string { return b.name }

// Dimension returns the width of the device's physical sample.
func (b *Base) Dimension() int { return b.dimension }

// Period returns the device's nominal sampling period.
func (b *Base) Period() time.Duration { return b.period }

// CaliInfo exposes the device's calibration handle.
func (b *Base) CaliInfo() *caliinfo.Info { return b.cali }

// Data returns the device's current converted physical sample.
func (b *Base) Data() []float64 { return b.data }

// FilteredData returns the device's current filtered sample.
func (b *Base) FilteredData() []float64 { return b.filtered }

// RawData returns the device's current raw sample, sized to the
// device's native width (concrete sensors may reinterpret this).
func (b *Base) RawData() []float64 { return b.raw }

// SetConverted stores a freshly converted+calibrated physical sample.
// Concrete Convert() overrides call this once they've applied the
// datasheet scale and CaliInfo bias.
func (b *Base) SetConverted(v []float64) { copy(b.data, v) }

// InputFilter is the default filter implementation: run Data() through
// the bank and store the result.
func (b *Base) InputFilter() {
	b.filter.Step(b.data, b.filtered)
}

// CurrentFiltered copies the filter bank's present output without
// advancing it (used when a tick is not due but a caller still wants
// the latest filtered value).
func (b *Base) CurrentFiltered() {
	b.filter.Current(b.filtered)
}

// DefaultInit is the default Init body: a no-op that succeeds. Chips
// that need WHOAMI/config sequencing override Init entirely.
func (b *Base) DefaultInit(a *bus.Arbiter) error { return nil }

// DefaultEnd is the default End body: print the device's name, exactly
// as the original's dummyEndFunction does ("%s END!\n").
func (b *Base) DefaultEnd() error {
	glog.Infof("%s END!", b.name)
	return nil
}
