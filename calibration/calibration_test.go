package calibration

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/caliinfo"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

// stubDevice is a deterministic device.Device stand-in: ReadRaw always
// "reads" the same fixed physical value (stationary accelerometer),
// optionally failing every failEvery-th call.
type stubDevice struct {
	name      string
	dim       int
	fixed     []float64
	failEvery int // 0 disables failure injection
	calls     int
	cali      *caliinfo.Info
}

func newStubDevice(name string, fixed []float64, failEvery int) *stubDevice {
	return &stubDevice{name: name, dim: len(fixed), fixed: fixed, failEvery: failEvery, cali: caliinfo.New(len(fixed))}
}

func (s *stubDevice) Name() string                { return s.name }
func (s *stubDevice) Dimension() int              { return s.dim }
func (s *stubDevice) Period() time.Duration       { return time.Microsecond }
func (s *stubDevice) Init(a *bus.Arbiter) error   { return nil }
func (s *stubDevice) End() error                  { return nil }
func (s *stubDevice) Data() []float64             { return s.fixed }
func (s *stubDevice) FilteredData() []float64     { return s.fixed }
func (s *stubDevice) CaliInfo() *caliinfo.Info    { return s.cali }
func (s *stubDevice) InputFilter()                {}
func (s *stubDevice) Convert() error              { return nil }

func (s *stubDevice) ReadRaw(a *bus.Arbiter) error {
	s.calls++
	if s.failEvery > 0 && s.calls%s.failEvery == 0 {
		return &errdefs.SensorReadError{Which: s.name}
	}
	return nil
}

// TestStationaryCalibration is spec.md §8 end-to-end scenario 1.
func TestStationaryCalibration(t *testing.T) {
	dir := t.TempDir()
	d := newStubDevice("ACC", []float64{0, 0, 9.81}, 0)

	if err := runOne(nil, Worker{Device: d, NumSamples: 3000}, dir); err != nil {
		t.Fatalf("runOne failed: %v", err)
	}

	mean := d.CaliInfo().Mean()
	want := []float64{0, 0, 9.81}
	for i := range want {
		if diff := mean[i] - want[i]; diff > 1e-3 || diff < -1e-3 {
			t.Errorf("mean[%d] = %v, want within 1e-3 of %v", i, mean[i], want[i])
		}
	}
	for i, v := range d.CaliInfo().SD() {
		if v >= 1e-4 {
			t.Errorf("sd[%d] = %v, want < 1e-4 for a stationary stub", i, v)
		}
	}

	lines := readLines(t, filepath.Join(dir, "ACC_calibration.log"))
	if len(lines) != 3000 {
		t.Fatalf("log has %d lines, want 3000", len(lines))
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "=") {
			t.Fatalf("unexpected rejection marker in an all-success run: %q", l)
		}
	}
}

// TestCalibrationWithFailures is spec.md §8 end-to-end scenario 2.
func TestCalibrationWithFailures(t *testing.T) {
	dir := t.TempDir()
	d := newStubDevice("ACC2", []float64{0, 0, 9.81}, 10)

	if err := runOne(nil, Worker{Device: d, NumSamples: 3000}, dir); err != nil {
		t.Fatalf("runOne failed: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "ACC2_calibration.log"))
	accepted, rejected := 0, 0
	for _, l := range lines {
		if strings.HasPrefix(l, "=") {
			rejected++
		} else {
			accepted++
		}
	}
	if accepted != 3000 {
		t.Errorf("accepted samples = %d, want 3000", accepted)
	}
	// 10% failure rate over ~3333 attempts -> ~333 rejection lines.
	if rejected < 250 || rejected > 420 {
		t.Errorf("rejected samples = %d, want roughly 333", rejected)
	}

	mean := d.CaliInfo().Mean()
	if diff := mean[2] - 9.81; diff > 1e-3 || diff < -1e-3 {
		t.Errorf("mean[2] = %v, want within 1e-3 of 9.81 (failures shouldn't bias the result)", mean[2])
	}
}

// TestCalibrationAbortsOnConsecutiveFailures is spec.md §8's
// "calibration with all-failing reads" boundary case: it must
// terminate in bounded time via the retry-budget limit rather than
// spinning forever.
func TestCalibrationAbortsOnConsecutiveFailures(t *testing.T) {
	dir := t.TempDir()
	d := newStubDevice("DEAD", []float64{0}, 1) // fails every call

	err := runOne(nil, Worker{Device: d, NumSamples: 3000}, dir)
	if err == nil {
		t.Fatal("expected CalibrationAborted, got nil")
	}
	aborted, ok := err.(*errdefs.CalibrationAborted)
	if !ok {
		t.Fatalf("expected *errdefs.CalibrationAborted, got %T: %v", err, err)
	}
	if aborted.Which != "DEAD" {
		t.Errorf("CalibrationAborted.Which = %q, want DEAD", aborted.Which)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
