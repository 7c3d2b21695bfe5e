package caliinfo

import "testing"

func TestNewIsZeroedWithUnitScale(t *testing.T) {
	c := New(3)
	if c.Dimension() != 3 {
		t.Fatalf("Dimension() = %d, want 3", c.Dimension())
	}
	for i, v := range c.Mean() {
		if v != 0 {
			t.Errorf("Mean()[%d] = %v, want 0 before calibration", i, v)
		}
	}
	for i, v := range c.Scale() {
		if v != 1.0 {
			t.Errorf("Scale()[%d] = %v, want 1.0", i, v)
		}
	}
}

func TestApplySubtractsBias(t *testing.T) {
	c := New(3)
	c.SetMeanSD([]float64{1, 2, 3}, []float64{0.1, 0.1, 0.1})

	got := c.Apply([]float64{1, 2, 3})
	want := []float64{0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Apply()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestApplyNotIdempotent checks spec.md §8's round-trip property:
// applying bias removal twice is not the same as applying it once.
func TestApplyNotIdempotent(t *testing.T) {
	c := New(1)
	c.SetMeanSD([]float64{5}, []float64{0})

	once := c.Apply([]float64{10})
	twice := c.Apply(once)

	if once[0] == twice[0] {
		t.Fatalf("apply(bias, apply(bias, raw)) == apply(bias, raw): got %v both times", once[0])
	}
}

func TestWithinBiasBound(t *testing.T) {
	c := New(2)
	c.SetMeanSD([]float64{1, -1}, []float64{0, 0})
	if !c.WithinBiasBound() {
		t.Fatal("small bias reported out of bound")
	}

	c.SetMeanSD([]float64{1, 5000}, []float64{0, 0})
	if c.WithinBiasBound() {
		t.Fatal("bias exceeding DeviceMaxBias reported within bound")
	}
}
