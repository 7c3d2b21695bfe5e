// Package bus implements the I²C bus arbiter: a spin+yield mutual
// exclusion gate around the single shared physical bus, plus a thin
// wrapper over the transport the teacher (goflying's icm20948 driver)
// uses, github.com/kidoman/embd.
//
// The original C (RTPiDrone_I2C.c) guards every transaction with:
//
//	while (i2c_stat) sched_yield();
//	atomic_fetch_add_explicit(&i2c_stat, 1, memory_order_seq_cst);
//	... transaction ...
//	atomic_fetch_sub(&i2c_stat, 1);
//
// This keeps the same spin+yield shape but pairs it with a scoped
// guard (design note in spec.md §9) so a panic or early return inside
// a transaction can never leak the bus in the busy state.
package bus

import (
	"runtime"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/kidoman/embd"
)

// state values for the single process-wide bus-busy counter.
const (
	free uint32 = 0
	busy uint32 = 1
)

// Arbiter serializes access to the single shared I²C bus across
// concurrent calibration workers and the flight scheduler. It carries
// no fairness guarantee; starvation is prevented by the natural
// per-sensor inter-sample sleeps (spec.md §4.1).
type Arbiter struct {
	stat uint32 // atomic: free (0) or busy (1)
	Bus  embd.I2CBus
}

// New wraps an already-initialized embd I²C bus. Callers are expected
// to have called embd.InitI2C() (the bus_begin()/bus_set_clock_divider()
// external collaborators in spec.md §6) before constructing an Arbiter.
func New(i2cBus embd.I2CBus) *Arbiter {
	return &Arbiter{Bus: i2cBus}
}

// Enter blocks until the bus is free, then atomically marks it busy.
// It spins by yielding the scheduler rather than blocking on a mutex:
// the holder's critical section is a single I²C transaction (tens of
// microseconds), so sched_yield avoids both the syscall cost of a
// futex wait and livelock on a single-core host.
func (a *Arbiter) Enter() {
	for !atomic.CompareAndSwapUint32(&a.stat, free, busy) {
		runtime.Gosched()
	}
}

// Leave unconditionally marks the bus free. Weakest ordering sufficient
// for release semantics; atomic.StoreUint32 on amd64/arm64 already
// provides that without an explicit memory-order parameter in Go.
func (a *Arbiter) Leave() {
	atomic.StoreUint32(&a.stat, free)
}

// Guard is a scoped bus acquisition: Release() is safe to call via
// defer on every exit path, including a panicking one, eliminating the
// enter/leave leak risk the spin-lock source carries (spec.md §9).
type Guard struct {
	a *Arbiter
}

// Acquire blocks until the bus is free and returns a Guard whose
// Release must be deferred by the caller.
func (a *Arbiter) Acquire() Guard {
	a.Enter()
	return Guard{a: a}
}

// Release marks the bus free. Call it once per Acquire: every call
// marks the bus free, even if another caller has acquired it since.
func (g Guard) Release() {
	if g.a != nil {
		g.a.Leave()
	}
}

// Busy reports whether a transaction is currently in progress. Exposed
// for tests that assert the disjoint-interval invariant (spec.md §8).
func (a *Arbiter) Busy() bool {
	return atomic.LoadUint32(&a.stat) == busy
}

// Init brings up the physical bus (bus_begin()/bus_set_clock_divider()
// in spec.md §6's external-collaborator list) and returns a bound
// Arbiter, or BusInitFailure if the hardware could not be brought up.
func Init(deviceIndex int) (*Arbiter, error) {
	if err := embd.InitI2C(); err != nil {
		glog.Errorf("bus: failed to initialize I2C host: %v", err)
		return nil, &BusInitFailure{Cause: err}
	}
	i2cBus := embd.NewI2CBus(byte(deviceIndex))
	glog.Infof("bus: I2C bus %d ready", deviceIndex)
	return New(i2cBus), nil
}

// Close tears down the physical bus (bus_end()).
func (a *Arbiter) Close() {
	if err := embd.CloseI2C(); err != nil {
		glog.Warningf("bus: error closing I2C host: %v", err)
	}
}

// BusInitFailure indicates the hardware bus could not be brought up.
// Fatal: aborts startup (spec.md §7).
type BusInitFailure struct {
	Cause error
}

func (e *BusInitFailure) Error() string {
	return "bus: I2C bus init failure: " + e.Cause.Error()
}

func (e *BusInitFailure) Unwrap() error { return e.Cause }
