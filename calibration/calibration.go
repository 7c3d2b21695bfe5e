// Package calibration implements the calibration orchestrator
// (spec.md §4.4): one worker goroutine per sensor, each accumulating N
// stationary samples, computing mean/standard-deviation, and writing
// them into the device's CaliInfo.
//
// Grounded on original_source's Drone_I2C_Calibration/
// Calibration_Single_Thread: per-sensor sample counts (N, N/5, N/10),
// the exact "<name>_calibration.log" line format, and the retry-on-
// failure behavior (a failed sample is logged as a "===========" line
// and re-attempted rather than dropped).
package calibration

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/golang/glog"
	matrix "github.com/skelterjohn/go.matrix"
	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/errdefs"
)

// Worker describes one sensor's calibration run: the device to
// calibrate and the number of samples to accumulate.
type Worker struct {
	Device     device.Device
	NumSamples int
}

// Outcome is one worker's result, used by the orchestrator to report
// the first failure across all workers.
type Outcome struct {
	Which string
	Err   error
}

// Run spawns one goroutine per worker, waits for all to finish, and
// returns the first failure encountered (nil if every worker
// succeeded). Workers run concurrently; ordering between them is
// unspecified (spec.md §4.4).
func Run(a *bus.Arbiter, workers []Worker, logDir string) error {
	results := make(chan Outcome, len(workers))
	for _, w := range workers {
		go func(w Worker) {
			err := runOne(a, w, logDir)
			results <- Outcome{Which: w.Device.Name(), Err: err}
		}(w)
	}

	var first error
	for range workers {
		o := <-results
		if o.Err != nil {
			glog.Errorf("calibration: %s failed: %v", o.Which, o.Err)
			if first == nil {
				first = o.Err
			}
		} else {
			glog.Infof("calibration: %s complete", o.Which)
		}
	}
	return first
}

// runOne runs a single sensor's calibration loop: acquire bus, read
// raw, release bus, convert, filter, record, sleep. A failed read
// decrements the sample counter and retries; CalibrationMaxConsecutive
// Failures consecutive failures abort the worker.
func runOne(a *bus.Arbiter, w Worker, logDir string) error {
	d := w.Device
	n := w.NumSamples
	dim := d.Dimension()

	logPath := d.Name() + "_calibration.log"
	if logDir != "" {
		logPath = logDir + "/" + logPath
	}
	fout, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("%s: opening calibration log: %w", d.Name(), err)
	}
	defer fout.Close()

	samples := matrix.Zeros(n, dim)

	consecutiveFailures := 0
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := readOneSample(a, d); err != nil {
			consecutiveFailures++
			writeRejectLine(fout)
			if consecutiveFailures >= config.CalibrationMaxConsecutiveFailures {
				return &errdefs.CalibrationAborted{Which: d.Name(), Reason: fmt.Sprintf("%d consecutive read failures", consecutiveFailures)}
			}
			i-- // retry this sample index
			continue
		}
		consecutiveFailures = 0

		elapsed := time.Since(start).Seconds()
		phys := d.Data()
		writeSampleLine(fout, elapsed, phys)
		for j := 0; j < dim; j++ {
			samples.Set(i, j, phys[j])
		}

		time.Sleep(d.Period())
	}

	mean, sd := columnStats(samples, n, dim)
	d.CaliInfo().SetMeanSD(mean, sd)
	if !d.CaliInfo().WithinBiasBound() {
		return &errdefs.CalibrationAborted{Which: d.Name(), Reason: "bias exceeds DeviceMaxBias"}
	}
	return nil
}

// readOneSample performs steps (a)-(d) of spec.md §4.4's per-sample
// sequence: acquire bus, raw read, release bus, convert and filter.
func readOneSample(a *bus.Arbiter, d device.Device) error {
	if err := d.ReadRaw(a); err != nil {
		return err
	}
	if err := d.Convert(); err != nil {
		return err
	}
	d.InputFilter()
	return nil
}

func writeSampleLine(w io.Writer, elapsed float64, phys []float64) {
	fmt.Fprintf(w, "%f\t", elapsed)
	for _, v := range phys {
		fmt.Fprintf(w, "%f\t", v)
	}
	fmt.Fprint(w, "\n")
}

func writeRejectLine(w io.Writer) {
	fmt.Fprint(w, "===========\n")
}

// columnStats computes the per-column mean and (sample) standard
// deviation of an n x dim matrix, mirroring gsl_stats_float_mean/
// gsl_stats_float_sd in original_source.
func columnStats(m *matrix.DenseMatrix, n, dim int) (mean, sd []float64) {
	mean = make([]float64, dim)
	sd = make([]float64, dim)
	for j := 0; j < dim; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += m.Get(i, j)
		}
		mu := sum / float64(n)
		mean[j] = mu

		var sumSq float64
		for i := 0; i < n; i++ {
			d := m.Get(i, j) - mu
			sumSq += d * d
		}
		if n > 1 {
			sd[j] = math.Sqrt(sumSq / float64(n-1))
		}
	}
	return mean, sd
}
