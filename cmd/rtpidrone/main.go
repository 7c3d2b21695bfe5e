// Command rtpidrone is the flight-control core's lifecycle shell:
// init -> calibrate -> start -> end. spec.md §1 places this shell
// itself out of scope ("the top-level lifecycle shell" is an external
// collaborator); this is a thin, illustrative wiring of the CORE
// packages, following the teacher's own main()-as-sequential-steps
// shape in test-icm20948-standalone.go.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	_ "github.com/kidoman/embd/host/all"

	"github.com/wtchen-rtpi/rtpidrone/bus"
	"github.com/wtchen-rtpi/rtpidrone/calibration"
	"github.com/wtchen-rtpi/rtpidrone/config"
	"github.com/wtchen-rtpi/rtpidrone/data"
	"github.com/wtchen-rtpi/rtpidrone/device"
	"github.com/wtchen-rtpi/rtpidrone/internal/clock"
	"github.com/wtchen-rtpi/rtpidrone/scheduler"
	"github.com/wtchen-rtpi/rtpidrone/sensors/adxl345"
	"github.com/wtchen-rtpi/rtpidrone/sensors/bmp085"
	"github.com/wtchen-rtpi/rtpidrone/sensors/hmc5883l"
	"github.com/wtchen-rtpi/rtpidrone/sensors/l3g4200d"
	"github.com/wtchen-rtpi/rtpidrone/sensors/ms5611"
	"github.com/wtchen-rtpi/rtpidrone/sensors/pca9685"
	"github.com/wtchen-rtpi/rtpidrone/telemetry"
)

// Exit codes for per-sensor init failure, in the order spec.md §6
// names them: {ADXL345, L3G4200D, HMC5883L, BMP085, MS5611, PCA9685PW}.
const (
	exitOK = -iota
	exitADXL345Init
	exitL3G4200DInit
	exitHMC5883LInit
	exitBMP085Init
	exitMS5611Init
	exitPCA9685PWInit
)

func main() {
	defer glog.Flush()

	// os.Exit skips deferred calls, so every exit path flushes first.
	exit := func(code int) {
		glog.Flush()
		os.Exit(code)
	}

	a, err := bus.Init(1)
	if err != nil {
		glog.Errorf("main: bus init failed: %v", err)
		exit(exitOK)
	}
	defer a.Close()

	acc := adxl345.New()
	gyr := l3g4200d.New()
	mag := hmc5883l.New()
	baro1 := bmp085.New()
	baro2 := ms5611.New()
	pwm := pca9685.New(a)

	initSteps := []struct {
		d    device.Device
		code int
	}{
		{acc, exitADXL345Init},
		{gyr, exitL3G4200DInit},
		{mag, exitHMC5883LInit},
		{baro1, exitBMP085Init},
		{baro2, exitMS5611Init},
	}
	for _, step := range initSteps {
		if err := step.d.Init(a); err != nil {
			glog.Errorf("main: %s init failed: %v", step.d.Name(), err)
			exit(step.code)
		}
	}
	if err := pwm.Init(); err != nil {
		glog.Errorf("main: PCA9685PW init failed: %v", err)
		exit(exitPCA9685PWInit)
	}

	glog.Infof("main: calibrating")
	workers := []calibration.Worker{
		{Device: acc, NumSamples: config.CalibrationSamplesInertial},
		{Device: gyr, NumSamples: config.CalibrationSamplesInertial},
		{Device: mag, NumSamples: config.CalibrationSamplesMag},
		{Device: baro1, NumSamples: config.CalibrationSamplesBaro},
		{Device: baro2, NumSamples: config.CalibrationSamplesBaro},
	}
	if err := calibration.Run(a, workers, "."); err != nil {
		glog.Errorf("main: calibration failed: %v", err)
		exit(exitOK)
	}

	record := data.New()
	record.SeedFromCalibration(acc.CaliInfo(), mag.CaliInfo(), baro1.CaliInfo())

	sched := scheduler.New(a, clock.Real{}, acc, gyr, mag, baro1, baro2, pwm, record)

	tel := telemetry.New(record)
	telStop := make(chan struct{})
	go tel.Run(config.ControlPeriod*10, telStop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Infof("main: shutdown signal received")
		sched.Stop()
	}()

	glog.Infof("main: starting flight control loop")
	ticks, err := sched.Run()
	close(telStop)

	for _, step := range initSteps {
		if err := step.d.End(); err != nil {
			glog.Warningf("main: %s shutdown error: %v", step.d.Name(), err)
		}
	}

	if err != nil {
		glog.Errorf("main: scheduler exited with error after %d ticks: %v", ticks, err)
		exit(exitOK)
	}
	glog.Infof("main: flight control loop exited cleanly after %d ticks", ticks)
}
