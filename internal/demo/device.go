// Package demo provides a simulated quantum device and a library of
// calibration nodes and graphs running against it. The CLI uses it, and so
// do integration tests that need realistic workflows without hardware.
package demo

import (
	"context"
	"hash/fnv"
	"maps"
	"sync"
	"time"
)

// Device simulates a processor whose qubits answer calibration measurements.
//
// A broken qubit fails every measurement. A flaky qubit fails a given
// procedure a fixed number of times before succeeding.
type Device struct {
	delay time.Duration

	mu          sync.Mutex
	broken      map[string]bool
	flaky       map[string]int
	measured    map[string]int
	calibration map[string]map[string]float64
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithBroken marks qubits that never pass a measurement.
func WithBroken(qubits ...string) DeviceOption {
	return func(d *Device) {
		for _, q := range qubits {
			d.broken[q] = true
		}
	}
}

// WithFlaky makes qubit fail procedure the first failures times.
func WithFlaky(procedure, qubit string, failures int) DeviceOption {
	return func(d *Device) {
		d.flaky[procedure+"/"+qubit] = failures
	}
}

// WithDelay makes every measurement take d.
func WithDelay(d time.Duration) DeviceOption {
	return func(dev *Device) {
		dev.delay = d
	}
}

// NewDevice creates a simulated device.
func NewDevice(opts ...DeviceOption) *Device {
	d := &Device{
		broken:      make(map[string]bool),
		flaky:       make(map[string]int),
		measured:    make(map[string]int),
		calibration: make(map[string]map[string]float64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Measure runs procedure on qubit and reports whether the acquisition
// produced a usable signal. It returns ctx.Err() if ctx ends first.
func (d *Device) Measure(ctx context.Context, procedure, qubit string) (bool, error) {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.measured[procedure]++
	if d.broken[qubit] {
		return false, nil
	}
	key := procedure + "/" + qubit
	if d.flaky[key] > 0 {
		d.flaky[key]--
		return false, nil
	}
	return true, nil
}

// Measurements returns how many acquisitions procedure has run.
func (d *Device) Measurements(procedure string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.measured[procedure]
}

// Update stores a calibrated value for qubit.
func (d *Device) Update(qubit, key string, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.calibration[qubit] == nil {
		d.calibration[qubit] = make(map[string]float64)
	}
	d.calibration[qubit][key] = value
}

// Calibration returns the values stored for qubit.
func (d *Device) Calibration(qubit string) map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.calibration[qubit])
}

// fitValue returns a stable per-qubit value spread around base.
func fitValue(base, spread float64, qubit string) float64 {
	h := fnv.New32a()
	h.Write([]byte(qubit))
	frac := float64(h.Sum32()%1000) / 1000
	return base + spread*(frac-0.5)
}
