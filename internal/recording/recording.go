// Package recording starts and stops the camera recorders attached to a
// trial.
//
// A Session is started all-or-nothing: if any device fails to start, every
// device already started is stopped in reverse order before StartAll returns.
// Stopping a session is idempotent and safe on a nil session.
package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// DeviceSpec identifies one camera.
type DeviceSpec struct {
	Name         string
	SerialNumber string
}

// Device is a single recorder.
type Device interface {
	Name() string
	// Start begins recording. It returns once the device is confirmed running.
	Start(ctx context.Context) error
	// Stop ends recording and releases the device.
	Stop() error
}

// Factory constructs the device for spec writing into outputDir.
type Factory func(spec DeviceSpec, outputDir string) (Device, error)

// Logger receives session lifecycle messages. Implementations may be nil.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Manager starts recording sessions.
type Manager struct {
	NewDevice Factory
	Logger    Logger
}

// NewManager creates a Manager. logger may be nil.
func NewManager(factory Factory, logger Logger) *Manager {
	return &Manager{NewDevice: factory, Logger: logger}
}

// PartialStartError reports a session whose start failed part-way. Every
// device in Started has already been stopped again.
type PartialStartError struct {
	Device  string   // Device that failed to start
	Started []string // Devices started before the failure, in start order
	Err     error    // Start failure
	StopErr error    // Errors from stopping Started, if any
}

// Error implements the error interface.
func (e *PartialStartError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("recording device %s failed to start: %v", e.Device, e.Err))
	if len(e.Started) > 0 {
		sb.WriteString(fmt.Sprintf(" (stopped %s)", strings.Join(e.Started, ", ")))
	}
	if e.StopErr != nil {
		sb.WriteString(fmt.Sprintf("; rollback: %v", e.StopErr))
	}
	return sb.String()
}

// Unwrap returns the start failure.
func (e *PartialStartError) Unwrap() error {
	return e.Err
}

// IsPartialStart checks if the error is or wraps a PartialStartError.
func IsPartialStart(err error) bool {
	var pe *PartialStartError
	return errors.As(err, &pe)
}

// TeardownError collects the failures of stopping a session's devices.
type TeardownError struct {
	Errs []error
}

// Error implements the error interface.
func (e *TeardownError) Error() string {
	return fmt.Sprintf("failed to stop %d recording device(s): %v", len(e.Errs), errors.Join(e.Errs...))
}

// Unwrap returns the individual stop errors.
func (e *TeardownError) Unwrap() []error {
	return e.Errs
}

// Session is a set of running recorders.
type Session struct {
	devices   []Device
	outputDir string
	logger    Logger
	stopped   atomic.Bool
}

// StartAll starts one device per spec, in order. On failure of any device,
// the devices already started are stopped in reverse order and a
// *PartialStartError is returned; no device is left running.
func (m *Manager) StartAll(ctx context.Context, specs []DeviceSpec, outputDir string) (*Session, error) {
	if m.NewDevice == nil {
		return nil, fmt.Errorf("no recording device factory configured")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory %s: %w", outputDir, err)
	}

	started := make([]Device, 0, len(specs))
	fail := func(name string, err error) (*Session, error) {
		names := make([]string, len(started))
		for i, d := range started {
			names[i] = d.Name()
		}
		return nil, &PartialStartError{
			Device:  name,
			Started: names,
			Err:     err,
			StopErr: stopReverse(started, m.Logger),
		}
	}

	for _, spec := range specs {
		dev, err := m.NewDevice(spec, outputDir)
		if err != nil {
			return fail(spec.Name, fmt.Errorf("create: %w", err))
		}
		if err := dev.Start(ctx); err != nil {
			return fail(spec.Name, err)
		}
		started = append(started, dev)
		if m.Logger != nil {
			m.Logger.Infof("Recording started: %s", spec.Name)
		}
	}

	return &Session{devices: started, outputDir: outputDir, logger: m.Logger}, nil
}

// stopReverse stops devices last-started first and joins their errors.
func stopReverse(devices []Device, logger Logger) error {
	var errs []error
	for i := len(devices) - 1; i >= 0; i-- {
		if err := devices[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", devices[i].Name(), err))
			if logger != nil {
				logger.Warnf("Failed to stop recording %s: %v", devices[i].Name(), err)
			}
		}
	}
	return errors.Join(errs...)
}

// Devices returns the names of the running devices in start order.
func (s *Session) Devices() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.devices))
	for i, d := range s.devices {
		names[i] = d.Name()
	}
	return names
}

// OutputDir is the directory recordings are written to.
func (s *Session) OutputDir() string {
	if s == nil {
		return ""
	}
	return s.outputDir
}

// Stopped reports whether StopAll has run.
func (s *Session) Stopped() bool {
	return s == nil || s.stopped.Load()
}

// StopAll stops every device. Only the first call does any work; later calls
// and calls on a nil session return nil. A device that fails to stop does not
// prevent the others from being stopped.
func (s *Session) StopAll() error {
	if s == nil || !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for i := len(s.devices) - 1; i >= 0; i-- {
		d := s.devices[i]
		if err := d.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		if s.logger != nil {
			s.logger.Infof("Recording stopped: %s", d.Name())
		}
	}
	if len(errs) > 0 {
		return &TeardownError{Errs: errs}
	}
	return nil
}
