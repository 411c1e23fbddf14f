package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harrison/trialctl/internal/config"
)

const (
	// DefaultStartupWindow is how long a recorder process must stay alive
	// before Start reports it running.
	DefaultStartupWindow = 250 * time.Millisecond
	// DefaultStopGrace is how long Stop waits after an interrupt before killing.
	DefaultStopGrace = 5 * time.Second
)

// ProcessDevice records by running an external capture command in the
// background.
type ProcessDevice struct {
	name    string
	argv    []string
	logPath string

	StartupWindow time.Duration
	StopGrace     time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// NewProcessDevice creates a device that runs argv. Output of the process is
// written to logPath when it is non-empty.
func NewProcessDevice(name string, argv []string, logPath string) *ProcessDevice {
	return &ProcessDevice{
		name:          name,
		argv:          append([]string(nil), argv...),
		logPath:       logPath,
		StartupWindow: DefaultStartupWindow,
		StopGrace:     DefaultStopGrace,
	}
}

// Name implements Device.
func (d *ProcessDevice) Name() string {
	return d.name
}

// Args returns the expanded command line.
func (d *ProcessDevice) Args() []string {
	return append([]string(nil), d.argv...)
}

// Start implements Device. The process is not bound to ctx: ctx only bounds
// the startup window, so a cancelled trial can still stop recorders cleanly.
// On unix the process runs in its own process group and only Stop signals it.
func (d *ProcessDevice) Start(ctx context.Context) error {
	if len(d.argv) == 0 {
		return fmt.Errorf("empty record command")
	}

	d.mu.Lock()
	if d.cmd != nil {
		d.mu.Unlock()
		return fmt.Errorf("recorder %s already started", d.name)
	}

	cmd := exec.Command(d.argv[0], d.argv[1:]...)
	detach(cmd)
	if d.logPath != "" {
		f, err := os.Create(d.logPath)
		if err != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to create recorder log: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		d.logFile = f
	}

	if err := cmd.Start(); err != nil {
		d.closeLog()
		d.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", d.argv[0], err)
	}
	d.cmd = cmd
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		err := cmd.Wait()
		d.mu.Lock()
		d.waitErr = err
		d.closeLog()
		d.mu.Unlock()
		close(done)
	}()

	timer := time.NewTimer(d.StartupWindow)
	defer timer.Stop()

	select {
	case <-done:
		return fmt.Errorf("recorder exited during startup: %v", d.exitErr())
	case <-ctx.Done():
		d.kill()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stop implements Device. It interrupts the process, waits up to StopGrace,
// then kills it. Stopping a device that never started is a no-op.
func (d *ProcessDevice) Stop() error {
	d.stopOnce.Do(func() {
		d.stopErr = d.stop()
	})
	return d.stopErr
}

func (d *ProcessDevice) stop() error {
	d.mu.Lock()
	cmd, done := d.cmd, d.done
	d.mu.Unlock()
	if cmd == nil {
		return nil
	}

	select {
	case <-done:
		// exited on its own before Stop
		return nil
	default:
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		d.kill()
		return fmt.Errorf("failed to interrupt recorder: %w", err)
	}

	timer := time.NewTimer(d.StopGrace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		d.kill()
		return fmt.Errorf("recorder did not exit within %v, killed", d.StopGrace)
	}
}

func (d *ProcessDevice) kill() {
	d.mu.Lock()
	cmd, done := d.cmd, d.done
	d.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
	<-done
}

func (d *ProcessDevice) exitErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.waitErr == nil {
		return errors.New("exit status 0")
	}
	return d.waitErr
}

// closeLog must be called with mu held.
func (d *ProcessDevice) closeLog() {
	if d.logFile != nil {
		d.logFile.Close()
		d.logFile = nil
	}
}

// ExpandCommand substitutes the device placeholders in a command template:
// {name}, {serial}, {output}, {width}, {height} and {fps}.
func ExpandCommand(template []string, spec DeviceSpec, output string, cam config.CameraConfig) []string {
	r := strings.NewReplacer(
		"{name}", spec.Name,
		"{serial}", spec.SerialNumber,
		"{output}", output,
		"{width}", strconv.Itoa(cam.Width),
		"{height}", strconv.Itoa(cam.Height),
		"{fps}", strconv.Itoa(cam.FPS),
	)
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = r.Replace(arg)
	}
	return out
}

// ProcessFactory returns a Factory producing ProcessDevices from the
// realsense_config section. Each camera records to <outputDir>/<name>.bag and
// logs to <outputDir>/<name>.log.
func ProcessFactory(rs config.RealsenseConfig) Factory {
	template := append([]string(nil), rs.RecordCommand...)
	cam := rs.RealsenseCameraConfig
	return func(spec DeviceSpec, outputDir string) (Device, error) {
		if len(template) == 0 {
			return nil, fmt.Errorf("record_command is empty")
		}
		output := filepath.Join(outputDir, spec.Name+".bag")
		argv := ExpandCommand(template, spec, output, cam)
		return NewProcessDevice(spec.Name, argv, filepath.Join(outputDir, spec.Name+".log")), nil
	}
}

// SpecsFromConfig lists the configured cameras in order, skipping any slot
// without a name.
func SpecsFromConfig(rs config.RealsenseConfig) []DeviceSpec {
	slots := []DeviceSpec{
		{Name: rs.Camera1Name, SerialNumber: rs.Camera1SerialNumber},
		{Name: rs.Camera2Name, SerialNumber: rs.Camera2SerialNumber},
		{Name: rs.Camera3Name, SerialNumber: rs.Camera3SerialNumber},
	}
	var specs []DeviceSpec
	for _, s := range slots {
		if s.Name != "" {
			specs = append(specs, s)
		}
	}
	return specs
}
