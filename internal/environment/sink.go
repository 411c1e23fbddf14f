package environment

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/trialctl/internal/filelock"
	"github.com/harrison/trialctl/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// CombinedLogsName is the log file SaveLogs writes into the save directory.
const CombinedLogsName = "combined_logs.yaml"

// maxRecordingRows bounds the sample table in the HTML recording.
const maxRecordingRows = 40

type combinedLogs struct {
	Trajectory  string   `yaml:"trajectory"`
	UseHardware bool     `yaml:"use_hardware"`
	ClosedLoop  bool     `yaml:"closed_loop"`
	TimeStep    string   `yaml:"time_step"`
	SimTime     string   `yaml:"sim_time"`
	SavedAt     string   `yaml:"saved_at"`
	Samples     []Sample `yaml:"samples"`
}

// SaveLogs implements Handle. It writes combined logs to saveDir and, when
// recordingFile is set, an HTML recording of the run.
func (e *TableEnvironment) SaveLogs(recordingFile, saveDir string) error {
	samples := e.Samples()
	now := e.Now()

	if saveDir != "" {
		doc := combinedLogs{
			Trajectory:  e.traj.Name,
			UseHardware: e.cfg.UseHardware,
			ClosedLoop:  e.cfg.ClosedLoop,
			TimeStep:    e.cfg.TimeStep.String(),
			SimTime:     now.String(),
			SavedAt:     time.Now().Format(time.RFC3339),
			Samples:     samples,
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal logs: %w", err)
		}
		if err := filelock.LockAndWrite(filepath.Join(saveDir, CombinedLogsName), data); err != nil {
			return fmt.Errorf("failed to save logs: %w", err)
		}
	}

	if recordingFile == "" {
		return nil
	}

	page, err := renderRecording(e.traj, e.cfg.UseHardware, e.cfg.ClosedLoop, now, samples, e.frameCount())
	if err != nil {
		return err
	}
	if err := filelock.LockAndWrite(recordingFile, page); err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}

func (e *TableEnvironment) frameCount() int {
	n := 0
	for _, s := range e.targets.Scenes() {
		n += len(s.Frames())
	}
	return n
}

// trackingError is the planar distance between desired and measured poses.
func trackingError(s Sample) float64 {
	return math.Hypot(s.Desired.X-s.Measured.X, s.Desired.Y-s.Measured.Y)
}

func recordingMarkdown(traj *models.Trajectory, hw, cl bool, simTime time.Duration, samples []Sample, frames int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", traj.Name))
	sb.WriteString("| Field | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Hardware | %t |\n", hw))
	sb.WriteString(fmt.Sprintf("| Closed loop | %t |\n", cl))
	sb.WriteString(fmt.Sprintf("| Plan duration | %s |\n", traj.EndTime()))
	sb.WriteString(fmt.Sprintf("| Simulated time | %s |\n", simTime))
	sb.WriteString(fmt.Sprintf("| Segments | %d (%d in contact) |\n", traj.Len(), traj.CountByKind(models.KindFaceContact)))
	sb.WriteString(fmt.Sprintf("| Samples | %d |\n", len(samples)))
	sb.WriteString(fmt.Sprintf("| Scene frames | %d |\n", frames))

	if len(samples) > 0 {
		var maxErr float64
		for _, s := range samples {
			maxErr = math.Max(maxErr, trackingError(s))
		}
		final := trackingError(samples[len(samples)-1])
		sb.WriteString(fmt.Sprintf("| Max tracking error | %.4f |\n", maxErr))
		sb.WriteString(fmt.Sprintf("| Final tracking error | %.4f |\n", final))

		sb.WriteString("\n## Samples\n\n")
		sb.WriteString("| t (s) | segment | desired | measured |\n|---|---|---|---|\n")
		stride := 1
		if len(samples) > maxRecordingRows {
			stride = (len(samples) + maxRecordingRows - 1) / maxRecordingRows
		}
		for i := 0; i < len(samples); i += stride {
			s := samples[i]
			sb.WriteString(fmt.Sprintf("| %.2f | %d | %s | %s |\n", s.Time, s.Segment, s.Desired, s.Measured))
		}
	}

	return sb.String()
}

func renderRecording(traj *models.Trajectory, hw, cl bool, simTime time.Duration, samples []Sample, frames int) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(recordingMarkdown(traj, hw, cl, simTime, samples, frames)), &body); err != nil {
		return nil, fmt.Errorf("failed to render recording: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(traj.Name)))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
