package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestWarningRender_TitleOnly(t *testing.T) {
	w := Warning{Title: "Recording disabled"}

	output := w.Render(false)

	if output != "⚠️  Warning: Recording disabled\n" {
		t.Errorf("unexpected output %q", output)
	}
	if strings.Contains(output, "\x1b[") {
		t.Error("plain output must not contain ANSI codes")
	}
}

func TestWarningRender_AllFields(t *testing.T) {
	w := Warning{
		Title:      "Override ends before the plan",
		Message:    "override_duration 5s is shorter than the plan (14s)",
		Files:      []string{"plans/traj_rounded.yaml"},
		Suggestion: "Remove override_duration to run the whole plan",
	}

	output := w.Render(false)

	for _, want := range []string{
		"Warning: Override ends before the plan\n",
		"    override_duration 5s is shorter than the plan (14s)\n",
		"    Affected file:\n",
		"      1. plans/traj_rounded.yaml\n",
		"    Suggestion:\n    Remove override_duration",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in:\n%s", want, output)
		}
	}
}

func TestWarningRender_MultipleFiles(t *testing.T) {
	w := Warning{Title: "t", Files: []string{"a", "b"}}
	output := w.Render(false)

	if !strings.Contains(output, "Affected files:") {
		t.Error("expected plural label")
	}
	if !strings.Contains(output, "      2. b\n") {
		t.Error("expected numbered second file")
	}
}

func TestWarningDisplayWritesRender(t *testing.T) {
	w := Warning{Title: "t", Message: "m"}
	var buf bytes.Buffer
	w.Display(&buf, false)
	if buf.String() != w.Render(false) {
		t.Errorf("Display wrote %q", buf.String())
	}
}

func TestWarningSummary(t *testing.T) {
	if got := (Warning{Title: "t"}).Summary(); got != "t" {
		t.Errorf("Summary() = %q", got)
	}
	if got := (Warning{Title: "t", Message: "m"}).Summary(); got != "t: m" {
		t.Errorf("Summary() = %q", got)
	}
}
