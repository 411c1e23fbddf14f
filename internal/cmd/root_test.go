package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd == nil {
		t.Fatal("Root command should not be nil")
	}

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help returned error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "trialctl") {
		t.Errorf("Help text should contain 'trialctl', got: %s", output)
	}
	if !strings.Contains(output, "timed") {
		t.Errorf("Help text should describe timed trials, got: %s", output)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "trialctl" {
		t.Errorf("Expected Use to be 'trialctl', got '%s'", cmd.Use)
	}

	found := map[string]bool{}
	for _, sub := range cmd.Commands() {
		found[sub.Name()] = true
	}
	for _, name := range []string{"run", "validate", "history"} {
		if !found[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}
