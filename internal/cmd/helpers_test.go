package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const shortPlan = `name: traj_short
segments:
  - kind: non_collision
    duration: 0.5
    knots: [{x: 0, y: -0.2, theta: 0}, {x: 0.05, y: -0.1, theta: 0}]
  - kind: face_contact
    duration: 1.0
    knots: [{x: 0.05, y: -0.1, theta: 0}, {x: 0.2, y: 0, theta: 0.1}]
`

// testEnv is a scratch workspace with a plan and a config pointing into it.
type testEnv struct {
	dir        string
	planPath   string
	configPath string
	outputDir  string
	dbPath     string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		planPath:   filepath.Join(dir, "plans", "traj_short.yaml"),
		configPath: filepath.Join(dir, "config.yaml"),
		outputDir:  filepath.Join(dir, "outputs"),
		dbPath:     filepath.Join(dir, "history.db"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(env.planPath), 0755))
	require.NoError(t, os.WriteFile(env.planPath, []byte(shortPlan), 0644))

	cfg := "trajectory_file: " + env.planPath + "\n" +
		"output_dir: " + env.outputDir + "\n" +
		"history:\n  enabled: true\n  db_path: " + env.dbPath + "\n" +
		"sim_config:\n  delay_before_execution: 0.5\n  time_step: 0.01\n  visualize_desired: true\n" +
		extraConfig
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0644))
	return env
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
