//go:build unix

package recording

import (
	"os/exec"
	"syscall"
)

// detach moves the recorder into its own process group so a terminal
// interrupt reaches only the trial; recorders are stopped by Stop.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
