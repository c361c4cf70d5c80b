//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// detach puts the worker in its own session so it outlives the launcher and
// ignores the launcher's terminal signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
