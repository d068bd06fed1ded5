//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// killPID sends SIGKILL directly; the managed child has no children of
// its own worth reaping separately (dedicated-server binaries are
// single-process), so no process-group kill is needed here.
func killPID(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}

func setWindowsProcAttr(cmd *exec.Cmd) {
	// no-op off Windows
}
