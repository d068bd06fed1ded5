//go:build windows

package process

import (
	"fmt"
	"os/exec"
)

// killPID terminates a process tree on Windows via taskkill, matching the
// approach instance.KillProcess already uses for the standalone instance
// manager.
func killPID(pid int) error {
	cmd := exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprintf("%d", pid))
	return cmd.Run()
}

func setWindowsProcAttr(cmd *exec.Cmd) {
	// CREATE_NO_WINDOW: 0x08000000, keeps the child's console off the
	// daemon's own window.
	setCreateNoWindow(cmd)
}
