//go:build windows

package updater

import (
	"os/exec"
	"syscall"
)

// detachedFlags combines DETACHED_PROCESS, CREATE_NEW_PROCESS_GROUP and
// CREATE_BREAKAWAY_FROM_JOB so a relaunched daemon/CLI/self-updater
// survives its parent exiting, matching the original implementation's
// relaunch creation flags.
const detachedFlags = 0x00000008 | 0x00000200 | 0x01000000

func setDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: detachedFlags}
}
