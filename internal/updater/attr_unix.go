//go:build !windows

package updater

import "os/exec"

func setDetachedProcAttr(cmd *exec.Cmd) {
	// no-op off Windows
}
