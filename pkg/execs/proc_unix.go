//go:build !windows

package execs

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// killProcessTree runs cmd in its own process group and makes cancellation
// SIGKILL the whole group, so children started by a shell die with it.
func killProcessTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}

		return err
	}
}
