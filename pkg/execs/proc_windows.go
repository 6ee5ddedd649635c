//go:build windows

package execs

import (
	"os/exec"
	"strconv"
)

// killProcessTree makes cancellation terminate cmd and every process it
// started, using taskkill's tree mode.
func killProcessTree(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		pid := strconv.Itoa(cmd.Process.Pid)

		//nolint:gosec // G204: The argument is a process ID.
		if err := exec.Command("taskkill", "/T", "/F", "/PID", pid).Run(); err != nil {
			return cmd.Process.Kill()
		}

		return nil
	}
}
