//go:build windows

package environment

import "os/exec"

func newProcessGroup(cmd *exec.Cmd) {}

// Windows has no SIGTERM; the grace period still applies before Kill.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
