//go:build windows

package engine

import "os/exec"

func configureEngineProcess(cmd *exec.Cmd) {}

func terminateEngineProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
