//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so
// two-phase termination can signal the whole group, not just the leading
// PID (e.g. a shell child's own children).
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (r *Runner) signalTerminate() error {
	return syscall.Kill(-r.pid, syscall.SIGTERM)
}

func (r *Runner) signalKill() error {
	return syscall.Kill(-r.pid, syscall.SIGKILL)
}

func signalFromExitError(exitErr *exec.ExitError) string {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
