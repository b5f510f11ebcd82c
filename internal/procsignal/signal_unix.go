//go:build !windows

package procsignal

import (
	"os"
	"os/exec"
	"syscall"
)

// RequestGracefulShutdown sends SIGTERM to the child's process group, the
// "request termination" half of spec.md §4.1's graceful shutdown protocol.
func RequestGracefulShutdown(proc *os.Process) {
	_ = syscall.Kill(-proc.Pid, syscall.SIGTERM)
}

// ForceTerminate sends SIGKILL to the child's process group.
func ForceTerminate(proc *os.Process) {
	_ = syscall.Kill(-proc.Pid, syscall.SIGKILL)
}

// SetProcAttrs places the child in its own process group so a graceful
// shutdown or force-terminate can target the whole group, not just the
// immediate child (grounded on the teacher's process.ConfigureCmd, which
// sets Setpgid for the same reason).
func SetProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
