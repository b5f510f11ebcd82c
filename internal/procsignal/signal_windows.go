//go:build windows

package procsignal

import (
	"os"
	"os/exec"
	"syscall"
)

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const processTerminate = 0x0001

// RequestGracefulShutdown: Windows has no portable SIGTERM equivalent for an
// arbitrary child, so graceful shutdown degrades straight to termination;
// the caller's 1000ms wait before force-terminating still applies.
func RequestGracefulShutdown(proc *os.Process) {
	ForceTerminate(proc)
}

func ForceTerminate(proc *os.Process) {
	handle, _, _ := procOpenProcess.Call(uintptr(processTerminate), 0, uintptr(proc.Pid))
	if handle == 0 {
		return
	}
	defer func() { _, _, _ = procCloseHandle.Call(handle) }()
	_, _, _ = procTerminateProcess.Call(handle, 1)
}

func SetProcAttrs(cmd *exec.Cmd) {}
