//go:build !windows

package pipeline

import "syscall"

// terminateGroup sends SIGTERM to the process group led by pid so that
// children forked by a stage (shells, helpers) go down with it.
func terminateGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// processExists reports whether a process with the given pid is alive.
func processExists(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
