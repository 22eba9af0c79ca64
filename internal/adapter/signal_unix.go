//go:build unix

package adapter

import "syscall"

func killPID(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
