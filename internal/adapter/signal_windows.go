//go:build !unix

package adapter

import (
	"os/exec"
	"strconv"
)

func killPID(pid int) error {
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run()
}
