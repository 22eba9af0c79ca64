//go:build unix

package sandbox

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// ApplyResourceLimits sets the freshly-started child's address-space limit
// via prlimit, matching original_source's unix::apply_resource_limits (which
// uses a pre_exec setrlimit hook; Go has no pre_exec, so this applies the
// limit to the running child immediately after Start). Best-effort: a
// prlimit failure is not fatal to adapter execution, and there is an
// unavoidable race between Start and the limit taking effect.
func ApplyResourceLimits(cmd *exec.Cmd, cfg *Config) {
	if !cfg.Enabled || cfg.MaxMemoryMB == nil || cmd.Process == nil {
		return
	}
	limit := *cfg.MaxMemoryMB * 1024 * 1024
	rlimit := unix.Rlimit{Cur: limit, Max: limit}
	_ = unix.Prlimit(cmd.Process.Pid, unix.RLIMIT_AS, &rlimit, nil)
}
