//go:build !unix

package sandbox

import "os/exec"

// ApplyResourceLimits is a best-effort no-op on non-Unix platforms, matching
// original_source's windows::apply_resource_limits.
func ApplyResourceLimits(cmd *exec.Cmd, cfg *Config) {}
