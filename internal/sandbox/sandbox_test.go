package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateWriteWithinSandbox(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig(root)
	if err := cfg.InitDirectories(); err != nil {
		t.Fatalf("init: %v", err)
	}

	ok := filepath.Join(cfg.WorkspaceDir(), "file.txt")
	if err := os.WriteFile(ok, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := cfg.ValidateWrite(ok); err != nil {
		t.Fatalf("expected allowed write, got %v", err)
	}

	outside := filepath.Join(os.TempDir(), "outside-polyglotgw-test.txt")
	if err := cfg.ValidateWrite(outside); err == nil {
		t.Fatal("expected denial for path outside sandbox")
	}
}

func TestFilterEnv(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	in := [][2]string{{"PATH", "/usr/bin"}, {"SECRET_TOKEN", "xyz"}}
	out := cfg.FilterEnv(in)
	if len(out) != 1 || out[0][0] != "PATH" {
		t.Fatalf("filterEnv = %v, want only PATH", out)
	}
}

func TestDisabledSandboxAllowsEverything(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Enabled = false
	if err := cfg.ValidateWrite("/etc/passwd"); err != nil {
		t.Fatalf("disabled sandbox should allow any path, got %v", err)
	}
}
