package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/portboard/pkg/config"
)

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func initRepo(t *testing.T, remote string) string {
	t.Helper()
	dir := t.TempDir()
	git(t, dir, "init", "-q")
	git(t, dir, "config", "user.email", "test@example.org")
	git(t, dir, "config", "user.name", "test")
	git(t, dir, "remote", "add", "origin", remote)
	return dir
}

func commitFile(t *testing.T, dir, rel, content, message string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	git(t, dir, "add", rel)
	git(t, dir, "commit", "-q", "-m", message)
	return git(t, dir, "rev-parse", "HEAD")
}

func TestNewRejectsWrongClone(t *testing.T) {
	cfg := config.Default()
	// Both directories point at a clone of the wrong repository.
	dir := initRepo(t, "https://github.com/someone/else.git")
	commitFile(t, dir, "README.md", "x\n", "init")
	cfg.Repos.SourceDir = dir
	cfg.Repos.TargetDir = dir

	if _, err := New(cfg, Options{SkipLabels: true}); err == nil {
		t.Error("expected a clone identity error")
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = t.TempDir()

	srcDir := initRepo(t, "https://github.com/leanprover-community/mathlib.git")
	tgtDir := initRepo(t, "https://github.com/leanprover-community/mathlib4.git")
	cfg.Repos.SourceDir = srcDir
	cfg.Repos.TargetDir = tgtDir

	c1 := commitFile(t, srcDir, "src/data/basic.lean", "theorem a\n", "add basic")
	commitFile(t, srcDir, "src/data/gcd.lean", "import data.basic\ntheorem g\n", "add gcd")
	commitFile(t, tgtDir, "Mathlib/Data/Basic.lean",
		"/-\n! leanprover-community/mathlib commit "+c1+"\n-/\ntheorem a\n", "port basic")

	status := `data.basic:
  ported: true
  mathlib4_pr: 504
  mathlib4_file: Mathlib/Data/Basic.lean
  source:
    repo: leanprover-community/mathlib
    commit: ` + c1 + `
data.gcd: {}
`
	cfg.StatusFile = filepath.Join(t.TempDir(), "status.yaml")
	if err := os.WriteFile(cfg.StatusFile, []byte(status), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := New(cfg, Options{SkipLabels: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	htmlDir := cfg.HTMLDir()
	index, err := os.ReadFile(filepath.Join(htmlDir, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "data.basic") || !strings.Contains(string(index), "data.gcd") {
		t.Error("index missing tracked files")
	}

	page, err := os.ReadFile(filepath.Join(htmlDir, "file", "data", "basic.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "PORTED") {
		t.Error("basic page missing state")
	}
	if !strings.Contains(string(page), c1[:8]) {
		t.Error("basic page missing sync commit link")
	}

	if _, err := os.Stat(filepath.Join(htmlDir, "out-of-sync.html")); err != nil {
		t.Error("out-of-sync page missing")
	}
}

func TestRunCancellation(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = t.TempDir()

	srcDir := initRepo(t, "https://github.com/leanprover-community/mathlib.git")
	tgtDir := initRepo(t, "https://github.com/leanprover-community/mathlib4.git")
	cfg.Repos.SourceDir = srcDir
	cfg.Repos.TargetDir = tgtDir
	commitFile(t, srcDir, "src/a.lean", "x\n", "init")
	commitFile(t, tgtDir, "README.md", "x\n", "init")

	cfg.StatusFile = filepath.Join(t.TempDir(), "status.yaml")
	if err := os.WriteFile(cfg.StatusFile, []byte("a: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := New(cfg, Options{SkipLabels: true})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err == nil {
		t.Error("expected a cancellation error")
	}
}
