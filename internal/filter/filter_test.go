package filter

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestAcceptRejectsDefaultDirs(t *testing.T) {
	root := t.TempDir()
	blocked := filepath.Join(root, "node_modules", "lib.js")
	writeFile(t, blocked, []byte("const x = 1;"))

	f := New(root, 0)
	if f.Accept(blocked, 20) {
		t.Error("node_modules/lib.js should be rejected by the default directory rule")
	}
}

func TestAcceptRejectsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "big.txt")
	writeFile(t, path, []byte("hello"))

	f := New(root, 10)
	if f.Accept(path, 1000) {
		t.Error("file exceeding maxFileSize should be rejected")
	}
	if !f.Accept(path, 5) {
		t.Error("file under maxFileSize should be accepted")
	}
}

func TestAcceptRejectsBinaryFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "image.bin")
	buf := make([]byte, 200)
	buf[50] = 0x00
	writeFile(t, path, buf)

	f := New(root, 0)
	if f.Accept(path, int64(len(buf))) {
		t.Error("file containing a NUL byte should be rejected as binary")
	}
}

func TestAcceptHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), []byte("*.log\nsecret.txt\n"))
	logPath := filepath.Join(root, "debug.log")
	secretPath := filepath.Join(root, "secret.txt")
	keepPath := filepath.Join(root, "app.go")
	writeFile(t, logPath, []byte("log line"))
	writeFile(t, secretPath, []byte("password"))
	writeFile(t, keepPath, []byte("package main"))

	f := New(root, 0)
	if f.Accept(logPath, 8) {
		t.Error("debug.log should be excluded by .gitignore")
	}
	if f.Accept(secretPath, 8) {
		t.Error("secret.txt should be excluded by .gitignore")
	}
	if !f.Accept(keepPath, 12) {
		t.Error("app.go should not be excluded")
	}
}

func TestAcceptContextIgnoreCanReincludeGitignoredPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), []byte("*.log\n"))
	writeFile(t, filepath.Join(root, ".contextignore"), []byte("!important.log\n"))
	path := filepath.Join(root, "important.log")
	writeFile(t, path, []byte("keep me"))

	f := New(root, 0)
	if !f.Accept(path, 7) {
		t.Error("contextignore negation should re-include a path .gitignore excluded")
	}
}

func TestAcceptContextIgnoreCanExcludeOnItsOwn(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".contextignore"), []byte("secrets/\n"))
	path := filepath.Join(root, "secrets", "key.txt")
	writeFile(t, path, []byte("sh-sh-sh"))

	f := New(root, 0)
	if f.Accept(path, 8) {
		t.Error(".contextignore should be able to exclude a path on its own, with no .gitignore involved")
	}
}

func TestAcceptNestedGitignoreTakesPrecedenceOverParent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), []byte("*.tmp\n"))
	writeFile(t, filepath.Join(root, "pkg", ".gitignore"), []byte("!keep.tmp\n"))
	path := filepath.Join(root, "pkg", "keep.tmp")
	writeFile(t, path, []byte("data"))

	f := New(root, 0)
	if !f.Accept(path, 4) {
		t.Error("the nearest .gitignore (pkg/.gitignore) should take precedence over the root's")
	}
}

func TestNewDefaultsMaxFileSize(t *testing.T) {
	f := New(t.TempDir(), 0)
	if f.maxFileSize != defaultMaxFileSize {
		t.Errorf("maxFileSize = %d, want default %d", f.maxFileSize, defaultMaxFileSize)
	}
}
