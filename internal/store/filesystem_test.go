package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore_Contract(t *testing.T) {
	s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "archives"))
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	runStoreContract(t, s, true)
}

func TestFileSystemStore_RequiresRoot(t *testing.T) {
	if _, err := NewFileSystemStore(""); err == nil {
		t.Error("NewFileSystemStore(\"\") expected error")
	}
}

func TestFileSystemStore_RejectsEscapingKeys(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(filepath.Join(root, "archives"))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../outside.tar.gz", "/etc/passwd", ""} {
		if err := s.Put(context.Background(), key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q) expected error", key)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "outside.tar.gz")); err == nil {
		t.Error("file written outside the store root")
	}
}

func TestFileSystemStore_ListSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".tmp-123"), []byte("partial"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() = %+v, want temp files hidden", got)
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ValidateSetup(context.Background()); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}
	os.RemoveAll(root)
	if err := s.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() on removed root expected error")
	}
}
