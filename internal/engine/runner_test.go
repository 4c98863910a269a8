package engine

import (
	"context"
	"errors"
	"os/exec"
	"sort"
	"sync"
	"testing"
)

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("streams both outputs", func(t *testing.T) {
		var mu sync.Mutex
		var lines []string
		err := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "echo out1; echo err1 >&2; echo out2"}, func(stream, line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, stream+":"+line)
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		sort.Strings(lines)
		want := []string{"stderr:err1", "stdout:out1", "stdout:out2"}
		if len(lines) != len(want) {
			t.Fatalf("lines = %v, want %v", lines, want)
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
			}
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		err := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "exit 3"}, nil)
		var exitErr *exec.ExitError
		if err == nil {
			t.Fatal("Run() expected error")
		}
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
			t.Errorf("Run() error = %v, want exit status 3", err)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		if err := (ExecRunner{}).Run(context.Background(), "/nonexistent/xtrabackup", nil, nil); err == nil {
			t.Error("Run() expected error for missing binary")
		}
	})
}
