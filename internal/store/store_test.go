package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"xb-go/internal/xb"
)

// runStoreContract exercises the behaviour every ArchiveStore must share.
// exactSizes is false for stores whose listed sizes are not plaintext sizes.
func runStoreContract(t *testing.T, s xb.ArchiveStore, exactSizes bool) {
	t.Helper()
	ctx := context.Background()

	objects := map[string]string{
		"full_backup_20240115.tar.gz":             "full archive bytes",
		"inc_backup_20240115113000.tar.gz":        "incremental one",
		"nested/inc_backup_20240115123000.tar.gz": strings.Repeat("z", 4096),
	}

	t.Run("put and get round trip", func(t *testing.T) {
		for key, body := range objects {
			if err := s.Put(ctx, key, strings.NewReader(body), int64(len(body))); err != nil {
				t.Fatalf("Put(%s) error = %v", key, err)
			}
		}
		for key, body := range objects {
			var buf bytes.Buffer
			if err := s.Get(ctx, key, &buf); err != nil {
				t.Fatalf("Get(%s) error = %v", key, err)
			}
			if buf.String() != body {
				t.Errorf("Get(%s) = %q, want %q", key, buf.String(), body)
			}
		}
	})

	t.Run("list returns relative keys", func(t *testing.T) {
		got, err := s.List(ctx, "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != len(objects) {
			t.Fatalf("List() returned %d objects, want %d: %+v", len(got), len(objects), got)
		}
		for _, obj := range got {
			body, ok := objects[obj.Key]
			if !ok {
				t.Errorf("List() returned unexpected key %q", obj.Key)
				continue
			}
			if exactSizes && obj.Size != int64(len(body)) {
				t.Errorf("size of %s = %d, want %d", obj.Key, obj.Size, len(body))
			}
			if obj.LastModified.IsZero() {
				t.Errorf("LastModified of %s is zero", obj.Key)
			}
		}
	})

	t.Run("list filters by prefix", func(t *testing.T) {
		got, err := s.List(ctx, "inc_")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 || got[0].Key != "inc_backup_20240115113000.tar.gz" {
			t.Errorf("List(inc_) = %+v", got)
		}
	})

	t.Run("get missing key", func(t *testing.T) {
		err := s.Get(ctx, "full_backup_19990101.tar.gz", &bytes.Buffer{})
		if !errors.Is(err, xb.ErrObjectNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrObjectNotFound", err)
		}
	})

	t.Run("size mismatch is rejected", func(t *testing.T) {
		key := "inc_backup_20240115133000.tar.gz"
		if err := s.Put(ctx, key, strings.NewReader("short"), 100); err == nil {
			t.Fatal("Put() with wrong size expected error")
		}
		got, _ := s.List(ctx, key)
		if len(got) != 0 {
			t.Errorf("partial object %s is visible: %+v", key, got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		for key := range objects {
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete(%s) error = %v", key, err)
			}
		}
		if err := s.Delete(ctx, "full_backup_19990101.tar.gz"); err != nil {
			t.Errorf("Delete(missing) error = %v, want nil", err)
		}
		got, err := s.List(ctx, "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("List() after delete = %+v, want empty", got)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := s.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}
