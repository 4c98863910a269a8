package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"xb-go/internal/encryption"
)

func TestEncryptedStore_Contract(t *testing.T) {
	s := NewEncryptedStore(NewMemoryStore(), encryption.NewTestEncryptor(), t.TempDir())
	if err := s.Unlock("any"); err != nil {
		t.Fatal(err)
	}
	runStoreContract(t, s, false)
}

func TestEncryptedStore_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewEncryptedStore(inner, encryption.NewTestEncryptor(), t.TempDir())

	plain := "ibdata1 pages"
	if err := s.Put(ctx, "full_backup_20240115.tar.gz", strings.NewReader(plain), int64(len(plain))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var raw bytes.Buffer
	if err := inner.Get(ctx, "full_backup_20240115.tar.gz", &raw); err != nil {
		t.Fatal(err)
	}
	if raw.String() == plain {
		t.Error("inner store holds plaintext")
	}

	err := s.Get(ctx, "full_backup_20240115.tar.gz", &bytes.Buffer{})
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Get() before Unlock error = %v, want ErrLocked", err)
	}

	if err := s.Unlock("any"); err != nil {
		t.Fatal(err)
	}
	var got bytes.Buffer
	if err := s.Get(ctx, "full_backup_20240115.tar.gz", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.String() != plain {
		t.Errorf("Get() = %q, want %q", got.String(), plain)
	}
}

func TestEncryptedStore_CorruptCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	body := "not encrypted at all"
	if err := inner.Put(ctx, "full_backup_20240115.tar.gz", strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatal(err)
	}

	s := NewEncryptedStore(inner, encryption.NewTestEncryptor(), t.TempDir())
	if err := s.Unlock("any"); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(ctx, "full_backup_20240115.tar.gz", &bytes.Buffer{}); err == nil {
		t.Error("Get() of corrupt ciphertext expected error")
	}
}
