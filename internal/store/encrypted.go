package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"xb-go/internal/xb"
)

// ErrLocked is returned by EncryptedStore.Get before Unlock.
var ErrLocked = errors.New("encrypted store is locked: unlock with the key passphrase first")

// EncryptedStore encrypts archives before they reach the wrapped store and
// decrypts them on the way back. Listing and deletion pass through, so
// object sizes reflect ciphertext.
type EncryptedStore struct {
	inner  xb.ArchiveStore
	enc    xb.Encryptor
	dec    xb.DecryptionContext
	tmpDir string
}

// NewEncryptedStore wraps inner. Ciphertext is staged in tmpDir (the system
// temp directory when empty) so its exact size is known before upload.
func NewEncryptedStore(inner xb.ArchiveStore, enc xb.Encryptor, tmpDir string) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc, tmpDir: tmpDir}
}

// Unlock unwraps the private key so Get can decrypt.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dec, err := s.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking encryption key: %w", err)
	}
	s.dec = dec
	return nil
}

func (s *EncryptedStore) List(ctx context.Context, prefix string) ([]xb.ObjectInfo, error) {
	return s.inner.List(ctx, prefix)
}

func (s *EncryptedStore) Get(ctx context.Context, key string, w io.Writer) error {
	if s.dec == nil {
		return ErrLocked
	}

	pr, pw := io.Pipe()
	getErrCh := make(chan error, 1)
	go func() {
		err := s.inner.Get(ctx, key, pw)
		pw.CloseWithError(err)
		getErrCh <- err
	}()

	decryptErr := s.dec.Decrypt(pr, w)
	pr.CloseWithError(decryptErr)
	getErr := <-getErrCh

	if getErr != nil && (decryptErr == nil || !errors.Is(getErr, decryptErr)) {
		return getErr
	}
	if decryptErr != nil {
		return fmt.Errorf("decrypting %s: %w", key, decryptErr)
	}
	return nil
}

func (s *EncryptedStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(s.tmpDir, ".xb-enc-*")
	if err != nil {
		return fmt.Errorf("creating ciphertext file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	plain := &countingReader{r: r}
	if err := s.enc.Encrypt(plain, tmp); err != nil {
		return fmt.Errorf("encrypting %s: %w", key, err)
	}
	if size >= 0 && plain.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, plain.n)
	}

	cipherSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("sizing ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding ciphertext: %w", err)
	}
	return s.inner.Put(ctx, key, tmp, cipherSize)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// ValidateSetup checks the wrapped store and that encryption keys exist.
func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !s.enc.IsConfigured() {
		return fmt.Errorf("encryption keys not found: run 'xb keys init'")
	}
	return s.inner.ValidateSetup(ctx)
}

var _ xb.ArchiveStore = (*EncryptedStore)(nil)
