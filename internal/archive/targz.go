// Package archive packs backup directories into single compressed files and
// unpacks them again.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"xb-go/internal/xb"
)

// TarGz writes gzip-compressed tar archives. Entry names are relative to the
// archived directory, so extracting into any destination reproduces it.
type TarGz struct {
	Level int
}

var _ xb.Archiver = (*TarGz)(nil)

// NewTarGz returns a TarGz using gzip's default compression level.
func NewTarGz() *TarGz {
	return &TarGz{Level: gzip.DefaultCompression}
}

type archiveWriters struct {
	tw      *tar.Writer
	closers []io.Closer
}

// Close closes all writers in reverse order, returning the first error.
func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *TarGz) openWriters(path string) (*archiveWriters, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	gz, err := gzip.NewWriterLevel(f, a.Level)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)
	return &archiveWriters{tw: tw, closers: []io.Closer{f, gz, tw}}, nil
}

// Compress archives srcDir into archivePath and returns the archive size.
func (a *TarGz) Compress(ctx context.Context, srcDir, archivePath string) (size int64, err error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return 0, fmt.Errorf("reading source directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", srcDir)
	}

	aw, err := a.openWriters(archivePath)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := aw.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(archivePath)
		}
	}()

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		return addEntry(aw.tw, srcDir, path, d)
	})
	if err != nil {
		return 0, fmt.Errorf("archiving %s: %w", srcDir, err)
	}

	if err := aw.Close(); err != nil {
		return 0, fmt.Errorf("finalizing archive: %w", err)
	}
	aw.closers = nil

	st, err := os.Stat(archivePath)
	if err != nil {
		return 0, fmt.Errorf("reading archive size: %w", err)
	}
	return st.Size(), nil
}

func addEntry(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("building header for %s: %w", rel, err)
	}
	hdr.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// Extract unpacks archivePath into destDir, creating it. Entries that would
// land outside destDir are rejected.
func (a *TarGz) Extract(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if err := extractEntry(tr, hdr, destDir); err != nil {
			return err
		}
	}
}

func destPath(destDir, name string) (string, error) {
	p := filepath.Join(destDir, filepath.FromSlash(name))
	if p != filepath.Clean(destDir) && !strings.HasPrefix(p, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return p, nil
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, destDir string) error {
	target, err := destPath(destDir, hdr.Name)
	if err != nil {
		return err
	}
	mode := hdr.FileInfo().Mode().Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0o700); err != nil {
			return fmt.Errorf("creating %s: %w", hdr.Name, err)
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return fmt.Errorf("creating %s: %w", hdr.Name, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", hdr.Name, err)
		}
	case tar.TypeSymlink:
		resolved := hdr.Linkname
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(target), resolved)
		}
		if _, err := destPath(destDir, mustRel(destDir, resolved)); err != nil {
			return fmt.Errorf("symlink %s: %w", hdr.Name, err)
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return fmt.Errorf("creating symlink %s: %w", hdr.Name, err)
		}
	default:
		return fmt.Errorf("unsupported archive entry %s (type %c)", hdr.Name, hdr.Typeflag)
	}
	return nil
}

// mustRel returns target relative to base, or ".." when no relative path
// exists so that destPath rejects it.
func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return ".."
	}
	return rel
}
