package archive

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o640); err != nil {
			t.Fatal(err)
		}
	}
}

func TestTarGz_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	src := filepath.Join(tmp, "full_backup_20240115")
	files := map[string]string{
		"xtrabackup_checkpoints": "backup_type = full-backuped\nfrom_lsn = 0\nto_lsn = 4711\n",
		"ibdata1":                strings.Repeat("\x00page", 50000),
		"shop/orders.ibd":        "orders tablespace",
		"shop/db.opt":            "default-character-set=utf8mb4",
	}
	writeTree(t, src, files)
	if err := os.Mkdir(filepath.Join(src, "empty_schema"), 0o750); err != nil {
		t.Fatal(err)
	}

	a := NewTarGz()
	archivePath := filepath.Join(tmp, "full_backup_20240115.tar.gz")
	size, err := a.Compress(ctx, src, archivePath)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	st, err := os.Stat(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if size != st.Size() {
		t.Errorf("Compress() size = %d, file size %d", size, st.Size())
	}
	if size >= int64(len(files["ibdata1"])) {
		t.Errorf("archive of %d bytes is not compressed", size)
	}

	dest := filepath.Join(tmp, "restore", "base")
	if err := a.Extract(ctx, archivePath, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("reading %s: %v", name, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s differs after round trip", name)
		}
	}
	if info, err := os.Stat(filepath.Join(dest, "empty_schema")); err != nil || !info.IsDir() {
		t.Errorf("empty directory not restored: %v", err)
	}
}

func TestTarGz_CompressErrors(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	a := NewTarGz()

	if _, err := a.Compress(ctx, filepath.Join(tmp, "missing"), filepath.Join(tmp, "out.tar.gz")); err == nil {
		t.Error("Compress() of missing directory expected error")
	}

	src := filepath.Join(tmp, "src")
	writeTree(t, src, map[string]string{"a": "b"})
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	out := filepath.Join(tmp, "cancelled.tar.gz")
	if _, err := a.Compress(cancelled, src, out); err == nil {
		t.Error("Compress() with cancelled context expected error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("partial archive left behind after failed Compress()")
	}
}

func writeRawArchive(t *testing.T, path string, hdrs []*tar.Header, bodies []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for i, h := range hdrs {
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if bodies[i] != "" {
			if _, err := tw.Write([]byte(bodies[i])); err != nil {
				t.Fatal(err)
			}
		}
	}
	tw.Close()
	gz.Close()
}

func TestTarGz_ExtractRejectsEscapes(t *testing.T) {
	tests := []struct {
		name string
		hdr  *tar.Header
		body string
	}{
		{
			name: "parent traversal",
			hdr:  &tar.Header{Name: "../evil", Typeflag: tar.TypeReg, Mode: 0o644, Size: 4},
			body: "evil",
		},
		{
			name: "absolute symlink",
			hdr:  &tar.Header{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"},
		},
		{
			name: "relative symlink out",
			hdr:  &tar.Header{Name: "sub/link", Typeflag: tar.TypeSymlink, Linkname: "../../outside"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			archivePath := filepath.Join(tmp, "bad.tar.gz")
			writeRawArchive(t, archivePath, []*tar.Header{tt.hdr}, []string{tt.body})

			dest := filepath.Join(tmp, "dest")
			if err := NewTarGz().Extract(context.Background(), archivePath, dest); err == nil {
				t.Fatal("Extract() expected error")
			}
			if _, err := os.Stat(filepath.Join(tmp, "evil")); err == nil {
				t.Error("file written outside destination")
			}
		})
	}
}

func TestTarGz_ExtractNotGzip(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "plain.tar.gz")
	if err := os.WriteFile(p, []byte("not a gzip stream"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := NewTarGz().Extract(context.Background(), p, filepath.Join(tmp, "d")); err == nil {
		t.Error("Extract() of non-gzip file expected error")
	}
}
