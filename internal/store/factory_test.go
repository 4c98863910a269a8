package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"xb-go/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		cfg      config.StoreConfig
		wantType string
		wantErr  bool
	}{
		{name: "memory", cfg: config.StoreConfig{Type: "memory"}, wantType: "*store.MemoryStore"},
		{name: "filesystem", cfg: config.StoreConfig{Type: "filesystem", Root: filepath.Join(t.TempDir(), "a")}, wantType: "*store.FileSystemStore"},
		{name: "filesystem without root", cfg: config.StoreConfig{Type: "filesystem"}, wantErr: true},
		{name: "s3", cfg: config.StoreConfig{Type: "s3", Bucket: "b", Region: "eu-west-1", AccessKey: "a", SecretKey: "s"}, wantType: "*store.S3Store"},
		{name: "s3 without bucket", cfg: config.StoreConfig{Type: "s3"}, wantErr: true},
		{name: "unknown", cfg: config.StoreConfig{Type: "tape"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStoreFromConfig(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := fmt.Sprintf("%T", s); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
		})
	}

	_, err := NewStoreFromConfig(ctx, config.StoreConfig{Type: "s3"})
	var missing *config.ConfigMissingError
	if !errors.As(err, &missing) || missing.Key != "store.bucket" {
		t.Errorf("s3 without bucket error = %v, want ConfigMissingError(store.bucket)", err)
	}
}
