package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSession(t *testing.T) {
	root := t.TempDir()
	s := NewLocal(root, "web1")
	ctx := context.Background()

	if s.Host() != "web1" {
		t.Errorf("expected host web1, got %s", s.Host())
	}

	if err := s.MkdirAll(ctx, "/etc/nginx", 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	changed, err := s.WriteFile(ctx, "/etc/nginx/nginx.conf", []byte("a"), 0o640)
	if err != nil || !changed {
		t.Fatalf("first WriteFile() = %v, %v", changed, err)
	}
	changed, err = s.WriteFile(ctx, "/etc/nginx/nginx.conf", []byte("a"), 0o640)
	if err != nil || changed {
		t.Fatalf("second WriteFile() = %v, %v", changed, err)
	}

	info, err := os.Stat(filepath.Join(root, "etc", "nginx", "nginx.conf"))
	if err != nil {
		t.Fatalf("rendered file missing: %v", err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("expected mode 0640, got %v", info.Mode().Perm())
	}

	if ok, _ := s.Exists(ctx, "/etc/nginx/nginx.conf"); !ok {
		t.Error("expected file to exist")
	}
	if err := s.Remove(ctx, "/etc/nginx/absent"); err != nil {
		t.Errorf("removing an absent file: %v", err)
	}
	if err := s.Chown(ctx, "/etc/nginx", "www-data", ""); err != nil {
		t.Errorf("Chown() error = %v", err)
	}
	if _, err := s.Run(ctx, "service nginx restart"); !errors.Is(err, ErrCommandsUnsupported) {
		t.Errorf("expected ErrCommandsUnsupported, got %v", err)
	}
}
