package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFilesystemArchiver(t *testing.T) {
	t.Run("creates the root directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		root := filepath.Join(tmpDir, "exports")

		a, err := NewFilesystemArchiver("test", root)
		if err != nil {
			t.Fatalf("NewFilesystemArchiver() error = %v", err)
		}

		if _, err := os.Stat(root); err != nil {
			t.Errorf("archive root not created: %v", err)
		}
		if a.name != "test" {
			t.Errorf("name = %q, want %q", a.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		if _, err := NewFilesystemArchiver("test", tmpDir); err != nil {
			t.Fatalf("NewFilesystemArchiver() error = %v", err)
		}
	})
}

func TestFilesystemArchiver_PutAndGet(t *testing.T) {
	a, err := NewFilesystemArchiver("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemArchiver() error = %v", err)
	}
	ctx := context.Background()

	content := `[{"id":"srv-1","status":"ON_DUTY"}]`
	key := "alice/2024-01-01..2024-02-01.json"

	if err := a.Put(ctx, key, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var buf bytes.Buffer
	if err := a.Get(ctx, key, &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := buf.String(); got != content {
		t.Errorf("Get() = %q, want %q", got, content)
	}
}

func TestFilesystemArchiver_PutSizeMismatch(t *testing.T) {
	root := t.TempDir()
	a, err := NewFilesystemArchiver("test", root)
	if err != nil {
		t.Fatalf("NewFilesystemArchiver() error = %v", err)
	}

	content := "short"
	err = a.Put(context.Background(), "key.json", strings.NewReader(content), int64(len(content)+5))
	if err == nil {
		t.Fatal("Put() expected error for size mismatch, got nil")
	}

	// A failed write must not leave temp files or a partial export behind.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("archive root not clean after failed Put: %v", entries)
	}
}

func TestFilesystemArchiver_GetNotFound(t *testing.T) {
	a, err := NewFilesystemArchiver("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemArchiver() error = %v", err)
	}

	var buf bytes.Buffer
	if err := a.Get(context.Background(), "nonexistent.json", &buf); err == nil {
		t.Error("Get() expected error for nonexistent key, got nil")
	}
}

func TestFilesystemArchiver_ValidateSetup(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		a, err := NewFilesystemArchiver("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFilesystemArchiver() error = %v", err)
		}
		if err := a.ValidateSetup(context.Background()); err != nil {
			t.Errorf("ValidateSetup() unexpected error: %v", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		a := &FilesystemArchiver{name: "test", root: "/nonexistent/archive/root"}
		if err := a.ValidateSetup(context.Background()); err == nil {
			t.Error("ValidateSetup() expected error for missing root, got nil")
		}
	})
}
