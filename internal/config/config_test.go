package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		ServerURL:      "https://attendance.example.com",
		BaseDir:        "/home/user/.local/share/attrack",
		LogDir:         "/home/user/.local/share/attrack/log",
		TimeoutSeconds: 30,
		IdentityPath:   "/home/user/.local/share/attrack/keys/attrack.key",
		Database:       DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/attrack/data"},
		Archives: []ArchiveConfig{
			{Type: "filesystem", Name: "local", DirRoot: "/backup/attendance"},
			{Type: "s3", Name: "offsite", S3Bucket: "attendance-exports", S3Region: "ap-southeast-1"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.ServerURL != original.ServerURL {
		t.Errorf("ServerURL = %q, want %q", got.ServerURL, original.ServerURL)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", got.TimeoutSeconds)
	}
	if got.IdentityPath != original.IdentityPath {
		t.Errorf("IdentityPath = %q, want %q", got.IdentityPath, original.IdentityPath)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if len(got.Archives) != 2 {
		t.Fatalf("len(Archives) = %d, want 2", len(got.Archives))
	}
	if got.Archives[0].DirRoot != "/backup/attendance" {
		t.Errorf("Archives[0].DirRoot = %q, want %q", got.Archives[0].DirRoot, "/backup/attendance")
	}
	if got.Archives[1].S3Bucket != "attendance-exports" {
		t.Errorf("Archives[1].S3Bucket = %q, want %q", got.Archives[1].S3Bucket, "attendance-exports")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("https://attendance.example.com", "/data/attrack")

	if cfg.ServerURL != "https://attendance.example.com" {
		t.Errorf("ServerURL = %q, want %q", cfg.ServerURL, "https://attendance.example.com")
	}
	if cfg.BaseDir != "/data/attrack" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/attrack")
	}
	if cfg.LogDir != "/data/attrack/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/attrack/log")
	}
	if cfg.IdentityPath != "/data/attrack/keys/attrack.key" {
		t.Errorf("IdentityPath = %q, want %q", cfg.IdentityPath, "/data/attrack/keys/attrack.key")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.PrefsPath() != "/data/attrack/prefs.toml" {
		t.Errorf("PrefsPath() = %q, want %q", cfg.PrefsPath(), "/data/attrack/prefs.toml")
	}
}

func TestTimeoutDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.Timeout() != 15 {
		t.Errorf("Timeout() = %d, want default 15", cfg.Timeout())
	}

	cfg.TimeoutSeconds = 45
	if cfg.Timeout() != 45 {
		t.Errorf("Timeout() = %d, want 45", cfg.Timeout())
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "attrack.toml")
		cfg := NewConfig("https://example.com", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "attrack.toml")
		cfg := NewConfig("https://example.com", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "attrack.toml")
		cfg := NewConfig("https://read-test.example.com", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.ServerURL != "https://read-test.example.com" {
			t.Errorf("ServerURL = %q, want %q", got.ServerURL, "https://read-test.example.com")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/attrack.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
