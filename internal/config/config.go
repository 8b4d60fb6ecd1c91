package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for attrack.
type Config struct {
	ServerURL      string          `toml:"server_url"`
	BaseDir        string          `toml:"base_dir"`
	LogDir         string          `toml:"log_dir"`
	TimeoutSeconds int             `toml:"timeout_seconds"` // per remote request; defaults to 15
	IdentityPath   string          `toml:"identity_path"`   // age identity sealing the session token
	Database       DatabaseConfig  `toml:"database"`
	Archives       []ArchiveConfig `toml:"archives"`
}

// DatabaseConfig represents configuration for the local attendance cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig represents configuration for a history export backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"` // static credentials; default chain when empty
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	DirRoot string `toml:"dir_root,omitempty"`
}

// PrefsPath returns the location of the prefs file under the base dir.
func (c *Config) PrefsPath() string {
	return filepath.Join(c.BaseDir, "prefs.toml")
}

// Timeout returns the per-request remote timeout in seconds, defaulted.
func (c *Config) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 15
	}
	return c.TimeoutSeconds
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(serverURL, baseDir string) *Config {
	return &Config{
		ServerURL:    serverURL,
		BaseDir:      baseDir,
		LogDir:       filepath.Join(baseDir, "log"),
		IdentityPath: filepath.Join(baseDir, "keys", "attrack.key"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
