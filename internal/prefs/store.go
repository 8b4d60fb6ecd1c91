// Package prefs holds the small process-wide session state: the auth
// token, the dark-theme flag, the on-duty flag and the account the
// session belongs to. It is externally owned state the engine only ever
// reads a token from; it is not part of the attendance cache and is not
// wiped on refresh.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// prefsFile is the on-disk shape. The token never appears in plaintext;
// it is sealed by the Sealer before writing.
type prefsFile struct {
	Account     string `toml:"account"`
	DarkTheme   bool   `toml:"dark_theme"`
	OnDuty      bool   `toml:"on_duty"`
	SealedToken string `toml:"sealed_token,omitempty"`
}

// Store reads and writes the prefs file. Safe for concurrent use within
// one process; every mutation rewrites the whole file.
type Store struct {
	mu     sync.Mutex
	path   string
	sealer *Sealer
}

// NewStore creates a Store backed by the file at path.
func NewStore(path string, sealer *Sealer) *Store {
	return &Store{path: path, sealer: sealer}
}

// Account returns the email of the logged-in account, or "".
func (s *Store) Account() (string, error) {
	p, err := s.load()
	if err != nil {
		return "", err
	}
	return p.Account, nil
}

// AuthToken returns the unsealed session token, or "" when logged out.
func (s *Store) AuthToken() (string, error) {
	p, err := s.load()
	if err != nil {
		return "", err
	}
	if p.SealedToken == "" {
		return "", nil
	}
	return s.sealer.Open(p.SealedToken)
}

// SetSession stores the account and its sealed session token.
func (s *Store) SetSession(account, token string) error {
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return err
	}
	return s.update(func(p *prefsFile) {
		p.Account = account
		p.SealedToken = sealed
	})
}

// ClearSession drops the token and account, keeping the other flags.
func (s *Store) ClearSession() error {
	return s.update(func(p *prefsFile) {
		p.Account = ""
		p.SealedToken = ""
		p.OnDuty = false
	})
}

// DarkTheme returns the dark-theme flag.
func (s *Store) DarkTheme() (bool, error) {
	p, err := s.load()
	if err != nil {
		return false, err
	}
	return p.DarkTheme, nil
}

// SetDarkTheme stores the dark-theme flag.
func (s *Store) SetDarkTheme(v bool) error {
	return s.update(func(p *prefsFile) { p.DarkTheme = v })
}

// OnDuty returns the duty flag: whether the user is currently clocked in.
func (s *Store) OnDuty() (bool, error) {
	p, err := s.load()
	if err != nil {
		return false, err
	}
	return p.OnDuty, nil
}

// SetOnDuty stores the duty flag.
func (s *Store) SetOnDuty(v bool) error {
	return s.update(func(p *prefsFile) { p.OnDuty = v })
}

func (s *Store) update(mutate func(*prefsFile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		return err
	}
	mutate(&p)
	return s.write(p)
}

func (s *Store) load() (prefsFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() (prefsFile, error) {
	var p prefsFile
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("reading prefs file: %w", err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decoding prefs file: %w", err)
	}
	return p, nil
}

func (s *Store) write(p prefsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating prefs directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating prefs file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("encoding prefs file: %w", err)
	}
	return nil
}
