package prefs

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// Sealer protects the session token at rest with an age X25519 identity
// kept in a local key file. The identity is generated once during
// `attrack config init`; sealing and opening need no user interaction
// after that.
type Sealer struct {
	identityPath string
}

// NewSealer creates a Sealer using the identity file at the given path.
func NewSealer(identityPath string) *Sealer {
	return &Sealer{identityPath: identityPath}
}

// Setup generates a new X25519 identity and writes it to the identity
// path. It refuses to overwrite an existing identity: doing so would
// orphan any token sealed with it.
func (s *Sealer) Setup() error {
	if s.IsConfigured() {
		return fmt.Errorf("identity file already exists at %s", s.identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}

	if err := os.WriteFile(s.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the identity file exists.
func (s *Sealer) IsConfigured() bool {
	_, err := os.Stat(s.identityPath)
	return err == nil
}

// Seal encrypts the plaintext against the identity's recipient and
// returns it base64-encoded for embedding in the prefs file.
func (s *Sealer) Seal(plaintext string) (string, error) {
	identity, err := s.loadIdentity()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing sealed token: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts a sealed value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	identity, err := s.loadIdentity()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed token: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", fmt.Errorf("unsealing token: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading unsealed token: %w", err)
	}

	return string(plaintext), nil
}

// loadIdentity reads and parses the X25519 identity file.
func (s *Sealer) loadIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(s.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}

	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity found in %s", s.identityPath)
}
