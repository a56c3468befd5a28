package credstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"faydo/services/portal/internal/account"
)

// Bundle is the persisted authorization material: both tokens plus the last
// known user snapshot. The three fields live and die together.
type Bundle struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *account.User `json:"user"`
}

// complete reports whether every field a caller may trust is present.
func (b *Bundle) complete() bool {
	return b != nil &&
		strings.TrimSpace(b.AccessToken) != "" &&
		strings.TrimSpace(b.RefreshToken) != "" &&
		b.User != nil
}

// Store persists the credential bundle in a single file, optionally
// encrypted at rest with an age identity.
type Store struct {
	path     string
	identity *age.X25519Identity
}

// New creates a Store writing to path. When ageIdentity is a non-empty
// AGE-SECRET-KEY-1 string the bundle is encrypted to its recipient on disk.
func New(path, ageIdentity string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("credential store path is required")
	}

	store := &Store{path: path}

	if key := strings.TrimSpace(ageIdentity); key != "" {
		identity, err := age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("parse age identity: %w", err)
		}
		store.identity = identity
	}

	return store, nil
}

// Save overwrites the persisted bundle. The write goes to a temporary file in
// the same directory followed by a rename, so a crash mid-write leaves either
// the old bundle or the new one, never a torn file.
func (s *Store) Save(bundle Bundle) error {
	if s == nil {
		return errors.New("nil store")
	}
	if !bundle.complete() {
		return errors.New("refusing to save incomplete credential bundle")
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	if s.identity != nil {
		data, err = s.encrypt(data)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close bundle: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace bundle: %w", err)
	}
	return nil
}

// Load returns the stored bundle, or nil when nothing trustworthy is on
// disk. A bundle missing any field (a torn or tampered file) loads as nil.
func (s *Store) Load() (*Bundle, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	if s.identity != nil {
		data, err = s.decrypt(data)
		if err != nil {
			return nil, nil
		}
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, nil
	}
	if !bundle.complete() {
		return nil, nil
	}
	return &bundle, nil
}

// Clear removes the persisted bundle. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	if s == nil {
		return errors.New("nil store")
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove bundle: %w", err)
	}
	return nil
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("encrypt bundle: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypt bundle: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encrypt bundle: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt bundle: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt bundle: %w", err)
	}
	return plaintext, nil
}
