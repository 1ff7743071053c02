// Package file persists the session under a state directory, one file per entry.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/platform/crypto"
)

const (
	storeDirMode = 0o700
	entryFileMod = 0o600

	tokenEntry = "token"
	userEntry  = "user.json"
)

type Store struct {
	root   string
	sealer crypto.Sealer
	mu     sync.RWMutex
}

var _ domain.CredentialStore = (*Store)(nil)

// NewStore seals the token with sealer. A nil sealer stores it as plaintext.
func NewStore(root string, sealer crypto.Sealer) *Store {
	if sealer == nil {
		sealer = crypto.Passthrough{}
	}
	return &Store{root: filepath.Clean(root), sealer: sealer}
}

func (s *Store) Load(ctx context.Context) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sealed, err := os.ReadFile(s.path(tokenEntry))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, domain.ErrStoreNotFound
		}
		return "", nil, fmt.Errorf("read token file: %w", err)
	}
	token, err := s.sealer.Open(sealed)
	if err != nil {
		return "", nil, fmt.Errorf("open token: %w", err)
	}
	if len(token) == 0 {
		return "", nil, domain.ErrStoreNotFound
	}

	identity, err := os.ReadFile(s.path(userEntry))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("read user file: %w", err)
	}
	return string(token), identity, nil
}

func (s *Store) Save(ctx context.Context, credential string, identity []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sealed, err := s.sealer.Seal([]byte(credential))
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, storeDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := writeAtomic(s.path(tokenEntry), sealed); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if len(identity) == 0 {
		return removeIfExists(s.path(userEntry))
	}
	if err := writeAtomic(s.path(userEntry), identity); err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	return nil
}

// Clear removes both entries. Missing entries are not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(removeIfExists(s.path(tokenEntry)), removeIfExists(s.path(userEntry)))
}

func (s *Store) path(entry string) string {
	return filepath.Join(s.root, entry)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(entryFileMod); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
