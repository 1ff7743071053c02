// Package memory keeps the session in process memory only.
package memory

import (
	"context"
	"sync"

	"github.com/pscheid92/leavenotify/internal/domain"
)

type Store struct {
	mu         sync.Mutex
	credential string
	identity   []byte
}

func New() *Store { return &Store{} }

func (s *Store) Load(_ context.Context) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential == "" {
		return "", nil, domain.ErrStoreNotFound
	}
	return s.credential, append([]byte(nil), s.identity...), nil
}

func (s *Store) Save(_ context.Context, credential string, identity []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	s.identity = append([]byte(nil), identity...)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	s.identity = nil
	return nil
}
