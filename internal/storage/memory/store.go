package memory

import (
	"sync"

	"github.com/dtroode/catalog-client/internal/model"
)

var _ model.TokenStore = (*TokenStore)(nil)

// TokenStore keeps the token for the lifetime of the process.
type TokenStore struct {
	mu    sync.Mutex
	token string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return "", model.ErrNoToken
	}
	return s.token, nil
}

func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	return nil
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return nil
}
