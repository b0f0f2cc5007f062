// Package secretstore provides vault.SecretStore implementations backed by
// AWS Secrets Manager, client-side-encrypted S3, and process memory.
package secretstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory SecretStore for development and tests. Not for
// production: secrets live in plain process memory and vanish on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]*vault.Credential
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets: make(map[string]*vault.Credential),
	}
}

func memoryKey(userID uuid.UUID, site marketplace.Platform) string {
	return userID.String() + "/" + string(site)
}

// Put overwrites the secret for (userID, site)
func (s *MemoryStore) Put(ctx context.Context, userID uuid.UUID, site marketplace.Platform, cred *vault.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *cred
	s.secrets[memoryKey(userID, site)] = &copied
	return nil
}

// Get returns the secret for (userID, site), or (nil, nil) when absent
func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*vault.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.secrets[memoryKey(userID, site)]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

// Delete removes the secret for (userID, site); absent is a no-op
func (s *MemoryStore) Delete(ctx context.Context, userID uuid.UUID, site marketplace.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.secrets, memoryKey(userID, site))
	return nil
}

// List returns every site with a stored secret for the user
func (s *MemoryStore) List(ctx context.Context, userID uuid.UUID) ([]marketplace.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := userID.String() + "/"
	var sites []marketplace.Platform
	for key, cred := range s.secrets {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			sites = append(sites, cred.Site)
		}
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	return sites, nil
}

// Ensure MemoryStore implements vault.SecretStore
var _ vault.SecretStore = (*MemoryStore)(nil)
