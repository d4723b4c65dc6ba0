package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// SecretVault holds per-job credentials in volatile process memory only.
// Secrets are never written to the durable store; each one is deleted when
// its job reaches a terminal state.
type SecretVault struct {
	mu      sync.RWMutex
	secrets map[uuid.UUID]string
}

func NewSecretVault() *SecretVault {
	return &SecretVault{secrets: make(map[uuid.UUID]string)}
}

func (v *SecretVault) Put(id uuid.UUID, secret string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[id] = secret
}

func (v *SecretVault) Get(id uuid.UUID) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.secrets[id]
	return s, ok
}

func (v *SecretVault) Delete(id uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.secrets, id)
}
