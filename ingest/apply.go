package ingest

import (
	"fmt"
	"sync"
)

// StateApplier validates an envelope against externally-owned ingestion
// state. An error means the submission is rejected before any mailbox
// activity.
type StateApplier interface {
	Apply(env *Envelope) error
}

// AccountApplier tracks account registrations and per-account nonces. It is
// the node's default ingestion state: duplicate registrations and stale
// nonces never reach the actor graph.
type AccountApplier struct {
	mu sync.Mutex

	// nonces maps a registered account to its highest applied nonce.
	nonces map[string]uint64
}

// NewAccountApplier creates an applier with no known accounts.
func NewAccountApplier() *AccountApplier {
	return &AccountApplier{
		nonces: make(map[string]uint64),
	}
}

// Apply implements StateApplier.
func (a *AccountApplier) Apply(env *Envelope) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch env.Kind {
	case KindRegister:
		if _, exists := a.nonces[env.Account]; exists {
			return fmt.Errorf("account %q is already registered", env.Account)
		}
		a.nonces[env.Account] = env.Nonce
		return nil

	case KindTransfer:
		last, exists := a.nonces[env.Account]
		if !exists {
			return fmt.Errorf("account %q is not registered", env.Account)
		}
		if env.Nonce <= last {
			return fmt.Errorf("stale nonce %d for account %q (last %d)", env.Nonce, env.Account, last)
		}
		a.nonces[env.Account] = env.Nonce
		return nil

	default:
		return fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
}

// Registered reports whether the account has been registered.
func (a *AccountApplier) Registered(account string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists := a.nonces[account]
	return exists
}
