package auth

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringKey = "session_state"

// KeyringStore backs up the session-state JSON to the system keychain, so an
// operator can restore a working login after the file is lost or clobbered.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed session backup store
func NewKeyringStore(service string) (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	if err := keyring.Set(service, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(service, testKey)

	return &KeyringStore{service: service}, nil
}

// Backup stores the raw session-state JSON in the keychain
func (k *KeyringStore) Backup(state *SessionState) error {
	data, err := marshalState(state)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, keyringKey, string(data)); err != nil {
		return fmt.Errorf("failed to store session state in keyring: %w", err)
	}
	return nil
}

// Restore retrieves the session state from the keychain
func (k *KeyringStore) Restore() (*SessionState, error) {
	data, err := keyring.Get(k.service, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrSessionFileMissing
		}
		return nil, fmt.Errorf("failed to retrieve session state from keyring: %w", err)
	}
	return unmarshalState([]byte(data))
}

// Delete removes the backed-up session state from the keychain
func (k *KeyringStore) Delete() error {
	err := keyring.Delete(k.service, keyringKey)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete session state from keyring: %w", err)
	}
	return nil
}
