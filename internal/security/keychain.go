// Package security stores the OAuth token in the OS keychain so it never
// has to live in a dotfile.
package security

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeychainService is the service name tokens are filed under.
const KeychainService = "qttwitch"

// StoreToken saves the OAuth token for the given login. An empty token
// deletes the entry instead.
func StoreToken(login, token string) error {
	if token == "" {
		return DeleteToken(login)
	}
	if err := keyring.Set(KeychainService, login, token); err != nil {
		return fmt.Errorf("store token in keychain: %w", err)
	}
	return nil
}

// LoadToken retrieves the OAuth token for the given login. A missing entry
// returns an empty token, not an error.
func LoadToken(login string) (string, error) {
	token, err := keyring.Get(KeychainService, login)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("load token from keychain: %w", err)
	}
	return token, nil
}

// DeleteToken removes the OAuth token for the given login. Missing entries
// are not an error.
func DeleteToken(login string) error {
	if err := keyring.Delete(KeychainService, login); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("delete token from keychain: %w", err)
	}
	return nil
}
