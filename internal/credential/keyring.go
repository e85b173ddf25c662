// Package credential stores the IMAP password in the OS keyring so the
// config file does not have to carry it in plain text.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "newsletter"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/newsletter/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("newsletter-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves the stored password for the given account username.
func Get(username string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(username)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", username, err)
	}

	return string(item.Data), nil
}

// Set stores the password for the given account username.
func Set(username, password string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  username,
		Data: []byte(password),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", username, err)
	}

	return nil
}

// Delete removes the stored password for the given account username.
func Delete(username string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(username)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", username, err)
	}

	return nil
}
