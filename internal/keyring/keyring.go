// Package keyring stores the application's secrets in the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitenforcer/internal/constants"
)

var (
	// ErrNotFound is returned when the secret is not in the keyring
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
	ErrUnknownSecret      = errors.New("unknown secret")
)

// Secret names a keyring entry.
type Secret string

const (
	DatabaseConnection Secret = constants.DefaultKeyringUser
	GeminiAPIKey       Secret = "gemini-api-key"
	WalletPrivateKey   Secret = "wallet-private-key"
	TwilioAuthToken    Secret = "twilio-auth-token"
)

var known = map[Secret]bool{
	DatabaseConnection: true,
	GeminiAPIKey:       true,
	WalletPrivateKey:   true,
	TwilioAuthToken:    true,
}

// Secrets lists every secret name, sorted.
func Secrets() []Secret {
	out := make([]Secret, 0, len(known))
	for s := range known {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ParseSecret(name string) (Secret, error) {
	s := Secret(name)
	if !known[s] {
		return "", fmt.Errorf("%w %q (known: %v)", ErrUnknownSecret, name, Secrets())
	}
	return s, nil
}

// Get retrieves a secret. Returns ErrNotFound if it is not stored.
func Get(s Secret) (string, error) {
	v, err := keyring.Get(constants.AppName, string(s))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func Set(s Secret, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", s)
	}
	if err := keyring.Set(constants.AppName, string(s), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", s, err)
	}
	return nil
}

func Delete(s Secret) error {
	err := keyring.Delete(constants.AppName, string(s))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", s, err)
	}
	return nil
}

// Lookup returns the stored secret or "" when it is absent or the keyring
// cannot be reached.
func Lookup(s Secret) string {
	v, err := Get(s)
	if err != nil {
		return ""
	}
	return v
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
