package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "contacts"

// ErrNoToken is returned when no auth token is stored for an account.
var ErrNoToken = errors.New("no stored auth token")

// Vault keeps the auth tokens of mail accounts.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault backed by the system keyring, falling back to an
// encrypted file under ~/.config/contacts.
func Open() (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/contacts/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("contacts-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewVault(ring), nil
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// TokenKey is the keyring key of an account's auth token.
func TokenKey(username string) string {
	return "auth-" + username
}

// Token returns the stored auth token of username.
func (v *Vault) Token(username string) (string, error) {
	item, err := v.ring.Get(TokenKey(username))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting token of %q: %w", username, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// SaveToken stores the auth token of username.
func (v *Vault) SaveToken(username, token string) error {
	err := v.ring.Set(keyring.Item{
		Key:         TokenKey(username),
		Data:        []byte(token),
		Label:       "Contacts auth token",
		Description: username,
	})
	if err != nil {
		return fmt.Errorf("setting token of %q: %w", username, err)
	}
	return nil
}

// Forget removes the auth token of username. Forgetting an unknown
// account is not an error.
func (v *Vault) Forget(username string) error {
	err := v.ring.Remove(TokenKey(username))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting token of %q: %w", username, err)
	}
	return nil
}
