// Package credential resolves the Jira API token from configuration or the
// operating system keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/99designs/keyring"

	"github.com/pitabwire/jiramcp/internal/config"
)

// ErrNoToken is returned when neither the environment nor the keyring hold
// a token.
var ErrNoToken = errors.New("JIRA_API_TOKEN environment variable is required")

// filePasswordEnv names the variable holding the password of the encrypted
// file backend.
const filePasswordEnv = "JIRA_MCP_KEYRING_PASSWORD"

// Source looks up API tokens. The keyring is opened on first use.
type Source struct {
	cfg config.KeyringConfig

	once sync.Once
	open func() (keyring.Keyring, error)
	ring keyring.Keyring
	err  error
}

// NewSource creates a Source backed by the OS keyring described by cfg.
func NewSource(cfg config.KeyringConfig) *Source {
	s := &Source{cfg: cfg}
	s.open = func() (keyring.Keyring, error) { return openKeyring(cfg) }
	return s
}

// NewSourceWithKeyring creates a Source over an already opened keyring.
func NewSourceWithKeyring(cfg config.KeyringConfig, ring keyring.Keyring) *Source {
	return &Source{
		cfg:  cfg,
		open: func() (keyring.Keyring, error) { return ring, nil },
	}
}

// AccountKey is the keyring item key for an account on a Jira site.
func AccountKey(email, domain string) string {
	return email + "@" + domain
}

// Resolve returns the configured token, falling back to the keyring entry
// for the account. A disabled keyring only consults configuration.
func (s *Source) Resolve(cfg config.JiraConfig) (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}
	if !s.cfg.Enabled {
		return "", ErrNoToken
	}

	ring, err := s.keyring()
	if err != nil {
		return "", fmt.Errorf("%w (keyring unavailable: %v)", ErrNoToken, err)
	}
	item, err := ring.Get(AccountKey(cfg.Email, cfg.Domain))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential for %s: %w", cfg.Email, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// Store saves a token for the account.
func (s *Source) Store(email, domain, token string) error {
	ring, err := s.keyring()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:         AccountKey(email, domain),
		Data:        []byte(token),
		Label:       "Jira API token for " + domain,
		Description: "jira-mcp",
	})
	if err != nil {
		return fmt.Errorf("setting credential for %s: %w", email, err)
	}
	return nil
}

// Remove deletes the token for the account. Removing a missing token is
// not an error.
func (s *Source) Remove(email, domain string) error {
	ring, err := s.keyring()
	if err != nil {
		return err
	}
	err = ring.Remove(AccountKey(email, domain))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !os.IsNotExist(err) {
		return fmt.Errorf("deleting credential for %s: %w", email, err)
	}
	return nil
}

func (s *Source) keyring() (keyring.Keyring, error) {
	s.once.Do(func() {
		s.ring, s.err = s.open()
	})
	return s.ring, s.err
}

func openKeyring(cfg config.KeyringConfig) (keyring.Keyring, error) {
	service := cfg.ServiceName
	if service == "" {
		service = "jira-mcp"
	}
	fileDir := cfg.FileDir
	if fileDir == "" {
		fileDir = "~/.config/jira-mcp/credentials"
	}

	var backends []keyring.BackendType
	for _, b := range cfg.Backends {
		backends = append(backends, keyring.BackendType(b))
	}

	password := os.Getenv(filePasswordEnv)
	if password == "" {
		password = service + "-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              service,
		AllowedBackends:          backends,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}
