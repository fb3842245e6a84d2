package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session is what the CLI remembers about the signed-in user.
type Session struct {
	API         string `json:"api"`
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Credentials stores the complete auth credentials.
type Credentials struct {
	Session   Session `json:"session"`
	CreatedAt int64   `json:"created_at"`
}

// Manager handles the credentials file.
type Manager struct {
	configDir   string
	credentials *Credentials
	mu          sync.RWMutex
}

// NewManager creates a manager rooted at ~/.config/listsync.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(homeDir, ".config", "listsync"))
}

// NewManagerAt creates a manager storing credentials under configDir.
func NewManagerAt(configDir string) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configDir: configDir}

	// A missing or corrupt file just means signed out.
	_ = m.loadCredentials()

	return m, nil
}

// IsAuthenticated checks whether a stored token is still usable.
func (m *Manager) IsAuthenticated(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.credentials == nil {
		return false
	}

	// Treat tokens within five minutes of expiry as expired.
	expiresAt := time.Unix(m.credentials.Session.ExpiresAt, 0)
	return now.Before(expiresAt.Add(-5 * time.Minute))
}

// GetSession returns the stored session, or nil when signed out.
func (m *Manager) GetSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.credentials == nil {
		return nil
	}
	session := m.credentials.Session
	return &session
}

// Login records a token issued by `listsync user add` together with the API
// it is meant for. The signature is checked by the daemon, not here.
func (m *Manager) Login(api, token string, now time.Time) (*Session, error) {
	claims, err := PeekClaims(token)
	if err != nil {
		return nil, err
	}

	session := Session{
		API:         api,
		AccessToken: token,
		UserID:      claims.UserID,
		Email:       claims.Email,
		ExpiresAt:   claims.ExpiresAt,
	}

	m.mu.Lock()
	m.credentials = &Credentials{Session: session, CreatedAt: now.Unix()}
	m.mu.Unlock()

	if err := m.saveCredentials(); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return &session, nil
}

// Logout clears the current session.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.credentials = nil
	m.mu.Unlock()

	if err := os.Remove(m.credentialsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

func (m *Manager) credentialsPath() string {
	return filepath.Join(m.configDir, "credentials.json")
}

func (m *Manager) loadCredentials() error {
	data, err := os.ReadFile(m.credentialsPath())
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()

	return nil
}

func (m *Manager) saveCredentials() error {
	m.mu.RLock()
	creds := m.credentials
	m.mu.RUnlock()

	if creds == nil {
		return nil
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.credentialsPath(), data, 0600)
}

// PeekClaims decodes a token's payload without checking the signature; the
// client does not hold the signing secret.
func PeekClaims(token string) (Claims, error) {
	parts := splitToken(token)
	if parts == nil {
		return Claims{}, fmt.Errorf("%w: malformed jwt", ErrInvalidToken)
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload encoding", ErrInvalidToken)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: payload", ErrInvalidToken)
	}
	return claims, nil
}
