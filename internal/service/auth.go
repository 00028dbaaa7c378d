package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const sessionTTL = 24 * time.Hour

// Auth validates editor TOTP codes and tracks the resulting session
// tokens in memory. Disabled auth accepts everything.
type Auth struct {
	logger     *zap.Logger
	enabled    bool
	totpSecret string

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewAuth(enabled bool, totpSecret string, logger *zap.Logger) *Auth {
	return &Auth{
		logger:     logger,
		enabled:    enabled && totpSecret != "",
		totpSecret: totpSecret,
		sessions:   make(map[string]time.Time),
	}
}

func (a *Auth) Enabled() bool { return a.enabled }

// GenerateSecret creates a fresh TOTP secret for initial setup.
func (a *Auth) GenerateSecret(issuer, account string) (secret, otpURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Login validates a TOTP code and returns a session token.
func (a *Auth) Login(code string) (string, error) {
	if !a.enabled {
		return "", fmt.Errorf("auth is disabled")
	}
	if !totp.Validate(code, a.totpSecret) {
		a.logger.Warn("TOTP validation failed")
		return "", fmt.Errorf("invalid code")
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	a.mu.Lock()
	a.sessions[token] = time.Now().Add(sessionTTL)
	a.mu.Unlock()

	a.logger.Info("Editor session created")
	return token, nil
}

// ValidSession reports whether the token identifies a live session.
// With auth disabled every request passes.
func (a *Auth) ValidSession(token string) bool {
	if !a.enabled {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.sessions, token)
		return false
	}
	return true
}

// Logout drops the session.
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}
