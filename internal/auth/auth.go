// Package auth persists the API credential used for mutating requests.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/idilsaglam/tada-sync/internal/store/jsonstore"
)

const (
	credFileName = "credentials.json"

	// EnvToken overrides the credential file when set.
	EnvToken = "TADA_TOKEN"

	SourceEnv  = "env"
	SourceFile = "file"
)

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional, taken from a JWT exp claim
}

// Store reads and writes the credential file under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

// DefaultStore uses ~/.tada.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	return NewStore(filepath.Join(home, ".tada")), nil
}

func (s *Store) path() string { return filepath.Join(s.dir, credFileName) }

// Get returns the active credential, or nil when not logged in.
func (s *Store) Get() (*TokenInfo, error) {
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return &TokenInfo{Token: StripBearer(env), Source: SourceEnv}, nil
	}
	var ti TokenInfo
	found, err := jsonstore.Load(s.path(), &ti)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	if !found {
		return nil, nil
	}
	ti.Token = StripBearer(ti.Token)
	if ti.Token == "" {
		return nil, nil
	}
	return &ti, nil
}

// Key returns the active credential string, "" when none.
func (s *Store) Key() string {
	ti, err := s.Get()
	if err != nil || ti == nil {
		return ""
	}
	return ti.Token
}

// Set saves token owner-only. The expiry is read from the token when it is
// a JWT carrying exp.
func (s *Store) Set(token string) error {
	token = StripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	ti := TokenInfo{
		Token:     token,
		Source:    SourceFile,
		CreatedAt: time.Now(),
		ExpiresAt: expiry(token),
	}
	return jsonstore.Save(s.path(), ti, 0o600)
}

func (s *Store) Delete() error { return jsonstore.Remove(s.path()) }

func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}

// Claims decodes a JWT payload locally without checking its signature.
// ok is false for opaque tokens.
func Claims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func expiry(token string) *time.Time {
	claims, ok := Claims(token)
	if !ok {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
