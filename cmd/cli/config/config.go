package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL  = "http://localhost:8080"
	tokenFileName  = ".alloc8_token"
	envAPIURL      = "ALLOC8_API_URL"
	envTokenFile   = "ALLOC8_TOKEN_FILE"
	tokenFilePerms = 0o600
)

// ErrNotLoggedIn is returned by ReadToken when no token has been saved.
var ErrNotLoggedIn = errors.New("not logged in: run `alloc8 login` first")

// APIURL returns the base URL for the alloc8 API.
// It can be overridden with the ALLOC8_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv(envAPIURL); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is where the login token is kept. ALLOC8_TOKEN_FILE overrides
// the default of ~/.alloc8_token.
func TokenPath() string {
	if v := os.Getenv(envTokenFile); v != "" {
		return v
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return tokenFileName
	}
	return filepath.Join(dir, tokenFileName)
}

func SaveToken(token string) error {
	return os.WriteFile(TokenPath(), []byte(token), tokenFilePerms)
}

func ReadToken() (string, error) {
	data, err := os.ReadFile(TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// ClearToken removes the saved token. It reports false when there was none.
func ClearToken() (bool, error) {
	err := os.Remove(TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
