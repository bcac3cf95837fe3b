package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/jwt"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

// FirebaseStore keeps tokens in a Firebase Realtime Database over its REST
// API, authenticated with a Google service account.
type FirebaseStore struct {
	databaseURL string
	client      *http.Client
}

// FirebaseConfig holds the database location and service account identity.
// PrivateKey may carry literal \n sequences, as it does when injected
// through an environment variable.
type FirebaseConfig struct {
	DatabaseURL string
	ClientEmail string
	PrivateKey  string
}

// NewFirebaseStore creates the store. The returned store's HTTP client
// refreshes its Google access token transparently.
func NewFirebaseStore(ctx context.Context, cfg FirebaseConfig) (*FirebaseStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("firebase database URL is required")
	}

	auth := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     firebaseScopes,
		TokenURL:   googleTokenURL,
	}

	return &FirebaseStore{
		databaseURL: strings.TrimRight(cfg.DatabaseURL, "/"),
		client:      auth.Client(ctx),
	}, nil
}

// Get reads the string stored at key.
func (s *FirebaseStore) Get(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.keyURL(key), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	body, err := s.do(req)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}

	var value string
	if err := json.Unmarshal(body, &value); err != nil {
		return "", fmt.Errorf("decoding %s: %w", key, err)
	}
	if value == "" {
		return "", fmt.Errorf("no value stored at %s", key)
	}
	return value, nil
}

// Set writes the string at key, replacing any previous value.
func (s *FirebaseStore) Set(ctx context.Context, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.keyURL(key), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := s.do(req); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *FirebaseStore) keyURL(key string) string {
	return fmt.Sprintf("%s/%s.json", s.databaseURL, key)
}

func (s *FirebaseStore) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
