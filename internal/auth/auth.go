// Package auth provides Google OAuth2 authentication for the Gmail
// mailbox adapter.
//
// It reads credentials.json and token.json in the same layout the
// Python google-auth library writes, so existing tokens keep working.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes covers fetching messages and mutating labels.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
}

// storedToken is the token.json format used by Python's google-auth.
type storedToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// NewGmailService returns an authenticated Gmail API service.
// credentialsPath points at credentials.json; token.json is expected
// next to it.
func NewGmailService(ctx context.Context, credentialsPath string) (*gmail.Service, error) {
	client, err := newClient(ctx, credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

func newClient(ctx context.Context, credentialsPath string) (*http.Client, error) {
	config, err := loadConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	tokenPath := filepath.Join(filepath.Dir(credentialsPath), "token.json")
	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token from %s (run 'mailsift auth' first): %w", tokenPath, err)
	}

	ts := config.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	// Persist a refreshed access token so the next run skips the refresh.
	if fresh.AccessToken != token.AccessToken {
		if saveErr := saveToken(tokenPath, fresh, config); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// Authorize runs the manual console OAuth flow: prints the consent URL,
// reads the pasted authorization code, exchanges it, and writes
// token.json next to the credentials file.
func Authorize(ctx context.Context, credentialsPath string, readCode func(authURL string) (string, error)) error {
	config, err := loadConfig(credentialsPath)
	if err != nil {
		return err
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := readCode(authURL)
	if err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(credentialsPath), "token.json")
	return saveToken(tokenPath, token, config)
}

func loadConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}
	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

func loadToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	// Python writes ISO 8601 with microseconds.
	var expiry time.Time
	if st.Expiry != "" {
		for _, layout := range []string{
			"2006-01-02T15:04:05.999999Z",
			"2006-01-02T15:04:05Z",
			time.RFC3339,
			time.RFC3339Nano,
		} {
			if t, err := time.Parse(layout, st.Expiry); err == nil {
				expiry = t
				break
			}
		}
	}

	return &oauth2.Token{
		AccessToken:  st.Token,
		RefreshToken: st.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}

func saveToken(tokenPath string, token *oauth2.Token, config *oauth2.Config) error {
	st := storedToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       Scopes,
		Expiry:       token.Expiry.UTC().Format("2006-01-02T15:04:05.999999Z"),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0o600)
}
