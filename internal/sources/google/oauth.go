package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// ReadClientSecret returns the OAuth client secret JSON, inline or from path.
func ReadClientSecret(inline, path string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(path) != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read OAuth client file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
}

// OAuthConfig builds the authorization-code flow for the Sheets scope.
func OAuthConfig(clientSecret []byte, redirectURL string) (*oauth2.Config, error) {
	cfg, err := goauth.ConfigFromJSON(clientSecret, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	cfg.RedirectURL = redirectURL
	return cfg, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", path)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

func userTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	secret, err := ReadClientSecret(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	oc, err := OAuthConfig(secret, "")
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.OAuthTokenFile)
	if err != nil {
		return nil, err
	}
	return oc.TokenSource(ctx, tok), nil
}
