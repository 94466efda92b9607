package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const clientSecret = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"s3cret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestReadClientSecret(t *testing.T) {
	b, err := ReadClientSecret(clientSecret, "")
	require.NoError(t, err)
	assert.Equal(t, clientSecret, string(b))

	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(clientSecret), 0o600))
	b, err = ReadClientSecret("", path)
	require.NoError(t, err)
	assert.Equal(t, clientSecret, string(b))

	_, err = ReadClientSecret("", "")
	assert.ErrorContains(t, err, "GOOGLE_OAUTH_CLIENT_JSON")
}

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(clientSecret), "http://localhost:8085/callback")
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, "http://localhost:8085/callback", cfg.RedirectURL)
	assert.Contains(t, cfg.AuthCodeURL("state", oauth2.AccessTypeOffline), "access_type=offline")

	_, err = OAuthConfig([]byte(`{}`), "")
	assert.Error(t, err)
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", got.RefreshToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err = LoadToken(path)
	assert.ErrorContains(t, err, "holds no token")
}

func TestNew_WithUserToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenPath, &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}))

	c, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet",
		OAuthClientJSON: clientSecret,
		OAuthTokenFile:  tokenPath,
	})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(context.Background(), Config{SpreadsheetID: "sheet", OAuthTokenFile: tokenPath})
	assert.ErrorContains(t, err, "missing OAuth client")

	_, err = New(context.Background(), Config{SpreadsheetID: "sheet", OAuthClientJSON: clientSecret, OAuthTokenFile: filepath.Join(dir, "missing.json")})
	assert.ErrorContains(t, err, "read token file")
}
