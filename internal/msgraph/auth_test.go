package msgraph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenRoundTrip(t *testing.T) {
	path := tokenFilePath(t.TempDir())

	tok, err := loadToken(path)
	if err != nil || tok != nil {
		t.Fatalf("loadToken on missing file = %v, %v; want nil, nil", tok, err)
	}

	want := &oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("loadToken: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("loadToken = %+v, want %+v", got, want)
	}
}

func TestLoadTokenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgraph_tokens.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadToken(path); err == nil {
		t.Error("expected error for corrupt token file")
	}
}

func TestOAuth2Config(t *testing.T) {
	cfg := oauth2Config("tenant-1", "client-1")
	if cfg.Endpoint.TokenURL != "https://login.microsoftonline.com/tenant-1/oauth2/v2.0/token" {
		t.Errorf("TokenURL = %q", cfg.Endpoint.TokenURL)
	}
	if cfg.Endpoint.DeviceAuthURL != "https://login.microsoftonline.com/tenant-1/oauth2/v2.0/devicecode" {
		t.Errorf("DeviceAuthURL = %q", cfg.Endpoint.DeviceAuthURL)
	}
}
