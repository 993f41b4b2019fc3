package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Tiliavir/shiftcheck/internal/config"
)

// Application permissions are granted in the app registration, so the
// client-credentials flow only asks for .default.
var applicationScopes = []string{"https://graph.microsoft.com/.default"}

var delegatedScopes = []string{
	"https://graph.microsoft.com/Schedule.Read.All",
	"https://graph.microsoft.com/User.ReadBasic.All",
	"offline_access",
}

func msEndpoint(tenantID, path string) string {
	return "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/" + path
}

// tokenFilePath returns the path to the stored delegated token file.
func tokenFilePath(dataDir string) string {
	return filepath.Join(dataDir, "auth", "msgraph_tokens.json")
}

// oauth2Config returns the device code oauth2.Config for Microsoft Graph.
func oauth2Config(tenantID, clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   delegatedScopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: msEndpoint(tenantID, "devicecode"),
			TokenURL:      msEndpoint(tenantID, "token"),
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// loadToken loads a previously saved token from disk. A missing file yields (nil, nil).
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", path, err)
	}
	return &tok, nil
}

// saveToken persists a token to disk.
func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// savingTokenSource wraps a TokenSource and persists refreshed tokens.
type savingTokenSource struct {
	ts     oauth2.TokenSource
	path   string
	logger *zap.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	if err := saveToken(s.path, tok); err != nil {
		s.logger.Warn("could not save refreshed token", zap.Error(err))
	}
	return tok, nil
}

// HTTPClient returns an authenticated HTTP client for Microsoft Graph.
//
// With a client secret configured it uses the client-credentials flow.
// Otherwise it loads the saved delegated token from dataDir, refreshing it
// when needed, and falls back to an interactive device code login.
func HTTPClient(ctx context.Context, cfg config.GraphConfig, dataDir string, logger *zap.Logger) (*http.Client, error) {
	if cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     msEndpoint(cfg.TenantID, "token"),
			Scopes:       applicationScopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		return cc.Client(ctx), nil
	}

	oc := oauth2Config(cfg.TenantID, cfg.ClientID)
	path := tokenFilePath(dataDir)

	tok, err := loadToken(path)
	if err != nil {
		// Corrupt token: warn and re-auth.
		logger.Warn("ignoring stored token", zap.Error(err))
		tok = nil
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		tok, err = deviceLogin(ctx, oc)
		if err != nil {
			return nil, err
		}
		if err := saveToken(path, tok); err != nil {
			logger.Warn("could not save token", zap.Error(err))
		}
	}

	ts := &savingTokenSource{ts: oc.TokenSource(ctx, tok), path: path, logger: logger}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

func deviceLogin(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	resp, err := oc.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(os.Stderr, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(os.Stderr, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(os.Stderr)

	tok, err := oc.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	return tok, nil
}
