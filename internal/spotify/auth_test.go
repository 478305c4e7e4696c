package spotify

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"playlistgen/internal/core"
)

func testAuthenticator() *Authenticator {
	return NewAuthenticator(&core.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://127.0.0.1:8080/callback",
	}, zap.NewNop())
}

func TestAuthURL(t *testing.T) {
	raw := testAuthenticator().AuthURL("state-123")

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthURL() is not a URL: %v", err)
	}
	query := parsed.Query()

	if query.Get("state") != "state-123" {
		t.Errorf("state = %s, want state-123", query.Get("state"))
	}
	if query.Get("client_id") != "client-id" {
		t.Errorf("client_id = %s, want client-id", query.Get("client_id"))
	}
	if query.Get("redirect_uri") != "http://127.0.0.1:8080/callback" {
		t.Errorf("redirect_uri = %s", query.Get("redirect_uri"))
	}

	scopes := query.Get("scope")
	for _, scope := range []string{"ugc-image-upload", "playlist-modify-private", "user-library-read"} {
		if !strings.Contains(scopes, scope) {
			t.Errorf("Expected scope %s in %q", scope, scopes)
		}
	}
}

func TestExchange_RejectsDeniedAuthorization(t *testing.T) {
	r := httptest.NewRequest("GET", "/callback?error=access_denied&state=s", nil)

	_, err := testAuthenticator().Exchange(context.Background(), "s", r)
	if err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Errorf("Expected access_denied error, got %v", err)
	}
}

func TestExchange_RejectsStateMismatch(t *testing.T) {
	r := httptest.NewRequest("GET", "/callback?code=abc&state=other", nil)

	if _, err := testAuthenticator().Exchange(context.Background(), "expected", r); err == nil {
		t.Error("Expected a state mismatch error")
	}
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare code", "  abc123\n", "abc123", false},
		{"redirect url", "http://127.0.0.1:8080/callback?code=xyz&state=cli", "xyz", false},
		{"redirect without state", "http://127.0.0.1:8080/callback?code=xyz", "xyz", false},
		{"state mismatch", "http://127.0.0.1:8080/callback?code=xyz&state=evil", "", true},
		{"denied", "http://127.0.0.1:8080/callback?error=access_denied&state=cli", "", true},
		{"no code", "http://127.0.0.1:8080/callback?state=cli", "", true},
		{"empty", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCode(tt.input, "cli")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsoleLogin_NoInput(t *testing.T) {
	var out strings.Builder

	_, err := testAuthenticator().ConsoleLogin(context.Background(), strings.NewReader(""), &out)
	if err == nil {
		t.Error("Expected an error when no code is entered")
	}
	if !strings.Contains(out.String(), "https://accounts.spotify.com/authorize") {
		t.Errorf("Expected the authorization URL to be printed, got %q", out.String())
	}
}
