package spotify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"playlistgen/internal/core"
)

// Scopes requested for playlist generation and cover upload.
var Scopes = []string{
	spotifyauth.ScopeImageUpload,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopeUserLibraryModify,
	spotifyauth.ScopeUserLibraryRead,
}

// Authenticator runs the authorization-code flow and builds per-user clients.
type Authenticator struct {
	auth    *spotifyauth.Authenticator
	logger  *zap.Logger
	options []spotify.ClientOption
}

func NewAuthenticator(config *core.SpotifyConfig, logger *zap.Logger, options ...spotify.ClientOption) *Authenticator {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(Scopes...),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Authenticator{
		auth:    auth,
		logger:  logger.Named("auth"),
		options: options,
	}
}

// AuthURL is where the user grants access; state comes back on the callback.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state)
}

// Exchange validates the callback request against state and trades its code for a token.
func (a *Authenticator) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		return nil, fmt.Errorf("authorization denied: %s", errMsg)
	}

	token, err := a.auth.Token(ctx, state, r)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return token, nil
}

// ConsoleLogin prints the authorization URL and reads back either the code or
// the full redirect URL the browser landed on.
func (a *Authenticator) ConsoleLogin(ctx context.Context, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	const state = "playlistgen-cli"

	fmt.Fprintf(out, "Please visit the following URL to authorize the application:\n%s\n", a.auth.AuthURL(state))
	fmt.Fprint(out, "Enter the authorization code or redirect URL: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}
		return nil, errors.New("failed to read authorization code: no input")
	}

	code, err := parseCode(scanner.Text(), state)
	if err != nil {
		return nil, err
	}

	token, err := a.auth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	a.logger.Info("OAuth flow completed successfully")
	return token, nil
}

// Client builds an API client that refreshes token as needed.
func (a *Authenticator) Client(ctx context.Context, token *oauth2.Token) *Client {
	api := spotify.New(a.auth.Client(ctx, token), a.options...)
	return NewClient(api, a.logger)
}

func parseCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is empty")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	redirect, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	query := redirect.Query()
	if got := query.Get("state"); got != "" && got != state {
		return "", errors.New("redirect URL state mismatch")
	}
	if errMsg := query.Get("error"); errMsg != "" {
		return "", fmt.Errorf("authorization denied: %s", errMsg)
	}
	code := query.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}
