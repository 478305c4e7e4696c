package spotify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	dirPermission  = 0700
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ErrNoToken means the session has never completed the OAuth flow or logged out.
var ErrNoToken = errors.New("no token for session")

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

// TokenStore keeps one token file per session under dir.
type TokenStore struct {
	dir string
}

func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) Load(session string) (*oauth2.Token, error) {
	path, err := s.path(session)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	if tokenData.Token == nil {
		return nil, ErrNoToken
	}

	return tokenData.Token, nil
}

func (s *TokenStore) Save(session string, token *oauth2.Token) error {
	path, err := s.path(session)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, dirPermission); err != nil {
		return err
	}

	data, err := json.MarshalIndent(TokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, FilePermission)
}

// Delete removes the session's token. Deleting a missing token is not an error.
func (s *TokenStore) Delete(session string) error {
	path, err := s.path(session)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *TokenStore) path(session string) (string, error) {
	if !sessionIDPattern.MatchString(session) {
		return "", fmt.Errorf("invalid session id %q", session)
	}
	return filepath.Join(s.dir, session+".json"), nil
}
