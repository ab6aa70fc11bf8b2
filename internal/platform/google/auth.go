package google

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

// Scopes are the OAuth scopes the triage run needs.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	calendar.CalendarEventsScope,
}

// LoadOAuthConfig reads an installed-app client secret file.
func LoadOAuthConfig(fsys afero.Fs, path string, scopes ...string) (*oauth2.Config, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCredentials, path, err)
	}
	cfg, err := googleoauth.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCredentials, path, err)
	}
	return cfg, nil
}

// Authenticator produces authorized HTTP clients, caching the token on disk.
type Authenticator struct {
	config    *oauth2.Config
	tokenPath string
	fs        afero.Fs
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger
}

// NewAuthenticator returns an authenticator for config. The consent prompt is
// written to out and the authorization code is read from in.
func NewAuthenticator(
	config *oauth2.Config,
	fsys afero.Fs,
	tokenPath string,
	in io.Reader,
	out io.Writer,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		config:    config,
		tokenPath: tokenPath,
		fs:        fsys,
		in:        in,
		out:       out,
		logger:    logger.With("component", "google_auth"),
	}
}

// Client returns an HTTP client that authorizes requests, prompting for
// consent when no cached token exists.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.loadToken()
	switch {
	case err == nil:
		a.logger.DebugContext(ctx, "using cached token", "path", a.tokenPath)
	case errors.Is(err, fs.ErrNotExist):
		tok, err = a.authorize(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.saveToken(tok); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	src := &persistingTokenSource{
		base: a.config.TokenSource(ctx, tok),
		last: tok.AccessToken,
		save: a.saveToken,
		log:  a.logger,
	}
	return oauth2.NewClient(ctx, src), nil
}

// authorize runs the console consent flow.
func (a *Authenticator) authorize(ctx context.Context) (*oauth2.Token, error) {
	url := a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	if _, err := fmt.Fprintf(a.out,
		"Open the following link in your browser, then type the authorization code:\n%s\n", url); err != nil {
		return nil, fmt.Errorf("%w: write prompt: %v", ErrAuthorization, err)
	}

	code, err := bufio.NewReader(a.in).ReadString('\n')
	code = strings.TrimSpace(code)
	if code == "" {
		if err == nil {
			err = errors.New("empty code")
		}
		return nil, fmt.Errorf("%w: read authorization code: %v", ErrAuthorization, err)
	}

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", ErrAuthorization, err)
	}
	a.logger.InfoContext(ctx, "authorized google account")
	return tok, nil
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	b, err := afero.ReadFile(a.fs, a.tokenPath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("%w: decode token %s: %v", ErrCredentials, a.tokenPath, err)
	}
	return &tok, nil
}

func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	if dir := filepath.Dir(a.tokenPath); dir != "" {
		if err := a.fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := afero.WriteFile(a.fs, a.tokenPath, b, 0o600); err != nil {
		return fmt.Errorf("write token %s: %w", a.tokenPath, err)
	}
	return nil
}

// persistingTokenSource writes refreshed tokens back to the cache.
type persistingTokenSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token) error
	log  *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.save(tok); err != nil {
			s.log.Warn("failed to cache refreshed token", "error", err)
		}
	}
	return tok, nil
}
