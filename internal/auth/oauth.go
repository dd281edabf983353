// Package auth supplies access tokens for the Google APIs the engine calls.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// Scopes required per service.
var serviceScopes = map[string][]string{
	gsc.ServiceSearchConsole: {"https://www.googleapis.com/auth/webmasters"},
	gsc.ServiceIndexing:      {"https://www.googleapis.com/auth/indexing"},
}

// OAuthConfig holds the client credentials and one stored refresh token per
// service. Obtaining the refresh tokens (the consent flow) happens elsewhere.
type OAuthConfig struct {
	ClientID      string
	ClientSecret  string
	RefreshTokens map[string]string
	// TokenURL overrides the Google token endpoint, mainly for tests.
	TokenURL string
	// Timeout bounds each refresh call when HTTPClient is nil.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DefaultTokenTimeout applies when OAuthConfig.Timeout is zero.
const DefaultTokenTimeout = 30 * time.Second

// OAuthProvider refreshes and caches access tokens through x/oauth2.
type OAuthProvider struct {
	mu       sync.Mutex
	cfg      OAuthConfig
	endpoint oauth2.Endpoint
	sources  map[string]oauth2.TokenSource
}

var _ gsc.TokenProvider = (*OAuthProvider)(nil)

// NewOAuthProvider creates an OAuthProvider.
func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTokenTimeout
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OAuthProvider{
		cfg:      cfg,
		endpoint: endpoint,
		sources:  make(map[string]oauth2.TokenSource),
	}
}

// Token returns a valid access token for service. Any failure wraps
// gsc.ErrNoValidToken.
func (p *OAuthProvider) Token(ctx context.Context, service string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("token %s: %w", service, err)
	}
	src, err := p.source(service)
	if err != nil {
		return "", err
	}
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: refresh %s token: %v", gsc.ErrNoValidToken, service, err)
	}
	if !tok.Valid() || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: %s token is not valid", gsc.ErrNoValidToken, service)
	}
	return tok.AccessToken, nil
}

func (p *OAuthProvider) source(service string) (oauth2.TokenSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if src, ok := p.sources[service]; ok {
		return src, nil
	}
	refresh := p.cfg.RefreshTokens[service]
	if refresh == "" {
		return nil, fmt.Errorf("%w: no refresh token configured for %s", gsc.ErrNoValidToken, service)
	}
	conf := &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint:     p.endpoint,
		Scopes:       serviceScopes[service],
	}
	// The source outlives any single request, so it gets its own context.
	base := context.WithValue(context.Background(), oauth2.HTTPClient, p.cfg.HTTPClient)
	src := oauth2.ReuseTokenSource(nil, conf.TokenSource(base, &oauth2.Token{RefreshToken: refresh}))
	p.sources[service] = src
	return src, nil
}
