package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

func newTokenServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOAuthProviderRefreshesAndCaches(t *testing.T) {
	t.Parallel()

	srv, calls := newTokenServer(t, http.StatusOK,
		`{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`)
	p := NewOAuthProvider(OAuthConfig{
		ClientID:      "client",
		ClientSecret:  "secret",
		RefreshTokens: map[string]string{gsc.ServiceSearchConsole: "refresh-1"},
		TokenURL:      srv.URL,
	})

	tok, err := p.Token(context.Background(), gsc.ServiceSearchConsole)
	require.NoError(t, err)
	require.Equal(t, "access-1", tok)

	tok, err = p.Token(context.Background(), gsc.ServiceSearchConsole)
	require.NoError(t, err)
	require.Equal(t, "access-1", tok)
	require.Equal(t, int64(1), calls.Load())
}

func TestOAuthProviderRefreshFailureIsNoValidToken(t *testing.T) {
	t.Parallel()

	srv, _ := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	p := NewOAuthProvider(OAuthConfig{
		RefreshTokens: map[string]string{gsc.ServiceIndexing: "revoked"},
		TokenURL:      srv.URL,
	})

	_, err := p.Token(context.Background(), gsc.ServiceIndexing)
	require.ErrorIs(t, err, gsc.ErrNoValidToken)
}

func TestOAuthProviderRefreshTimesOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	p := NewOAuthProvider(OAuthConfig{
		RefreshTokens: map[string]string{gsc.ServiceSearchConsole: "refresh-1"},
		TokenURL:      srv.URL,
		Timeout:       50 * time.Millisecond,
	})

	start := time.Now()
	_, err := p.Token(context.Background(), gsc.ServiceSearchConsole)
	require.ErrorIs(t, err, gsc.ErrNoValidToken)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestNewOAuthProviderDefaultsHTTPClient(t *testing.T) {
	t.Parallel()

	p := NewOAuthProvider(OAuthConfig{})
	require.NotNil(t, p.cfg.HTTPClient)
	require.Equal(t, DefaultTokenTimeout, p.cfg.HTTPClient.Timeout)

	custom := &http.Client{}
	p = NewOAuthProvider(OAuthConfig{HTTPClient: custom, Timeout: time.Second})
	require.Same(t, custom, p.cfg.HTTPClient)
}

func TestOAuthProviderMissingRefreshToken(t *testing.T) {
	t.Parallel()

	p := NewOAuthProvider(OAuthConfig{TokenURL: "http://127.0.0.1:1"})
	_, err := p.Token(context.Background(), gsc.ServiceSearchConsole)
	require.ErrorIs(t, err, gsc.ErrNoValidToken)
}

func TestOAuthProviderCanceledContext(t *testing.T) {
	t.Parallel()

	p := NewOAuthProvider(OAuthConfig{RefreshTokens: map[string]string{"x": "y"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Token(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	s := Static{gsc.ServiceSearchConsole: "tok"}
	tok, err := s.Token(context.Background(), gsc.ServiceSearchConsole)
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	_, err = s.Token(context.Background(), gsc.ServiceIndexing)
	require.ErrorIs(t, err, gsc.ErrNoValidToken)
}
