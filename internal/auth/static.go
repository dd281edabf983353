package auth

import (
	"context"
	"fmt"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// Static serves fixed access tokens, for development against fakes.
type Static map[string]string

var _ gsc.TokenProvider = Static(nil)

// Token returns the configured token or gsc.ErrNoValidToken.
func (s Static) Token(_ context.Context, service string) (string, error) {
	tok, ok := s[service]
	if !ok || tok == "" {
		return "", fmt.Errorf("%w: no static token for %s", gsc.ErrNoValidToken, service)
	}
	return tok, nil
}
