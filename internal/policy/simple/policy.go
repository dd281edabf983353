// Package simple contains a permissive rate limiter for local development.
package simple

import "github.com/JakeFAU/searchconsole-sync/internal/gsc"

var _ gsc.RateLimiter = (*Policy)(nil)

// Policy grants every call. The remote quota still applies, so this is only
// suitable against fakes or when the remote API enforces limits on its own.
type Policy struct{}

// New creates a new Policy.
func New() *Policy {
	return &Policy{}
}

// TryAcquire always returns true.
func (Policy) TryAcquire(_ string) bool {
	return true
}
