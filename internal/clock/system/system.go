// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

var _ gsc.Clock = Clock{}

// Clock implements gsc.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
