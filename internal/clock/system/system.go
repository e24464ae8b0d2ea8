// Package system provides a real clock implementation.
package system

import "time"

// Clock implements indexer.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Quota day boundaries are computed
// from UTC dates, so local time never leaks in.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
