// Package view holds helpers shared by the per-session view services.
package view

import (
	"errors"
	"sync/atomic"
)

// ErrSuperseded is returned when a response arrives after a newer request of
// the same view was issued; the response is dropped.
var ErrSuperseded = errors.New("superseded by a newer request")

// Generation numbers requests so that only the latest response is applied.
type Generation struct {
	n atomic.Uint64
}

// Next starts a new request and returns its number.
func (g *Generation) Next() uint64 {
	return g.n.Add(1)
}

// IsCurrent reports whether no request was started after gen.
func (g *Generation) IsCurrent(gen uint64) bool {
	return g.n.Load() == gen
}
