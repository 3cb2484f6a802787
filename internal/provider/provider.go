// Package provider defines the contract one upstream music source has to
// fulfil, plus the registry the orchestrator walks during fallback.
// Each sub-package implements Client for a specific upstream.
package provider

import (
	"context"

	"radiobot/internal/media"
)

// Client wraps one upstream search+fetch protocol.
type Client interface {
	// Source identifies the upstream this client serves.
	Source() media.Source

	// Search re-issues the upstream query on every call and returns an
	// ordered, finite candidate list. An empty result is reported as a
	// not-found failure, never as (nil, nil).
	Search(ctx context.Context, query string, limit int) ([]media.Candidate, error)

	// Fetch materializes a candidate into a local audio file. The returned
	// outcome's file is owned by the caller, which must delete it after use.
	Fetch(ctx context.Context, cand media.Candidate) (media.Outcome, error)
}

// Registry holds the fixed closed set of configured clients.
type Registry struct {
	clients map[media.Source]Client
}

// NewRegistry indexes clients by source.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[media.Source]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Source()] = c
	}
	return r
}

// Get looks up the client for a source.
func (r *Registry) Get(s media.Source) (Client, bool) {
	c, ok := r.clients[s]
	return c, ok
}

// Sources lists the registered sources in the canonical order.
func (r *Registry) Sources() []media.Source {
	var out []media.Source
	for _, s := range media.Sources() {
		if _, ok := r.clients[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
