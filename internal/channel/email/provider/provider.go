// Package provider abstracts the email backends (SES, Resend, SMTP) behind
// one interface with primary/fallback selection.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrNoProvider is returned when no registered provider is configured.
var ErrNoProvider = errors.New("no configured email provider available")

// Request is one email to send.
type Request struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Provider sends email through one backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, req *Request) error
	IsConfigured() bool
}

// Registry holds providers and picks the primary, then fallbacks in order.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallback  []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p, replacing any provider with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// SetPrimary selects the provider tried first.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("email provider %q not registered", name)
	}
	r.primary = name
	return nil
}

// SetFallback sets the providers tried, in order, when the primary fails.
func (r *Registry) SetFallback(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("email provider %q not registered", name)
		}
	}
	r.fallback = slices.Clone(names)
	return nil
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// candidates returns the configured providers in the order they should be tried.
func (r *Registry) candidates() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Provider
	seen := make(map[string]bool)
	add := func(name string) {
		p, ok := r.providers[name]
		if !ok || seen[name] || !p.IsConfigured() {
			return
		}
		seen[name] = true
		out = append(out, p)
	}

	if r.primary != "" {
		add(r.primary)
	}
	for _, name := range r.fallback {
		add(name)
	}
	if len(out) == 0 {
		names := make([]string, 0, len(r.providers))
		for name := range r.providers {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			add(name)
		}
	}
	return out
}

// Send tries the primary provider, then each fallback, until one succeeds.
// The primary's error is returned when all fail.
func (r *Registry) Send(ctx context.Context, req *Request) error {
	providers := r.candidates()
	if len(providers) == 0 {
		return ErrNoProvider
	}

	var firstErr error
	for i, p := range providers {
		err := p.Send(ctx, req)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if i+1 < len(providers) {
			slog.Warn("Email provider failed, trying fallback",
				"provider", p.Name(),
				"fallback", providers[i+1].Name(),
				"error", err,
			)
		}
	}
	return firstErr
}
