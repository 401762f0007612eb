// Package durability negotiates best-effort protection of stored data against
// eviction by the host. The outcome is advisory and only feeds the storage
// status indicator.
package durability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Status is the outcome of a negotiation.
type Status string

// Negotiation outcomes.
const (
	Granted     Status = "granted"
	Denied      Status = "denied"
	Unsupported Status = "unsupported"
)

// Indicator returns the user-facing label for s.
func (s Status) Indicator() string {
	switch s {
	case Granted:
		return "protected"
	case Denied:
		return "unprotected"
	default:
		return "unsupported"
	}
}

// ErrUnsupported is returned by hosts that expose no eviction control.
var ErrUnsupported = errors.New("durability: not supported by host")

// Host is the platform side of the negotiation.
type Host interface {
	// Persisted reports whether stored data is currently protected.
	Persisted(ctx context.Context) (bool, error)
	// Persist asks for protection and reports whether it was granted.
	Persist(ctx context.Context) (bool, error)
}

// Policy holds the last negotiated status.
type Policy struct {
	host   Host
	logger *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewPolicy creates a policy over host. A nil host always negotiates to
// Unsupported.
func NewPolicy(host Host, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{host: host, logger: logger, status: Unsupported}
}

// Negotiate requests protection and records the resulting status. It never
// fails: host errors degrade to Denied, a missing control to Unsupported.
func (p *Policy) Negotiate(ctx context.Context) Status {
	status := p.negotiate(ctx)

	p.mu.Lock()
	p.status = status
	p.mu.Unlock()

	switch status {
	case Granted:
		p.logger.Info("durability: storage protected against eviction")
	case Denied:
		p.logger.Warn("durability: storage NOT protected, export notes regularly")
	default:
		p.logger.Info("durability: host offers no eviction control")
	}
	return status
}

func (p *Policy) negotiate(ctx context.Context) Status {
	if p.host == nil {
		return Unsupported
	}

	granted, err := p.host.Persist(ctx)
	if errors.Is(err, ErrUnsupported) {
		return Unsupported
	}
	if err != nil {
		p.logger.Warn("durability: persist request failed", slog.String("error", err.Error()))
		granted = false
	}

	// The request may be refused while protection already holds.
	if !granted {
		persisted, err := p.host.Persisted(ctx)
		switch {
		case errors.Is(err, ErrUnsupported):
			return Unsupported
		case err != nil:
			p.logger.Warn("durability: status query failed", slog.String("error", err.Error()))
		default:
			granted = persisted
		}
	}

	if granted {
		return Granted
	}
	return Denied
}

// Status returns the last negotiated status.
func (p *Policy) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
