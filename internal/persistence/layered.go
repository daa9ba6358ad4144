package persistence

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/pkg/logger"
)

// Backend is a persistence adapter that can also drop a quote.
type Backend interface {
	quote.Persistence
	Delete(ctx context.Context, key string) error
}

// Layered reads the session cache first and falls back to durable storage,
// warming the cache on a durable hit. Writes go to both; a failure in either
// is reported.
type Layered struct {
	session Backend
	durable Backend
	logg    *logger.Logger
}

func NewLayered(session, durable Backend, logg *logger.Logger) (*Layered, error) {
	if session == nil {
		return nil, fmt.Errorf("session backend required")
	}
	if durable == nil {
		return nil, fmt.Errorf("durable backend required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Layered{session: session, durable: durable, logg: logg}, nil
}

func (l *Layered) Backend() string { return "layered" }

// Durable returns the durable layer when it is a database snapshot store.
func (l *Layered) Durable() (*DB, bool) {
	d, ok := l.durable.(*DB)
	return d, ok
}

func (l *Layered) Load(ctx context.Context, key string) (*quote.State, error) {
	st, sessionErr := l.session.Load(ctx, key)
	if sessionErr == nil && st != nil {
		return st, nil
	}
	if sessionErr != nil {
		l.logg.Warn(l.logg.WithField(ctx, "error", sessionErr.Error()), "quote session cache unavailable, reading durable snapshot")
	}

	st, err := l.durable.Load(ctx, key)
	if err != nil {
		return nil, multierr.Append(sessionErr, err)
	}
	if st != nil && sessionErr == nil {
		if err := l.session.Save(ctx, key, *st); err != nil {
			l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "quote session cache warm failed")
		}
	}
	return st, nil
}

func (l *Layered) Save(ctx context.Context, key string, state quote.State) error {
	return multierr.Combine(
		l.session.Save(ctx, key, state),
		l.durable.Save(ctx, key, state),
	)
}

func (l *Layered) Delete(ctx context.Context, key string) error {
	return multierr.Combine(
		l.session.Delete(ctx, key),
		l.durable.Delete(ctx, key),
	)
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Redis)(nil)
	_ Backend = (*DB)(nil)
	_ Backend = (*Layered)(nil)
)
