// Package lookup turns a barcode into a product name by asking an ordered
// chain of external providers.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrNameNotFound is returned when no provider produced a name.
	ErrNameNotFound = errors.New("lookup: product name not found")
	// ErrProviderUnavailable is returned by a provider that answered with a
	// non-2xx status.
	ErrProviderUnavailable = errors.New("lookup: provider unavailable")
)

var providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lookup_provider_calls_total",
	Help: "Barcode lookup provider calls by provider and outcome.",
}, []string{"provider", "outcome"})

// Provider looks up the product name for a barcode. An empty name with a nil
// error means the provider has no record for it.
type Provider interface {
	Name() string
	LookupName(ctx context.Context, barcode string) (string, error)
}

// Resolver asks each provider in order and returns the first non-empty name.
// Provider failures are logged and the next provider is tried.
type Resolver struct {
	logger    *slog.Logger
	providers []Provider
	timeout   time.Duration
}

func NewResolver(logger *slog.Logger, timeout time.Duration, providers ...Provider) *Resolver {
	return &Resolver{
		logger:    logger.With(slog.String("service", "lookup")),
		providers: providers,
		timeout:   timeout,
	}
}

// ResolveName returns the first name any provider knows for barcode. It
// returns ErrNameNotFound when all providers came back empty or failed, and the
// context error when ctx ends before a name is found.
func (r *Resolver) ResolveName(ctx context.Context, barcode string) (string, error) {
	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name, err := r.call(ctx, p, barcode)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			providerCalls.WithLabelValues(p.Name(), "error").Inc()
			r.logger.WarnContext(ctx, "lookup provider failed",
				slog.String("provider", p.Name()),
				slog.String("barcode", barcode),
				slog.Any("error", err),
			)
		case strings.TrimSpace(name) == "":
			providerCalls.WithLabelValues(p.Name(), "empty").Inc()
			r.logger.DebugContext(ctx, "lookup provider has no record",
				slog.String("provider", p.Name()),
				slog.String("barcode", barcode),
			)
		default:
			providerCalls.WithLabelValues(p.Name(), "found").Inc()
			return name, nil
		}
	}

	return "", ErrNameNotFound
}

func (r *Resolver) call(ctx context.Context, p Provider, barcode string) (string, error) {
	if r.timeout <= 0 {
		return p.LookupName(ctx, barcode)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return p.LookupName(callCtx, barcode)
}
