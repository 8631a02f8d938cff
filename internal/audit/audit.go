// Package audit delivers decision records to downstream consumers once the
// gate has answered the platform. Delivery is best-effort: failures are
// logged and counted, never surfaced to the login flow.
package audit

import (
	"context"
	"errors"

	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/logging"
	"lumina/login-gate/internal/metrics"
)

// Sink receives decision records.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec *domain.DecisionRecord) error
}

// Fanout publishes to every configured sink.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over sinks. Nil sinks are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Publish delivers rec to every sink and joins their errors.
func (f *Fanout) Publish(ctx context.Context, rec *domain.DecisionRecord) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Publish(ctx, rec)
		metrics.AuditPublishTotal.WithLabelValues(s.Name(), metrics.Result(err)).Inc()
		if err != nil {
			logging.L(ctx).Warn("audit: delivery failed", "sink", s.Name(), "decision_id", rec.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
