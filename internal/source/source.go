// Package source defines the metric-domain collaborators the engine samples
// on every collector tick, and the registry that tracks their health.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/reservly/pulsed/internal/model"
)

var (
	// ErrAllSourcesFailed means no domain produced fresh values this tick.
	ErrAllSourcesFailed = errors.New("all metric sources failed")
	// ErrNotConfigured means a source has no backend to read from.
	ErrNotConfigured = errors.New("source not configured")
)

// PaymentSource supplies transaction counters for a collection window.
type PaymentSource interface {
	FetchPaymentMetrics(ctx context.Context, window time.Duration) (model.PaymentMetrics, error)
}

// SystemSource supplies platform health figures.
type SystemSource interface {
	FetchSystemMetrics(ctx context.Context) (model.SystemMetrics, error)
}

// SecuritySource supplies fraud and abuse counters for a collection window.
type SecuritySource interface {
	FetchSecurityMetrics(ctx context.Context, window time.Duration) (model.SecurityMetrics, error)
}

// BusinessSource supplies revenue and loyalty counters for a collection window.
type BusinessSource interface {
	FetchBusinessMetrics(ctx context.Context, window time.Duration) (model.BusinessMetrics, error)
}
