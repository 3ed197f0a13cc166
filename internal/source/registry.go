package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

// Registry owns the four domain sources and assembles one snapshot per tick.
// A domain that fails or times out contributes its last successfully observed
// values, flagged stale; the snapshot is only rejected when every domain
// fails. The registry also tracks per-domain health for the health query.
type Registry struct {
	payment  PaymentSource
	system   SystemSource
	security SecuritySource
	business BusinessSource

	timeout time.Duration
	log     *zap.Logger

	mu       sync.RWMutex
	lastGood model.MetricSnapshot
	everGood map[model.MetricDomain]bool
	health   map[model.MetricDomain]*model.DomainHealth
}

// NewRegistry creates a source registry. Any source may be nil; a nil source
// is treated as permanently failing (its domain stays stale/zero).
func NewRegistry(p PaymentSource, s SystemSource, sec SecuritySource, b BusinessSource, timeout time.Duration, log *zap.Logger) *Registry {
	r := &Registry{
		payment:  p,
		system:   s,
		security: sec,
		business: b,
		timeout:  timeout,
		log:      log,
		everGood: make(map[model.MetricDomain]bool),
		health:   make(map[model.MetricDomain]*model.DomainHealth),
	}
	for _, d := range model.Domains {
		r.health[d] = &model.DomainHealth{Domain: d}
	}
	return r
}

// Snapshot fetches all four domains concurrently, each under its own timeout,
// and assembles a snapshot for now. The returned count is the number of
// domains that failed; ErrAllSourcesFailed is returned when all four did.
func (r *Registry) Snapshot(ctx context.Context, now time.Time, window time.Duration) (model.MetricSnapshot, int, error) {
	snap := model.MetricSnapshot{
		Timestamp: now,
		Stale:     make(map[model.MetricDomain]bool),
	}

	errs := make(map[model.MetricDomain]error, len(model.Domains))
	var mu sync.Mutex
	var wg sync.WaitGroup

	fetch := func(d model.MetricDomain, fn func(ctx context.Context) error) {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		err := fn(fctx)
		mu.Lock()
		errs[d] = err
		mu.Unlock()
	}

	wg.Add(len(model.Domains))
	go fetch(model.DomainPayment, func(ctx context.Context) error {
		if r.payment == nil {
			return ErrNotConfigured
		}
		m, err := r.payment.FetchPaymentMetrics(ctx, window)
		if err == nil {
			snap.Payment = m
		}
		return err
	})
	go fetch(model.DomainSystem, func(ctx context.Context) error {
		if r.system == nil {
			return ErrNotConfigured
		}
		m, err := r.system.FetchSystemMetrics(ctx)
		if err == nil {
			snap.System = m
		}
		return err
	})
	go fetch(model.DomainSecurity, func(ctx context.Context) error {
		if r.security == nil {
			return ErrNotConfigured
		}
		m, err := r.security.FetchSecurityMetrics(ctx, window)
		if err == nil {
			snap.Security = m
		}
		return err
	})
	go fetch(model.DomainBusiness, func(ctx context.Context) error {
		if r.business == nil {
			return ErrNotConfigured
		}
		m, err := r.business.FetchBusinessMetrics(ctx, window)
		if err == nil {
			snap.Business = m
		}
		return err
	})
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	failed := 0
	for _, d := range model.Domains {
		h := r.health[d]
		if err := errs[d]; err != nil {
			failed++
			snap.Stale[d] = true
			h.Healthy = false
			h.LastError = err.Error()
			r.log.Warn("domain fetch failed", zap.String("domain", string(d)), zap.Error(err))
			if r.everGood[d] {
				copyDomain(&snap, &r.lastGood, d)
			}
		} else {
			h.Healthy = true
			h.LastError = ""
			h.LastSuccess = now
			r.everGood[d] = true
		}
	}

	if failed == len(model.Domains) {
		return snap, failed, ErrAllSourcesFailed
	}

	// Remember the freshest value per domain for future stale fills.
	for _, d := range model.Domains {
		if !snap.Stale[d] {
			copyDomain(&r.lastGood, &snap, d)
		}
	}
	if len(snap.Stale) == 0 {
		snap.Stale = nil
	}
	return snap, failed, nil
}

// Health returns the current per-domain collection health.
func (r *Registry) Health() []model.DomainHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DomainHealth, 0, len(model.Domains))
	for _, d := range model.Domains {
		out = append(out, *r.health[d])
	}
	return out
}

func copyDomain(dst, src *model.MetricSnapshot, d model.MetricDomain) {
	switch d {
	case model.DomainPayment:
		dst.Payment = src.Payment
	case model.DomainSystem:
		dst.System = src.System
	case model.DomainSecurity:
		dst.Security = src.Security
	case model.DomainBusiness:
		dst.Business = src.Business
	}
}
