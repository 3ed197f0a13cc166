package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

var errUnreachable = errors.New("unreachable")

type stubPayment struct {
	m   model.PaymentMetrics
	err error
}

func (s *stubPayment) FetchPaymentMetrics(context.Context, time.Duration) (model.PaymentMetrics, error) {
	return s.m, s.err
}

type stubSystem struct {
	m   model.SystemMetrics
	err error
}

func (s *stubSystem) FetchSystemMetrics(context.Context) (model.SystemMetrics, error) {
	return s.m, s.err
}

type stubSecurity struct {
	m   model.SecurityMetrics
	err error
}

func (s *stubSecurity) FetchSecurityMetrics(context.Context, time.Duration) (model.SecurityMetrics, error) {
	return s.m, s.err
}

type stubBusiness struct {
	m   model.BusinessMetrics
	err error
}

func (s *stubBusiness) FetchBusinessMetrics(context.Context, time.Duration) (model.BusinessMetrics, error) {
	return s.m, s.err
}

func TestSnapshotAllHealthy(t *testing.T) {
	r := NewRegistry(
		&stubPayment{m: model.PaymentMetrics{SuccessRate: 98.5}},
		&stubSystem{m: model.SystemMetrics{CPUPct: 40}},
		&stubSecurity{m: model.SecurityMetrics{FraudAttempts: 2}},
		&stubBusiness{m: model.BusinessMetrics{Revenue: 1200}},
		time.Second, zap.NewNop())

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	snap, failed, err := r.Snapshot(context.Background(), now, 15*time.Second)
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.Equal(t, now, snap.Timestamp)
	assert.Equal(t, 98.5, snap.Payment.SuccessRate)
	assert.Equal(t, 40.0, snap.System.CPUPct)
	assert.Nil(t, snap.Stale)

	for _, h := range r.Health() {
		assert.True(t, h.Healthy, string(h.Domain))
		assert.Equal(t, now, h.LastSuccess)
	}
}

func TestSnapshotPartialFailureCarriesLastGood(t *testing.T) {
	pay := &stubPayment{m: model.PaymentMetrics{SuccessRate: 97, TotalTx: 50}}
	r := NewRegistry(pay, &stubSystem{}, &stubSecurity{}, &stubBusiness{},
		time.Second, zap.NewNop())

	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := r.Snapshot(ctx, now, 15*time.Second)
	require.NoError(t, err)

	pay.err = errUnreachable
	snap, failed, err := r.Snapshot(ctx, now.Add(15*time.Second), 15*time.Second)
	require.NoError(t, err, "one failed domain does not reject the snapshot")
	assert.Equal(t, 1, failed)
	assert.True(t, snap.IsStale(model.DomainPayment))
	assert.Equal(t, 97.0, snap.Payment.SuccessRate, "last good values carried over")

	var payHealth model.DomainHealth
	for _, h := range r.Health() {
		if h.Domain == model.DomainPayment {
			payHealth = h
		}
	}
	assert.False(t, payHealth.Healthy)
	assert.Equal(t, errUnreachable.Error(), payHealth.LastError)
	assert.Equal(t, now, payHealth.LastSuccess, "last success unchanged by failure")
}

func TestSnapshotNeverGoodStaysZero(t *testing.T) {
	r := NewRegistry(&stubPayment{err: errUnreachable}, &stubSystem{},
		&stubSecurity{}, &stubBusiness{}, time.Second, zap.NewNop())

	snap, failed, err := r.Snapshot(context.Background(), time.Now(), 15*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.True(t, snap.IsStale(model.DomainPayment))
	assert.Zero(t, snap.Payment.SuccessRate, "no last good value to carry")
}

func TestSnapshotAllFailed(t *testing.T) {
	r := NewRegistry(
		&stubPayment{err: errUnreachable},
		&stubSystem{err: errUnreachable},
		&stubSecurity{err: errUnreachable},
		&stubBusiness{err: errUnreachable},
		time.Second, zap.NewNop())

	_, failed, err := r.Snapshot(context.Background(), time.Now(), 15*time.Second)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, len(model.Domains), failed)
}

func TestSnapshotNilSourceIsNotConfigured(t *testing.T) {
	r := NewRegistry(nil, &stubSystem{m: model.SystemMetrics{CPUPct: 10}},
		nil, nil, time.Second, zap.NewNop())

	snap, failed, err := r.Snapshot(context.Background(), time.Now(), 15*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, failed)
	assert.True(t, snap.IsStale(model.DomainPayment))
	assert.False(t, snap.IsStale(model.DomainSystem))
}
