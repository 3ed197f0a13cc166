package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

type breachRecorder struct {
	mu  sync.Mutex
	got []model.Breach
}

func (r *breachRecorder) record(b model.Breach) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, b)
}

func (r *breachRecorder) breaches() []model.Breach {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Breach(nil), r.got...)
}

func TestRetryExhaustionRaisesSelfAlert(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "retry.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close()) // every write fails from here on

	w := NewRetryWriter(db, 2, time.Millisecond, 8, zap.NewNop())
	rec := &breachRecorder{}
	w.SetAlerter(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.SaveSnapshot(model.MetricSnapshot{Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return len(rec.breaches()) == 1
	}, time.Second, 5*time.Millisecond, "exhausted write raises one breach")

	b := rec.breaches()[0]
	assert.Equal(t, "collector.persistence", b.Metric)
	assert.Equal(t, model.DomainSystem, b.Domain)
	assert.Equal(t, model.SeverityHigh, b.Severity)

	cancel()
	w.Wait()
}

func TestRetrySuccessDoesNotAlert(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "retry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w := NewRetryWriter(db, 2, time.Millisecond, 8, zap.NewNop())
	rec := &breachRecorder{}
	w.SetAlerter(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	w.SaveSnapshot(model.MetricSnapshot{Timestamp: time.Now()})
	cancel()
	w.Wait()

	snaps, err := db.QuerySnapshots(time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	assert.Empty(t, rec.breaches())
}
