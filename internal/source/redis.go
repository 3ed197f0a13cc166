package source

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/reservly/pulsed/internal/model"
)

// The platform's request handlers maintain rolling counters in Redis hashes,
// one per domain. The sources below only read and normalize them; computing
// the values is the platform's job.
const (
	paymentKey  = "pulse:payments"
	securityKey = "pulse:security"
	businessKey = "pulse:business"
)

// NewRedisClient connects to the platform counter store.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

type redisPaymentSource struct{ rdb *redis.Client }

// NewPaymentSource reads payment counters from Redis.
func NewPaymentSource(rdb *redis.Client) PaymentSource { return &redisPaymentSource{rdb: rdb} }

func (s *redisPaymentSource) FetchPaymentMetrics(ctx context.Context, window time.Duration) (model.PaymentMetrics, error) {
	var m model.PaymentMetrics
	if s.rdb == nil {
		return m, ErrNotConfigured
	}
	fields, err := s.rdb.HGetAll(ctx, paymentKey).Result()
	if err != nil {
		return m, err
	}
	m.TotalTx = parseInt(fields["total_tx"])
	m.SuccessTx = parseInt(fields["success_tx"])
	m.FailTx = parseInt(fields["fail_tx"])
	m.Volume = parseFloat(fields["volume"])
	if m.TotalTx > 0 {
		m.AvgValue = m.Volume / float64(m.TotalTx)
		m.SuccessRate = float64(m.SuccessTx) / float64(m.TotalTx) * 100
	} else {
		// No traffic in the window is not a payment failure.
		m.SuccessRate = 100
	}
	if sec := window.Seconds(); sec > 0 {
		m.TPS = float64(m.TotalTx) / sec
	}
	return m, nil
}

type redisSecuritySource struct{ rdb *redis.Client }

// NewSecuritySource reads security counters from Redis.
func NewSecuritySource(rdb *redis.Client) SecuritySource { return &redisSecuritySource{rdb: rdb} }

func (s *redisSecuritySource) FetchSecurityMetrics(ctx context.Context, window time.Duration) (model.SecurityMetrics, error) {
	var m model.SecurityMetrics
	if s.rdb == nil {
		return m, ErrNotConfigured
	}
	fields, err := s.rdb.HGetAll(ctx, securityKey).Result()
	if err != nil {
		return m, err
	}
	m.FraudAttempts = parseInt(fields["fraud_attempts"])
	m.BlockedTx = parseInt(fields["blocked_tx"])
	m.SecurityAlerts = parseInt(fields["security_alerts"])
	m.SuspiciousActivity = parseInt(fields["suspicious_activity"])
	return m, nil
}

type redisBusinessSource struct{ rdb *redis.Client }

// NewBusinessSource reads business counters from Redis.
func NewBusinessSource(rdb *redis.Client) BusinessSource { return &redisBusinessSource{rdb: rdb} }

func (s *redisBusinessSource) FetchBusinessMetrics(ctx context.Context, window time.Duration) (model.BusinessMetrics, error) {
	var m model.BusinessMetrics
	if s.rdb == nil {
		return m, ErrNotConfigured
	}
	fields, err := s.rdb.HGetAll(ctx, businessKey).Result()
	if err != nil {
		return m, err
	}
	m.Revenue = parseFloat(fields["revenue"])
	m.PointsEarned = parseInt(fields["points_earned"])
	m.PointsRedeemed = parseInt(fields["points_redeemed"])
	m.RefundAmount = parseFloat(fields["refund_amount"])
	m.ChargebackAmount = parseFloat(fields["chargeback_amount"])
	return m, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
