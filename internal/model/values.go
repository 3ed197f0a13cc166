package model

// Values flattens a snapshot into named scalar metrics. These names are the
// vocabulary shared by threshold rules, the series query API, and the
// flattened sample table in the durable store.
func (s MetricSnapshot) Values() map[string]float64 {
	return map[string]float64{
		"payments.successRate": s.Payment.SuccessRate,
		"payments.totalTx":     float64(s.Payment.TotalTx),
		"payments.successTx":   float64(s.Payment.SuccessTx),
		"payments.failedTx":    float64(s.Payment.FailTx),
		"payments.volume":      s.Payment.Volume,
		"payments.avgValue":    s.Payment.AvgValue,
		"payments.tps":         s.Payment.TPS,

		"system.responseTime": s.System.ResponseTimeMs,
		"system.errorRate":    s.System.ErrorRatePct,
		"system.availability": s.System.AvailabilityPct,
		"system.cpu":          s.System.CPUPct,
		"system.mem":          s.System.MemPct,
		"system.disk":         s.System.DiskPct,
		"system.connections":  float64(s.System.ActiveConnections),

		"security.fraudAttempts":      float64(s.Security.FraudAttempts),
		"security.blockedTx":          float64(s.Security.BlockedTx),
		"security.alerts":             float64(s.Security.SecurityAlerts),
		"security.suspiciousActivity": float64(s.Security.SuspiciousActivity),

		"business.revenue":          s.Business.Revenue,
		"business.pointsEarned":     float64(s.Business.PointsEarned),
		"business.pointsRedeemed":   float64(s.Business.PointsRedeemed),
		"business.refundAmount":     s.Business.RefundAmount,
		"business.chargebackAmount": s.Business.ChargebackAmount,
	}
}
