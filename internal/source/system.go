package source

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/reservly/pulsed/internal/model"
)

// hostSystemSource reads host resource usage via gopsutil and, when a Redis
// client is present, merges in the request-path figures the platform keeps
// under the "pulse:system" hash (response time, error rate, availability,
// active connections).
type hostSystemSource struct {
	rdb      *redis.Client
	diskPath string
}

// NewSystemSource creates the built-in system-domain source. rdb may be nil.
func NewSystemSource(rdb *redis.Client, diskPath string) SystemSource {
	if diskPath == "" {
		diskPath = "/"
	}
	return &hostSystemSource{rdb: rdb, diskPath: diskPath}
}

func (s *hostSystemSource) FetchSystemMetrics(ctx context.Context) (model.SystemMetrics, error) {
	var m model.SystemMetrics

	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return m, err
	}
	if len(pcts) > 0 {
		m.CPUPct = pcts[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return m, err
	}
	m.MemPct = vm.UsedPercent

	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		m.DiskPct = du.UsedPercent
	}

	// Request-path figures come from the platform; the host alone cannot
	// observe them. Without Redis they stay zero except availability, which
	// defaults to fully up so a counters outage does not read as downtime.
	m.AvailabilityPct = 100
	if s.rdb != nil {
		fields, err := s.rdb.HGetAll(ctx, "pulse:system").Result()
		if err != nil {
			return m, err
		}
		m.ResponseTimeMs = parseFloat(fields["response_time_ms"])
		m.ErrorRatePct = parseFloat(fields["error_rate_pct"])
		if v, ok := fields["availability_pct"]; ok {
			m.AvailabilityPct = parseFloat(v)
		}
		m.ActiveConnections = parseInt(fields["active_connections"])
	}
	return m, nil
}
