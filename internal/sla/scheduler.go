package sla

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/model"
)

// Saver persists generated reports.
type Saver interface {
	SaveSLAReport(r model.SLAReport)
}

// Scheduler generates the daily report once per day at runHour UTC, plus the
// weekly report on Mondays and the monthly report on the first of the month,
// always for the just-completed period.
type Scheduler struct {
	agg     *Aggregator
	saver   Saver
	runHour int
	log     *zap.Logger
	now     func() time.Time
}

// NewScheduler creates the report scheduler.
func NewScheduler(agg *Aggregator, saver Saver, runHour int, log *zap.Logger) *Scheduler {
	return &Scheduler{agg: agg, saver: saver, runHour: runHour, log: log, now: time.Now}
}

// Start runs the schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		var lastRun string
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := s.now().UTC()
				day := now.Format("2006-01-02")
				if now.Hour() != s.runHour || day == lastRun {
					continue
				}
				lastRun = day
				s.runFor(now)
			}
		}
	}()
}

func (s *Scheduler) runFor(now time.Time) {
	prevDay := now.AddDate(0, 0, -1)
	s.generate(prevDay, model.PeriodDay)
	if now.Weekday() == time.Monday {
		s.generate(now.AddDate(0, 0, -7), model.PeriodWeek)
	}
	if now.Day() == 1 {
		s.generate(now.AddDate(0, 0, -1), model.PeriodMonth)
	}
}

func (s *Scheduler) generate(t time.Time, p model.SLAPeriod) {
	report, err := s.agg.BuildReport(t, p)
	if err != nil {
		s.log.Error("sla report generation failed",
			zap.String("period_type", string(p)), zap.Error(err))
		return
	}
	s.saver.SaveSLAReport(report)
	s.log.Info("sla report generated",
		zap.String("period", report.PeriodKey),
		zap.Float64("availability", report.Availability),
		zap.Bool("insufficient_data", report.InsufficientData))
}
