package model

import "time"

// AlertSeverity represents the severity level of an alert.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
)

var severityRank = map[AlertSeverity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns the numeric urgency of a severity, higher is more urgent.
// Unknown severities rank below low.
func (s AlertSeverity) Rank() int { return severityRank[s] }

// AlertStatus represents the lifecycle state of an alert.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Alert is a threshold breach tracked through its lifecycle. An alert is
// created active, may be acknowledged by an operator, and ends resolved.
// CurrentValue tracks the most recent breaching value while active.
type Alert struct {
	ID              string        `json:"id"`
	Type            MetricDomain  `json:"type"`
	Severity        AlertSeverity `json:"severity"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Metric          string        `json:"metric"`
	Threshold       float64       `json:"threshold"`
	CurrentValue    float64       `json:"current_value"`
	Status          AlertStatus   `json:"status"`
	Assignee        string        `json:"assignee,omitempty"`
	EscalationLevel int           `json:"escalation_level"`
	Actions         []string      `json:"actions,omitempty"`
	Resolution      string        `json:"resolution,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	AcknowledgedAt  *time.Time    `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	LastEscalatedAt *time.Time    `json:"last_escalated_at,omitempty"`
}

// AlertEventKind distinguishes alert stream events.
type AlertEventKind string

const (
	AlertCreated AlertEventKind = "created"
	AlertUpdated AlertEventKind = "updated"
)

// AlertEvent is published after every state-changing registry operation.
// Urgent hints the hub that delivery should not wait for the next interval.
type AlertEvent struct {
	Kind   AlertEventKind `json:"kind"`
	Alert  Alert          `json:"alert"`
	Urgent bool           `json:"urgent,omitempty"`
}
