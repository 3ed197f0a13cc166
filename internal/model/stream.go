package model

import "time"

// StreamFilter selects which events an observer receives. Empty sets match
// everything.
type StreamFilter struct {
	Domains    []MetricDomain   `json:"domains,omitempty"`
	Severities []AlertSeverity  `json:"severities,omitempty"`
	Kinds      []AlertEventKind `json:"kinds,omitempty"`
}

// MatchesSnapshot reports whether snapshot events pass this filter.
// Snapshots carry all domains, so any domain subscription matches.
func (f StreamFilter) MatchesSnapshot() bool { return true }

// MatchesAlert reports whether an alert event passes this filter.
func (f StreamFilter) MatchesAlert(ev AlertEvent) bool {
	if len(f.Domains) > 0 && !containsDomain(f.Domains, ev.Alert.Type) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, ev.Alert.Severity) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	return true
}

func containsDomain(set []MetricDomain, d MetricDomain) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}

func containsSeverity(set []AlertSeverity, s AlertSeverity) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsKind(set []AlertEventKind, k AlertEventKind) bool {
	for _, v := range set {
		if v == k {
			return true
		}
	}
	return false
}

// StreamPayload is one coalesced delivery to an observer: the latest snapshot
// since the previous delivery plus alert events in transition order.
type StreamPayload struct {
	Type     string          `json:"type"` // "update" or "disconnect"
	Snapshot *MetricSnapshot `json:"snapshot,omitempty"`
	Alerts   []AlertEvent    `json:"alerts,omitempty"`
	SentAt   time.Time       `json:"sent_at"`
}
