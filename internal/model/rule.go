package model

// ThresholdRule maps a metric name to a comparison against a numeric bound.
// Rules are loaded at startup and read-only afterwards.
type ThresholdRule struct {
	Metric    string        `yaml:"metric" json:"metric"`
	Operator  string        `yaml:"operator" json:"operator"` // "gt" or "lt"
	Threshold float64       `yaml:"threshold" json:"threshold"`
	Severity  AlertSeverity `yaml:"severity" json:"severity"`
	Title     string        `yaml:"title" json:"title"`
	Message   string        `yaml:"message" json:"message"` // format string with one %v for the value
}

// Breach is a single threshold violation detected in one snapshot.
type Breach struct {
	Metric    string
	Domain    MetricDomain
	Severity  AlertSeverity
	Value     float64
	Threshold float64
	Title     string
	Message   string
}
