package domain

// Region is a provider sending region. Loaded from static configuration at
// startup; the configured order is the failover order, primary first.
type Region struct {
	Name               string  `json:"name" yaml:"name"`
	Endpoint           string  `json:"endpoint,omitempty" yaml:"endpoint"`
	Primary            bool    `json:"primary" yaml:"primary"`
	MaxSendRate        float64 `json:"max_send_rate" yaml:"max_send_rate"`
	DailyQuota         int64   `json:"daily_quota" yaml:"daily_quota"`
	BounceThreshold    float64 `json:"bounce_threshold" yaml:"bounce_threshold"`
	ComplaintThreshold float64 `json:"complaint_threshold" yaml:"complaint_threshold"`
	Sandbox            bool    `json:"sandbox" yaml:"sandbox"`
}

// ReputationMetrics is the externally supplied health snapshot for a region
// or sending IP.
type ReputationMetrics struct {
	BounceRate      float64 `json:"bounce_rate"`
	ComplaintRate   float64 `json:"complaint_rate"`
	ReputationScore float64 `json:"reputation_score"`
}
