package domain

import "time"

// WarmupPhase is derived deterministically from the warm-up day and never
// regresses as the day advances.
type WarmupPhase string

const (
	PhaseInitial   WarmupPhase = "INITIAL"
	PhaseRampUp    WarmupPhase = "RAMP_UP"
	PhaseSteady    WarmupPhase = "STEADY"
	PhaseCompleted WarmupPhase = "COMPLETED"
)

// WarmupStatus tracks one sending IP through its ramp-up schedule.
type WarmupStatus struct {
	IP              string            `json:"ip"`
	Pool            string            `json:"pool"`
	StartedAt       time.Time         `json:"started_at"`
	CurrentDay      int               `json:"current_day"`
	Phase           WarmupPhase       `json:"phase"`
	SentToday       int64             `json:"sent_today"`
	SentTotal       int64             `json:"sent_total"`
	Metrics         ReputationMetrics `json:"metrics"`
	Healthy         bool              `json:"healthy"`
	Notes           []string          `json:"notes,omitempty"`
	LastMetricsAt   time.Time         `json:"last_metrics_at"`
	LastAdvancedDay time.Time         `json:"last_advanced_day"`
}

// WarmupStep is one row of the ramp table: the caps for a single day.
type WarmupStep struct {
	Volume     int64 `json:"volume" yaml:"volume"`
	HourlyRate int64 `json:"hourly_rate" yaml:"hourly_rate"`
}
