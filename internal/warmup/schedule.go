package warmup

import "github.com/ignite/dispatch-engine/internal/domain"

// Phase boundaries in warm-up days.
const (
	lastInitialDay = 5
	lastRampUpDay  = 15
	lastSteadyDay  = 30
)

// PhaseForDay maps a warm-up day to its phase. Monotonic: a later day never
// maps to an earlier phase. Days before 1 clamp to day 1.
func PhaseForDay(day int) domain.WarmupPhase {
	switch {
	case day <= lastInitialDay:
		return domain.PhaseInitial
	case day <= lastRampUpDay:
		return domain.PhaseRampUp
	case day <= lastSteadyDay:
		return domain.PhaseSteady
	default:
		return domain.PhaseCompleted
	}
}

// DefaultSchedule is the built-in 30-day ramp table. Index 0 is day 1.
var DefaultSchedule = []domain.WarmupStep{
	{Volume: 50, HourlyRate: 10},
	{Volume: 100, HourlyRate: 20},
	{Volume: 150, HourlyRate: 30},
	{Volume: 250, HourlyRate: 50},
	{Volume: 400, HourlyRate: 80},
	{Volume: 600, HourlyRate: 100},
	{Volume: 900, HourlyRate: 150},
	{Volume: 1300, HourlyRate: 220},
	{Volume: 1800, HourlyRate: 300},
	{Volume: 2500, HourlyRate: 420},
	{Volume: 3500, HourlyRate: 600},
	{Volume: 5000, HourlyRate: 850},
	{Volume: 7000, HourlyRate: 1200},
	{Volume: 10000, HourlyRate: 1700},
	{Volume: 14000, HourlyRate: 2400},
	{Volume: 20000, HourlyRate: 3400},
	{Volume: 27000, HourlyRate: 4500},
	{Volume: 35000, HourlyRate: 6000},
	{Volume: 45000, HourlyRate: 7500},
	{Volume: 55000, HourlyRate: 9000},
	{Volume: 65000, HourlyRate: 11000},
	{Volume: 75000, HourlyRate: 12500},
	{Volume: 85000, HourlyRate: 14000},
	{Volume: 95000, HourlyRate: 16000},
	{Volume: 105000, HourlyRate: 17500},
	{Volume: 115000, HourlyRate: 19000},
	{Volume: 125000, HourlyRate: 21000},
	{Volume: 135000, HourlyRate: 22500},
	{Volume: 145000, HourlyRate: 24000},
	{Volume: 150000, HourlyRate: 25000},
}

// StepForDay returns the caps for a warm-up day. Days past the end of the
// schedule keep the last step's caps; days before 1 clamp to day 1.
func StepForDay(schedule []domain.WarmupStep, day int) domain.WarmupStep {
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	if day < 1 {
		day = 1
	}
	if day > len(schedule) {
		day = len(schedule)
	}
	return schedule[day-1]
}
