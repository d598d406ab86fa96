package warmup

import (
	"testing"

	"github.com/ignite/dispatch-engine/internal/domain"
)

func TestPhaseForDay(t *testing.T) {
	tests := []struct {
		day  int
		want domain.WarmupPhase
	}{
		{-3, domain.PhaseInitial},
		{0, domain.PhaseInitial},
		{1, domain.PhaseInitial},
		{5, domain.PhaseInitial},
		{6, domain.PhaseRampUp},
		{10, domain.PhaseRampUp},
		{15, domain.PhaseRampUp},
		{16, domain.PhaseSteady},
		{30, domain.PhaseSteady},
		{31, domain.PhaseCompleted},
		{400, domain.PhaseCompleted},
	}
	for _, tt := range tests {
		if got := PhaseForDay(tt.day); got != tt.want {
			t.Errorf("PhaseForDay(%d) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestPhaseForDayNeverRegresses(t *testing.T) {
	rank := map[domain.WarmupPhase]int{
		domain.PhaseInitial:   0,
		domain.PhaseRampUp:    1,
		domain.PhaseSteady:    2,
		domain.PhaseCompleted: 3,
	}
	prev := PhaseForDay(1)
	for day := 2; day <= 60; day++ {
		cur := PhaseForDay(day)
		if rank[cur] < rank[prev] {
			t.Fatalf("phase regressed from %s to %s at day %d", prev, cur, day)
		}
		prev = cur
	}
}

func TestStepForDayClamps(t *testing.T) {
	if got := StepForDay(nil, 0); got != DefaultSchedule[0] {
		t.Errorf("day 0 = %+v, want day 1 step", got)
	}
	if got := StepForDay(nil, 1); got.Volume != 50 || got.HourlyRate != 10 {
		t.Errorf("day 1 = %+v", got)
	}
	last := DefaultSchedule[len(DefaultSchedule)-1]
	if got := StepForDay(nil, 31); got != last {
		t.Errorf("day 31 = %+v, want last step", got)
	}
	if got := StepForDay(nil, 500); got != last {
		t.Errorf("day 500 = %+v, want last step", got)
	}
}

func TestStepForDayCustomSchedule(t *testing.T) {
	schedule := []domain.WarmupStep{{Volume: 5, HourlyRate: 2}, {Volume: 10, HourlyRate: 4}}
	if got := StepForDay(schedule, 2); got.Volume != 10 {
		t.Errorf("day 2 = %+v", got)
	}
	if got := StepForDay(schedule, 9); got.Volume != 10 {
		t.Errorf("day 9 should clamp to last step, got %+v", got)
	}
}

func TestDefaultScheduleIsMonotonic(t *testing.T) {
	for i := 1; i < len(DefaultSchedule); i++ {
		if DefaultSchedule[i].Volume < DefaultSchedule[i-1].Volume {
			t.Fatalf("daily volume decreases at day %d", i+1)
		}
	}
}
