package availability

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestSlotStarts_StepsByDuration(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	open := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(11*time.Hour + 30*time.Minute)}}

	slots := SlotStarts(open, time.Hour, nil, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9*time.Hour)) || !slots[1].Equal(day.Add(10*time.Hour)) {
		t.Fatalf("unexpected slots %v", slots)
	}
}

func TestSlotStarts_SkipsPast(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	open := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}}

	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := SlotStarts(open, 15*time.Minute, nil, now)
	// 09:00, 09:15 and 09:30 start before now.
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected only 09:45, got %v", slots)
	}
}

func TestSlotStarts_FixedTimeAcrossDays(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	open := []Interval{{Start: day.Add(12 * time.Hour), End: day.Add(3*24*time.Hour + 18*time.Hour + 30*time.Minute)}}

	slots := SlotStarts(open, time.Hour, ptr("18:00"), day)
	// Mar 2, 3 and 4 at 18:00; Mar 5 18:00 would end after the block.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %v", slots)
	}
	for i, s := range slots {
		if s.Format("15:04") != "18:00" || s.Day() != 2+i {
			t.Fatalf("unexpected slot %s", s)
		}
	}
}

func TestSlotStarts_MergesOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	open := []Interval{
		{Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour)},
		{Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour)},
	}
	slots := SlotStarts(open, time.Hour, nil, day)
	want := []time.Time{day.Add(9 * time.Hour), day.Add(10 * time.Hour), day.Add(11 * time.Hour)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d = %s, want %s", i, slots[i], want[i])
		}
	}
}

func TestSlotStarts_Invalid(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	open := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}}
	if got := SlotStarts(open, 0, nil, day); got != nil {
		t.Fatalf("expected nil for zero duration")
	}
	if got := SlotStarts(open, time.Hour, ptr("25:00"), day); got != nil {
		t.Fatalf("expected nil for malformed fixed time")
	}
}
