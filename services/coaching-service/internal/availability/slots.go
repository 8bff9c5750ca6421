package availability

import (
	"sort"
	"time"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// SlotStarts expands open intervals into start times for a session of length
// duration. Without a fixed time, starts step by duration from each interval's
// start. With a fixed "HH:MM" time, only that UTC wall-clock time on each day
// qualifies. Starts before now are dropped; duplicates from overlapping
// intervals are merged. Results are UTC and ascending.
func SlotStarts(open []Interval, duration time.Duration, fixed *string, now time.Time) []time.Time {
	if duration <= 0 {
		return nil
	}

	hour, minute, hasFixed := -1, -1, false
	if fixed != nil {
		h, m, ok := model.ParseHHMM(*fixed)
		if !ok {
			return nil
		}
		hour, minute, hasFixed = h, m, true
	}

	seen := map[int64]struct{}{}
	var starts []time.Time
	add := func(t time.Time) {
		if t.Before(now) {
			return
		}
		if _, dup := seen[t.Unix()]; dup {
			return
		}
		seen[t.Unix()] = struct{}{}
		starts = append(starts, t)
	}

	for _, iv := range open {
		start, end := iv.Start.UTC(), iv.End.UTC()
		if !end.After(start) {
			continue
		}
		if hasFixed {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
			for ; day.Before(end); day = day.AddDate(0, 0, 1) {
				t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
				if !t.Before(start) && !t.Add(duration).After(end) {
					add(t)
				}
			}
			continue
		}
		for t := start; !t.Add(duration).After(end); t = t.Add(duration) {
			add(t)
		}
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}
