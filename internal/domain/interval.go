package domain

import "sort"

// Interval is a half-open [Start, End) span of minutes within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

func (i Interval) Minutes() int {
	if i.Empty() {
		return 0
	}
	return int(i.End - i.Start)
}

// Overlaps reports whether two half-open intervals share at least one minute.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies fully inside i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// Clip returns the part of i that lies within bounds. The result is empty
// when they do not overlap.
func (i Interval) Clip(bounds Interval) Interval {
	out := i
	if out.Start < bounds.Start {
		out.Start = bounds.Start
	}
	if out.End > bounds.End {
		out.End = bounds.End
	}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// MergeIntervals sorts by start and coalesces overlapping or touching
// intervals. Empty intervals are dropped. The input is not modified.
func MergeIntervals(in []Interval) []Interval {
	sorted := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Start == sorted[b].Start {
			return sorted[a].End < sorted[b].End
		}
		return sorted[a].Start < sorted[b].Start
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
