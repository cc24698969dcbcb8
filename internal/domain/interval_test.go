package domain

import (
	"reflect"
	"testing"
)

func iv(start, end string) Interval {
	return Interval{Start: MustTimeOfDay(start), End: MustTimeOfDay(end)}
}

func TestInterval_Overlaps(t *testing.T) {
	base := iv("10:00", "11:00")
	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"touching before", iv("09:00", "10:00"), false},
		{"touching after", iv("11:00", "12:00"), false},
		{"starts inside", iv("10:30", "11:30"), true},
		{"ends inside", iv("09:30", "10:01"), true},
		{"contained", iv("10:15", "10:45"), true},
		{"contains", iv("09:00", "12:00"), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := base.Overlaps(c.other); got != c.want {
				t.Fatalf("Overlaps = %v, want %v", got, c.want)
			}
			if got := c.other.Overlaps(base); got != c.want {
				t.Fatalf("Overlaps is not symmetric")
			}
		})
	}
}

func TestInterval_Clip(t *testing.T) {
	window := iv("09:00", "17:00")

	if got := iv("08:00", "09:30").Clip(window); got != iv("09:00", "09:30") {
		t.Fatalf("clip leading = %s", got)
	}
	if got := iv("16:30", "18:00").Clip(window); got != iv("16:30", "17:00") {
		t.Fatalf("clip trailing = %s", got)
	}
	if got := iv("07:00", "08:00").Clip(window); !got.Empty() {
		t.Fatalf("clip outside = %s, want empty", got)
	}
	if got := iv("12:00", "13:00").Clip(window); got != iv("12:00", "13:00") {
		t.Fatalf("clip inside = %s", got)
	}
}

func TestMergeIntervals(t *testing.T) {
	in := []Interval{
		iv("12:00", "13:00"),
		iv("10:00", "10:30"),
		iv("12:30", "12:45"),
		iv("10:30", "11:00"),
		iv("15:00", "15:00"),
		iv("14:00", "14:30"),
	}
	want := []Interval{
		iv("10:00", "11:00"),
		iv("12:00", "13:00"),
		iv("14:00", "14:30"),
	}
	got := MergeIntervals(in)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeIntervals = %v, want %v", got, want)
	}
	if in[0] != iv("12:00", "13:00") {
		t.Fatalf("input was modified")
	}
	if MergeIntervals(nil) != nil {
		t.Fatalf("MergeIntervals(nil) should be nil")
	}
}
