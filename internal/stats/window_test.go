package stats

import (
	"testing"
	"time"
)

func TestFloor(t *testing.T) {
	base := time.Date(2024, 3, 15, 12, 34, 56, 789000000, time.UTC)

	tests := []struct {
		g    Granularity
		want time.Time
	}{
		{Minute, time.Date(2024, 3, 15, 12, 34, 0, 0, time.UTC)},
		{FiveMinute, time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)},
		{Hour, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.g.String(), func(t *testing.T) {
			if got := tt.g.Floor(base); !got.Equal(tt.want) {
				t.Errorf("Floor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFloorIdempotent(t *testing.T) {
	base := time.Date(2024, 3, 15, 12, 34, 56, 789000000, time.UTC)

	for _, g := range []Granularity{Minute, FiveMinute, Hour} {
		once := g.Floor(base)
		twice := g.Floor(once)
		if !once.Equal(twice) {
			t.Errorf("%s: Floor(Floor(t)) = %v, want %v", g, twice, once)
		}
	}
}

func TestFloorMonotonic(t *testing.T) {
	start := time.Date(2024, 3, 15, 11, 58, 0, 0, time.UTC)

	for _, g := range []Granularity{Minute, FiveMinute, Hour} {
		prev := g.Floor(start)
		for i := 1; i < 300; i++ {
			cur := g.Floor(start.Add(time.Duration(i) * 13 * time.Second))
			if cur.Before(prev) {
				t.Fatalf("%s: floor decreased from %v to %v", g, prev, cur)
			}
			prev = cur
		}
	}
}

func TestWindowGrowsWithGranularity(t *testing.T) {
	if !(Minute.Window() < FiveMinute.Window() && FiveMinute.Window() < Hour.Window()) {
		t.Errorf("windows should grow with granularity: %v %v %v",
			Minute.Window(), FiveMinute.Window(), Hour.Window())
	}
}

func TestCoarser(t *testing.T) {
	if Minute.Coarser() != FiveMinute {
		t.Errorf("Minute.Coarser() = %v", Minute.Coarser())
	}
	if FiveMinute.Coarser() != Hour {
		t.Errorf("FiveMinute.Coarser() = %v", FiveMinute.Coarser())
	}
	if Hour.Coarser() != Hour {
		t.Errorf("Hour.Coarser() = %v, want Hour (top tier)", Hour.Coarser())
	}
}

func TestGranularityString(t *testing.T) {
	tests := []struct {
		g    Granularity
		want string
	}{
		{Minute, "minute"},
		{FiveMinute, "five_minute"},
		{Hour, "hour"},
		{Granularity(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.g.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
