package week

import (
	"errors"
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestIDYearBoundaries(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC), "2022-W52"},
		{time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC), "2023-W01"},
		{time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2021, 1, 3, 12, 0, 0, 0, time.UTC), "2020-W53"},
		{time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), "2026-W01"},
		{time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "2024-W10"},
	}
	for _, tt := range tests {
		if got := ID(tt.date, time.UTC); got != tt.want {
			t.Errorf("ID(%s) = %q, want %q", tt.date.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestIDUsesLocalDate(t *testing.T) {
	toronto := mustLoad(t, "America/Toronto")

	// Monday 02:00 UTC is still Sunday evening in Toronto.
	instant := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
	if got := ID(instant, time.UTC); got != "2024-W11" {
		t.Errorf("UTC ID = %q, want 2024-W11", got)
	}
	if got := ID(instant, toronto); got != "2024-W10" {
		t.Errorf("Toronto ID = %q, want 2024-W10", got)
	}
}

func TestIDStableWithinWeek(t *testing.T) {
	toronto := mustLoad(t, "America/Toronto")

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, toronto)
	for h := 0; h < 167; h++ {
		d := start.Add(time.Duration(h) * time.Hour)
		if got := ID(d, toronto); got != "2024-W10" {
			t.Fatalf("ID at %s = %q, want 2024-W10", d, got)
		}
	}
	// 2024-03-10 is the DST switch, so the next Monday is 167 hours later.
	next := time.Date(2024, 3, 11, 0, 0, 0, 0, toronto)
	if got := ID(next, toronto); got != "2024-W11" {
		t.Errorf("ID at next Monday = %q, want 2024-W11", got)
	}
	if got := ID(next.Add(-time.Nanosecond), toronto); got != "2024-W10" {
		t.Errorf("ID just before Monday = %q, want 2024-W10", got)
	}
}

func TestStart(t *testing.T) {
	tests := []struct {
		date time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{time.Date(2023, 1, 1, 8, 0, 0, 0, time.UTC), time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := Start(tt.date, time.UTC); !got.Equal(tt.want) {
			t.Errorf("Start(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	year, wk, err := Parse("2024-W10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if year != 2024 || wk != 10 {
		t.Errorf("Parse = (%d, %d), want (2024, 10)", year, wk)
	}

	if _, _, err := Parse("2020-W53"); err != nil {
		t.Errorf("2020-W53 should be valid: %v", err)
	}

	bad := []string{"", "2024-10", "2024-W1", "2024W10", "2024-W00", "2021-W53", "abcd-W10", "2024-w10", "-024-W10", "2024-W1x", "+024-W10", "2024-W 9", " 024-W10"}
	for _, id := range bad {
		if _, _, err := Parse(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestWeeksInYear(t *testing.T) {
	tests := map[int]int{2015: 53, 2020: 53, 2021: 52, 2022: 52, 2026: 53}
	for year, want := range tests {
		if got := WeeksInYear(year); got != want {
			t.Errorf("WeeksInYear(%d) = %d, want %d", year, got, want)
		}
	}
}

func TestStartOfRoundTrip(t *testing.T) {
	toronto := mustLoad(t, "America/Toronto")

	for _, id := range []string{"2022-W52", "2023-W01", "2024-W10", "2025-W01", "2020-W53"} {
		start, err := StartOf(id, toronto)
		if err != nil {
			t.Fatalf("StartOf(%s): %v", id, err)
		}
		if start.Weekday() != time.Monday {
			t.Errorf("StartOf(%s) weekday = %s, want Monday", id, start.Weekday())
		}
		if start.Hour() != 0 || start.Minute() != 0 {
			t.Errorf("StartOf(%s) = %s, want midnight", id, start)
		}
		if got := ID(start, toronto); got != id {
			t.Errorf("ID(StartOf(%s)) = %s", id, got)
		}
	}

	start, _ := StartOf("2024-W10", toronto)
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, toronto)
	if !start.Equal(want) {
		t.Errorf("StartOf(2024-W10) = %s, want %s", start, want)
	}
}

func TestBoundsAcrossDST(t *testing.T) {
	toronto := mustLoad(t, "America/Toronto")

	start, end, err := Bounds("2024-W10", toronto)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if got := end.Sub(start); got != 167*time.Hour {
		t.Errorf("week length = %s, want 167h", got)
	}
	if end.Weekday() != time.Monday || end.Hour() != 0 {
		t.Errorf("end = %s, want Monday midnight", end)
	}
}

func TestDayDate(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		day  int
		want string
	}{
		{1, "2024-03-04"},
		{2, "2024-03-05"},
		{3, "2024-03-06"},
		{6, "2024-03-09"},
		{0, "2024-03-10"},
	}
	for _, tt := range tests {
		if got := DayDate(monday, tt.day).Format("2006-01-02"); got != tt.want {
			t.Errorf("DayDate(day %d) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestNext(t *testing.T) {
	tests := map[string]string{
		"2024-W10": "2024-W11",
		"2020-W53": "2021-W01",
		"2022-W52": "2023-W01",
	}
	for in, want := range tests {
		got, err := Next(in)
		if err != nil {
			t.Fatalf("Next(%s): %v", in, err)
		}
		if got != want {
			t.Errorf("Next(%s) = %s, want %s", in, got, want)
		}
	}
}
