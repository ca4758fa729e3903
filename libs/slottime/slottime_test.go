package slottime

import (
	"errors"
	"testing"
	"time"
)

func TestParse_AssumesCurrentYear(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	got, err := Parse("15.06 09:30", now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParse_NoRolloverEvenIfPast(t *testing.T) {
	// Parse keeps the current year even when the result is already behind now.
	now := time.Date(2025, 12, 30, 12, 0, 0, 0, time.UTC)

	got, err := Parse("05.01 10:00", now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Year() != 2025 {
		t.Fatalf("expected year 2025, got %d", got.Year())
	}
}

func TestParseNextIfPast_RollsOver(t *testing.T) {
	now := time.Date(2025, 12, 30, 12, 0, 0, 0, time.UTC)

	got, err := ParseNextIfPast("05.01 10:00", now)
	if err != nil {
		t.Fatalf("ParseNextIfPast: %v", err)
	}
	want := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseNextIfPast_KeepsFutureDates(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	got, err := ParseNextIfPast("15.06 09:30", now)
	if err != nil {
		t.Fatalf("ParseNextIfPast: %v", err)
	}
	if got.Year() != 2025 {
		t.Fatalf("expected year 2025, got %d", got.Year())
	}
}

func TestParse_Invalid(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	cases := []string{
		"",
		"15.06",
		"15.06 0930",
		"15/06 09:30",
		"31.02 10:00", // would normalize into March
		"15.13 10:00",
		"00.06 10:00",
		"15.06 24:00",
		"15.06 10:60",
		"ab.cd ef:gh",
	}
	for _, in := range cases {
		if _, err := Parse(in, now); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q): expected ErrInvalid, got %v", in, err)
		}
	}
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay("15.06.2025", time.UTC)
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	for _, in := range []string{"15.06", "31.02.2025", "15.06.25x"} {
		if _, err := ParseDay(in, time.UTC); !errors.Is(err, ErrInvalid) {
			t.Errorf("ParseDay(%q): expected ErrInvalid, got %v", in, err)
		}
	}
}

func TestWeekdayIndex(t *testing.T) {
	cases := []struct {
		date time.Time
		want int
	}{
		{time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), 0}, // Monday
		{time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), 4}, // Friday
		{time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), 6}, // Sunday
	}
	for _, c := range cases {
		if got := WeekdayIndex(c.date); got != c.want {
			t.Errorf("WeekdayIndex(%s) = %d, want %d", c.date, got, c.want)
		}
	}
}

func TestIsPast_BoundaryInclusive(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	if !IsPast(now, now) {
		t.Fatal("a slot starting exactly at now must count as past")
	}
	if !IsPast(now.Add(-time.Minute), now) {
		t.Fatal("earlier slot must count as past")
	}
	if IsPast(now.Add(time.Minute), now) {
		t.Fatal("later slot must not count as past")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	in := "15.06 09:30"

	parsed, err := Parse(in, now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := Format(parsed); got != in {
		t.Fatalf("Format = %q, want %q", got, in)
	}
	if got := FormatDay(parsed); got != "15.06.2025" {
		t.Fatalf("FormatDay = %q", got)
	}
	if got := FormatClock(parsed); got != "09:30" {
		t.Fatalf("FormatClock = %q", got)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("09:30")
	if err != nil || h != 9 || m != 30 {
		t.Fatalf("ParseClock = (%d, %d, %v)", h, m, err)
	}
	if _, _, err := ParseClock("9.30"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
