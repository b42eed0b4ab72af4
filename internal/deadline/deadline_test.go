package deadline

import (
	"testing"
	"time"
)

func wed() time.Time {
	// 2026-07-29 is a Wednesday.
	return time.Date(2026, time.July, 29, 9, 0, 0, 0, time.UTC)
}

func TestNormalize_NullLike(t *testing.T) {
	for _, raw := range []string{"null", "none", "n/a", "tbd", "no deadline"} {
		if iso, ok := Normalize(raw, wed()); ok {
			t.Errorf("Normalize(%q) = %q, true; want false", raw, iso)
		}
	}
}

func TestNormalize_SameDay(t *testing.T) {
	want := "2026-07-29"
	for _, raw := range []string{"tonight", "this evening", "today", "EOD", "ASAP", "urgent", "within 2 hours", "before the demo"} {
		got, ok := Normalize(raw, wed())
		if !ok || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q, true", raw, got, ok, want)
		}
	}
}

func TestNormalize_Yesterday_NotSameDay(t *testing.T) {
	// "yesterday" must not be caught by the "today" substring rule.
	_, ok := Normalize("yesterday", wed())
	if ok {
		t.Errorf("Normalize(\"yesterday\") matched a rule, want no match")
	}
}

func TestNormalize_Tomorrow(t *testing.T) {
	want := "2026-07-30"
	got, ok := Normalize("tomorrow", wed())
	if !ok || got != want {
		t.Errorf("Normalize(\"tomorrow\") = %q, %v; want %q, true", got, ok, want)
	}
}

func TestNormalize_Weekday(t *testing.T) {
	// Wed 2026-07-29. "by Friday" (this, default) -> 2026-07-31.
	got, ok := Normalize("by Friday", wed())
	if !ok || got != "2026-07-31" {
		t.Errorf("Normalize(\"by Friday\") = %q, %v; want 2026-07-31, true", got, ok)
	}

	// "next Wednesday" from a Wednesday -> +7 days (same-day wraps to next week).
	got, ok = Normalize("next Wednesday", wed())
	if !ok || got != "2026-08-05" {
		t.Errorf("Normalize(\"next Wednesday\") = %q, %v; want 2026-08-05, true", got, ok)
	}

	// "this Wednesday" from a Wednesday -> today.
	got, ok = Normalize("this Wednesday", wed())
	if !ok || got != "2026-07-29" {
		t.Errorf("Normalize(\"this Wednesday\") = %q, %v; want 2026-07-29, true", got, ok)
	}
}

func TestNormalize_WeekRelative(t *testing.T) {
	cases := map[string]string{
		"next week":   "2026-08-05",
		"end of week": "2026-07-31", // upcoming Friday
		"this week":   "2026-08-02", // upcoming Sunday
	}
	for raw, want := range cases {
		got, ok := Normalize(raw, wed())
		if !ok || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q, true", raw, got, ok, want)
		}
	}
}

func TestNormalize_InNDays(t *testing.T) {
	got, ok := Normalize("in 3 days", wed())
	if !ok || got != "2026-08-01" {
		t.Errorf("Normalize(\"in 3 days\") = %q, %v; want 2026-08-01, true", got, ok)
	}

	got, ok = Normalize("within 10 days", wed())
	if !ok || got != "2026-08-08" {
		t.Errorf("Normalize(\"within 10 days\") = %q, %v; want 2026-08-08, true", got, ok)
	}
}

func TestNormalize_ExplicitDate(t *testing.T) {
	got, ok := Normalize("22nd Nov", wed())
	if !ok || got != "2026-11-22" {
		t.Errorf("Normalize(\"22nd Nov\") = %q, %v; want 2026-11-22, true", got, ok)
	}

	got, ok = Normalize("25 November", wed())
	if !ok || got != "2026-11-25" {
		t.Errorf("Normalize(\"25 November\") = %q, %v; want 2026-11-25, true", got, ok)
	}

	got, ok = Normalize("2026-03-01", wed())
	if !ok || got != "2026-03-01" {
		t.Errorf("Normalize(\"2026-03-01\") = %q, %v; want 2026-03-01, true", got, ok)
	}
}

func TestNormalize_BareDayRollsMonth(t *testing.T) {
	// email is July 29; "the 25th" has already passed in July, roll to August.
	got, ok := Normalize("the 25th", wed())
	if !ok || got != "2026-08-25" {
		t.Errorf("Normalize(\"the 25th\") = %q, %v; want 2026-08-25, true", got, ok)
	}
}

func TestNormalize_NoMatch(t *testing.T) {
	_, ok := Normalize("let's catch up soon", wed())
	if ok {
		t.Errorf("Normalize on unmatched text returned ok=true, want false")
	}
}
