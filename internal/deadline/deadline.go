// Package deadline implements the deterministic deadline-normalization
// rules: free-text phrases extracted from an email, anchored to the
// email's own timestamp, turned into an ISO date or nothing at all.
package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var (
	reNullLike    = regexp.MustCompile(`\b(null|none|n/a|tbd|no deadline)\b`)
	reSameDay     = regexp.MustCompile(`\b(tonight|this evening|today|end of day|eod|close of business|cob|asap|immediately|urgent|right away|at your earliest)\b`)
	reWithinHours = regexp.MustCompile(`\b(within|in)\s+\d+\s*(hours?|minutes?|hrs?|mins?)\b`)
	reBeforeEvent = regexp.MustCompile(`\bbefore the\s+(meeting|call|demo|presentation|review)\b`)
	reYesterday   = regexp.MustCompile(`\byesterday\b`)
	reTomorrow    = regexp.MustCompile(`\btomorrow\b`)
	reFirstThing  = regexp.MustCompile(`\bfirst thing.*morning\b`)
	reWeekday     = regexp.MustCompile(`(?:\b(by|due|on|before)\s+)?\b(next|this)?\s*(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	reNextWeek    = regexp.MustCompile(`\bnext week\b`)
	reThisWeek    = regexp.MustCompile(`\bthis week\b`)
	reEndOfWeek   = regexp.MustCompile(`\bend of week\b`)
	reInNDays     = regexp.MustCompile(`\b(?:in|within)\s+(\d+)\s*days?\b`)
	reOrdinalDate = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+([a-zA-Z]+)\b`)
	reMonthFirst  = regexp.MustCompile(`\b([a-zA-Z]+)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	reBareDay     = regexp.MustCompile(`\bthe\s+(\d{1,2})(?:st|nd|rd|th)\b`)
	reISODate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// Normalize turns a free-text deadline phrase into an ISO date, anchored
// to emailTS as "today". Returns ok=false when no rule matches or the
// phrase is explicitly null-like.
func Normalize(raw string, emailTS time.Time) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return "", false
	}
	today := emailTS.UTC().Truncate(24 * time.Hour)

	// Rule 1: null-like phrases.
	if reNullLike.MatchString(text) {
		return "", false
	}

	// Rule 2: same-day markers. "yesterday" must not match "today"'s
	// substring rule, checked explicitly since it has no own keyword above.
	if !reYesterday.MatchString(text) {
		if reSameDay.MatchString(text) || reWithinHours.MatchString(text) || reBeforeEvent.MatchString(text) {
			return today.Format(isoLayout), true
		}
	}

	// Rule 3: next-day markers.
	if reTomorrow.MatchString(text) || reFirstThing.MatchString(text) {
		return today.AddDate(0, 0, 1).Format(isoLayout), true
	}

	// Rule 4: weekday reference.
	if m := reWeekday.FindStringSubmatch(text); m != nil {
		qualifier := m[2]
		if qualifier == "" {
			qualifier = "this"
		}
		targetWD := weekdays[m[3]]
		refWD := today.Weekday()
		daysAhead := (int(targetWD) - int(refWD) + 7) % 7
		if qualifier == "next" && daysAhead == 0 {
			daysAhead = 7
		}
		return today.AddDate(0, 0, daysAhead).Format(isoLayout), true
	}

	// Rule 5: week-relative phrases.
	if reNextWeek.MatchString(text) {
		return today.AddDate(0, 0, 7).Format(isoLayout), true
	}
	if reEndOfWeek.MatchString(text) {
		return upcomingWeekday(today, time.Friday).Format(isoLayout), true
	}
	if reThisWeek.MatchString(text) {
		return upcomingWeekday(today, time.Sunday).Format(isoLayout), true
	}

	// Rule 6: "in N days" / "within N days".
	if m := reInNDays.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return today.AddDate(0, 0, n).Format(isoLayout), true
		}
	}

	// Rule 7: explicit date parse.
	if d, ok := parseExplicitDate(text, today); ok {
		return d.Format(isoLayout), true
	}

	// Rule 8: no match.
	return "", false
}

// upcomingWeekday returns the next occurrence of wd on or after ref.
func upcomingWeekday(ref time.Time, wd time.Weekday) time.Time {
	daysAhead := (int(wd) - int(ref.Weekday()) + 7) % 7
	return ref.AddDate(0, 0, daysAhead)
}

// parseExplicitDate handles full ISO dates, "22nd Nov"/"Nov 22nd" style
// ordinals with an explicit month (year defaults to the email year,
// rolling forward to next year if that lands before today), and a bare
// day-of-month ("the 25th", no month named) which rolls forward one
// month instead when it would otherwise land in the past.
func parseExplicitDate(text string, today time.Time) (time.Time, bool) {
	if m := reISODate.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
	}

	if m := reOrdinalDate.FindStringSubmatch(text); m != nil {
		day, err := strconv.Atoi(m[1])
		if err == nil {
			if mo, ok := months[strings.ToLower(m[2])]; ok {
				return rollExplicitMonth(day, mo, today), true
			}
		}
	}

	if m := reMonthFirst.FindStringSubmatch(text); m != nil {
		if mo, ok := months[strings.ToLower(m[1])]; ok {
			day, err := strconv.Atoi(m[2])
			if err == nil {
				return rollExplicitMonth(day, mo, today), true
			}
		}
	}

	if m := reBareDay.FindStringSubmatch(text); m != nil {
		day, err := strconv.Atoi(m[1])
		if err == nil {
			candidate := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, time.UTC)
			if candidate.Before(today) {
				candidate = candidate.AddDate(0, 1, 0)
			}
			return candidate, true
		}
	}

	return time.Time{}, false
}

// rollExplicitMonth defaults the year to today's year; if the resulting
// date is before today, it rolls forward to the following year rather
// than the following month, since the month was stated explicitly.
func rollExplicitMonth(day int, mo time.Month, today time.Time) time.Time {
	candidate := time.Date(today.Year(), mo, day, 0, 0, 0, 0, time.UTC)
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate
}
