package memory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxTemporalInputLength bounds resolver input.
const maxTemporalInputLength = 10000

// temporalPhrase matches every relative time expression the resolver
// understands, as one alternation so the text is scanned once:
//
//	today | yesterday | tomorrow
//	last week/month/year
//	N days/weeks/months ago
//	last monday..sunday
//	this morning/afternoon/evening
var temporalPhrase = regexp.MustCompile(`(?i)\b(?:` +
	`(today|yesterday|tomorrow)` +
	`|last\s+(week|month|year)` +
	`|(\d{1,3})\s+(day|week|month)s?\s+ago` +
	`|last\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)` +
	`|this\s+(morning|afternoon|evening)` +
	`)\b`)

// resolvedDate matches an already-appended " (Month D, YYYY)" so running
// the resolver twice changes nothing. Month names are spelled out to
// avoid mistaking ordinary parenthetical text for a resolved date.
var resolvedDate = regexp.MustCompile(`^\s*\((?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}\)`)

// ResolveTemporalReferences appends the absolute date each relative time
// phrase refers to, in parentheses, preserving the original wording:
//
//	"the bug appeared yesterday"
//	-> "the bug appeared yesterday (January 29, 2026)"
//
// A zero sessionDate returns the text untouched (no date to anchor to),
// and phrases already carrying a resolved date are left alone.
func ResolveTemporalReferences(text string, sessionDate time.Time) string {
	if sessionDate.IsZero() || text == "" {
		return text
	}
	if len(text) > maxTemporalInputLength {
		text = text[:maxTemporalInputLength]
	}

	matches := temporalPhrase.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(matches)*20)
	prev := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(text[prev:start])
		b.WriteString(text[start:end])
		prev = end

		if resolvedDate.MatchString(text[end:]) {
			continue
		}
		if resolved, ok := resolvePhrase(text, m, sessionDate); ok {
			fmt.Fprintf(&b, " (%s)", resolved.Format("January 2, 2006"))
		}
	}
	b.WriteString(text[prev:])
	return b.String()
}

// resolvePhrase maps one temporalPhrase match to its absolute date.
// Submatch group layout follows the alternation order in the pattern.
func resolvePhrase(text string, m []int, sessionDate time.Time) (time.Time, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return strings.ToLower(text[m[2*i]:m[2*i+1]])
	}

	switch {
	case group(1) != "": // today / yesterday / tomorrow
		switch group(1) {
		case "yesterday":
			return sessionDate.AddDate(0, 0, -1), true
		case "tomorrow":
			return sessionDate.AddDate(0, 0, 1), true
		default:
			return sessionDate, true
		}
	case group(2) != "": // last week/month/year
		switch group(2) {
		case "week":
			return sessionDate.AddDate(0, 0, -7), true
		case "month":
			return sessionDate.AddDate(0, -1, 0), true
		default:
			return sessionDate.AddDate(-1, 0, 0), true
		}
	case group(3) != "": // N days/weeks/months ago
		n, err := strconv.Atoi(group(3))
		if err != nil {
			return time.Time{}, false
		}
		switch group(4) {
		case "day":
			return sessionDate.AddDate(0, 0, -n), true
		case "week":
			return sessionDate.AddDate(0, 0, -7*n), true
		default:
			return sessionDate.AddDate(0, -n, 0), true
		}
	case group(5) != "": // last <weekday>
		return previousWeekday(sessionDate, weekdayByName(group(5))), true
	case group(6) != "": // this morning/afternoon/evening
		return sessionDate, true
	}
	return time.Time{}, false
}

func weekdayByName(name string) time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d
		}
	}
	return time.Monday
}

// previousWeekday returns the most recent strictly-past occurrence of
// target: "last friday" said on a Friday means a week ago, not today.
func previousWeekday(from time.Time, target time.Weekday) time.Time {
	back := int(from.Weekday() - target)
	if back <= 0 {
		back += 7
	}
	return from.AddDate(0, 0, -back)
}
