package extract

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// span is a parsed duration phrase worth minutes.
type span struct {
	minutes float64
	start   int
	end     int
}

const unitWords = `(hours?|hrs?|h|minutes?|mins?|m|seconds?|secs?|s)`

var (
	hourAndHalf   = regexp.MustCompile(`\b(?:an?|one)\s+hour\s+and\s+a\s+half\b`)
	numberAndHalf = regexp.MustCompile(`\b(\d+|` + numberWords + `)\s+and\s+a\s+half\s+(hours?|hrs?|minutes?|mins?)\b`)
	threeQuarters = regexp.MustCompile(`\bthree[\s-]quarters?\s+of\s+an?\s+hour\b`)
	halfHour      = regexp.MustCompile(`\b(?:an?\s+|one\s+)?half[\s-]*(?:an?\s+)?hour\b`)
	quarterHour   = regexp.MustCompile(`\b(?:an?\s+|one\s+)?quarter[\s-]*(?:of\s+an?\s+)?hour\b`)
	countedUnit   = regexp.MustCompile(`\b(\d+(?:\.\d+)?|an?|` + numberWords + `)\s*-?\s*` + unitWords + `\b`)
)

// inMinutes converts n of unit to minutes.
func inMinutes(n float64, unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "h"):
		return n * 60
	case strings.HasPrefix(unit, "s"):
		return n / 60
	default:
		return n
	}
}

// findDuration sums the first run of adjacent duration phrases in s, so
// "1 hour 30 minutes" and "an hour and 15 minutes" read as one value.
func findDuration(s string) (span, bool) {
	var found []span
	taken := func(a, b int) bool {
		for _, f := range found {
			if a < f.end && b > f.start {
				return true
			}
		}
		return false
	}
	add := func(re *regexp.Regexp, value func(m []int) (float64, bool)) {
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			if taken(m[0], m[1]) {
				continue
			}
			if v, ok := value(m); ok {
				found = append(found, span{minutes: v, start: m[0], end: m[1]})
			}
		}
	}
	fixed := func(v float64) func([]int) (float64, bool) {
		return func([]int) (float64, bool) { return v, true }
	}
	add(hourAndHalf, fixed(90))
	add(numberAndHalf, func(m []int) (float64, bool) {
		n, ok := numberValue(group(s, m, 1))
		return inMinutes(n+0.5, group(s, m, 2)), ok
	})
	add(threeQuarters, fixed(45))
	add(halfHour, fixed(30))
	add(quarterHour, fixed(15))
	add(countedUnit, func(m []int) (float64, bool) {
		n, ok := numberValue(group(s, m, 1))
		return inMinutes(n, group(s, m, 2)), ok
	})
	if len(found) == 0 {
		return span{}, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })
	total := found[0]
	for _, next := range found[1:] {
		gap := strings.TrimSpace(s[total.end:next.start])
		if gap != "" && gap != "and" && gap != "," && gap != ", and" {
			break
		}
		total.minutes += next.minutes
		total.end = next.end
	}
	return total, true
}

// fitsInt reports whether v converts to int without wrapping.
func fitsInt(v float64) bool {
	return v > math.MinInt64 && v < math.MaxInt64
}

// wholeMinutes reports v as an integer when it has no fractional part.
func wholeMinutes(v float64) (int, bool) {
	r := math.Round(v)
	if math.Abs(v-r) > 1e-9 {
		return 0, false
	}
	return int(r), true
}
