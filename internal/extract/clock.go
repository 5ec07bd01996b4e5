package extract

import (
	"fmt"
	"regexp"
	"strings"

	"intentc/internal/rules"
)

type meridiem int

const (
	meridiemNone meridiem = iota
	meridiemAM
	meridiemPM
	// meridiemFixed marks an hour already on the 24-hour clock.
	meridiemFixed
)

// clockTime is a time of day as written. Start and End delimit the phrase.
type clockTime struct {
	Hour     int
	Minute   int
	Meridiem meridiem
	Start    int
	End      int
}

const (
	meridiemSuffix = `(?:\s*([ap])\.?m\b\.?)?`
	// meridiemOrEnd lets "10:30am" match without a word boundary after the digits.
	meridiemOrEnd = `(?:\s*([ap])\.?m\b\.?|\b)`
	ohMinutes      = `oh?[\s-]?(?:one|two|three|four|five|six|seven|eight|nine)`
	clockLead      = `\b(?:at|for|around|by|until|till)\s+`
)

var (
	colonClock     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})` + meridiemOrEnd)
	relativeClock  = regexp.MustCompile(`\b(half|quarter|\d{1,2}|` + numberWords + `)(?:\s+minutes?)?\s+(past|after|to|till|til|before)\s+(\d{1,2}|` + numberWords + `|noon|midnight)` + meridiemOrEnd)
	oclockClock    = regexp.MustCompile(`\b(\d{1,2}|` + numberWords + `)\s+o'?\s?clock\b` + meridiemSuffix)
	meridiemClock  = regexp.MustCompile(`\b(\d{1,2})\s*([ap])\.?m\b\.?`)
	namedClock     = regexp.MustCompile(`\b(noon|midday|midnight)\b`)
	spelledClock   = regexp.MustCompile(`\b(` + numberWords + `)(?:[\s-]+(` + numberWords + `|` + ohMinutes + `))?\s*([ap])\.?m\b\.?`)
	spelledAtClock = regexp.MustCompile(clockLead + `(` + numberWords + `)(?:[\s-]+(` + numberWords + `|` + ohMinutes + `))?\b`)
	bareClock      = regexp.MustCompile(clockLead + `(\d{1,2})\b`)
	unitAfter      = regexp.MustCompile(`^\s*(?:minutes?|mins?|hours?|hrs?|seconds?|secs?|days?|weeks?|people|percent|%|:|\.\d)`)
)

// findClock returns the first time of day in s, trying the most explicit
// forms first.
func findClock(s string) (clockTime, bool) {
	finders := []func(string) (clockTime, bool){
		colonTime,
		relativeTime,
		oclockTime,
		meridiemTime,
		namedTime,
		spelledTime,
		spelledAtTime,
		bareTime,
	}
	for _, find := range finders {
		if c, ok := find(s); ok {
			return c, true
		}
	}
	return clockTime{}, false
}

func group(s string, m []int, g int) string {
	if 2*g+1 >= len(m) || m[2*g] < 0 {
		return ""
	}
	return s[m[2*g]:m[2*g+1]]
}

func parseMeridiem(v string) meridiem {
	switch v {
	case "a":
		return meridiemAM
	case "p":
		return meridiemPM
	default:
		return meridiemNone
	}
}

func colonTime(s string) (clockTime, bool) {
	m := colonClock.FindStringSubmatchIndex(s)
	if m == nil {
		return clockTime{}, false
	}
	h, _ := intValue(group(s, m, 1))
	minute, _ := intValue(group(s, m, 2))
	return clockTime{Hour: h, Minute: minute, Meridiem: parseMeridiem(group(s, m, 3)), Start: m[0], End: m[1]}, true
}

func relativeTime(s string) (clockTime, bool) {
	m := relativeClock.FindStringSubmatchIndex(s)
	if m == nil {
		return clockTime{}, false
	}
	var offset int
	switch v := group(s, m, 1); v {
	case "half":
		offset = 30
	case "quarter":
		offset = 15
	default:
		n, ok := intValue(v)
		if !ok {
			return clockTime{}, false
		}
		offset = n
	}
	if d := group(s, m, 2); d != "past" && d != "after" {
		offset = -offset
	}
	mer := parseMeridiem(group(s, m, 4))
	var base int
	switch v := group(s, m, 3); v {
	case "noon":
		base, mer = 12, meridiemFixed
	case "midnight":
		base, mer = 0, meridiemFixed
	default:
		n, ok := intValue(v)
		if !ok {
			return clockTime{}, false
		}
		base = applyMeridiem(n, mer)
		if mer != meridiemNone {
			mer = meridiemFixed
		}
	}
	total := ((base*60+offset)%1440 + 1440) % 1440
	return clockTime{Hour: total / 60, Minute: total % 60, Meridiem: mer, Start: m[0], End: m[1]}, true
}

func oclockTime(s string) (clockTime, bool) {
	m := oclockClock.FindStringSubmatchIndex(s)
	if m == nil {
		return clockTime{}, false
	}
	h, ok := intValue(group(s, m, 1))
	if !ok {
		return clockTime{}, false
	}
	return clockTime{Hour: h, Meridiem: parseMeridiem(group(s, m, 2)), Start: m[0], End: m[1]}, true
}

func meridiemTime(s string) (clockTime, bool) {
	m := meridiemClock.FindStringSubmatchIndex(s)
	if m == nil {
		return clockTime{}, false
	}
	h, _ := intValue(group(s, m, 1))
	return clockTime{Hour: h, Meridiem: parseMeridiem(group(s, m, 2)), Start: m[0], End: m[1]}, true
}

func namedTime(s string) (clockTime, bool) {
	m := namedClock.FindStringSubmatchIndex(s)
	if m == nil {
		return clockTime{}, false
	}
	c := clockTime{Hour: 12, Meridiem: meridiemFixed, Start: m[0], End: m[1]}
	if group(s, m, 1) == "midnight" {
		c.Hour = 0
	}
	return c, true
}

func spelledTime(s string) (clockTime, bool) {
	m := spelledClock.FindStringSubmatchIndex(s)
	if m == nil {
		return clockTime{}, false
	}
	h, ok := wordValue(group(s, m, 1))
	if !ok {
		return clockTime{}, false
	}
	return clockTime{Hour: h, Minute: spelledMinute(group(s, m, 2)), Meridiem: parseMeridiem(group(s, m, 3)), Start: m[0], End: m[1]}, true
}

func spelledAtTime(s string) (clockTime, bool) {
	for _, m := range spelledAtClock.FindAllStringSubmatchIndex(s, -1) {
		if unitAfter.MatchString(s[m[1]:]) {
			continue
		}
		h, ok := wordValue(group(s, m, 1))
		if !ok || h > 24 {
			continue
		}
		return clockTime{Hour: h, Minute: spelledMinute(group(s, m, 2)), Start: m[2], End: m[1]}, true
	}
	return clockTime{}, false
}

func bareTime(s string) (clockTime, bool) {
	for _, m := range bareClock.FindAllStringSubmatchIndex(s, -1) {
		if unitAfter.MatchString(s[m[1]:]) {
			continue
		}
		h, _ := intValue(group(s, m, 1))
		return clockTime{Hour: h, Start: m[2], End: m[1]}, true
	}
	return clockTime{}, false
}

func spelledMinute(v string) int {
	if v == "" {
		return 0
	}
	if strings.HasPrefix(v, "o") {
		v = strings.TrimLeft(strings.TrimPrefix(strings.TrimPrefix(v, "oh"), "o"), " -")
	}
	n, _ := wordValue(v)
	return n
}

func applyMeridiem(h int, mer meridiem) int {
	switch mer {
	case meridiemPM:
		if h >= 1 && h < 12 {
			return h + 12
		}
	case meridiemAM:
		if h == 12 {
			return 0
		}
	}
	return h
}

// resolve returns the hour on the 24-hour clock and whether the half of the
// day is known. context fills in a missing meridiem.
func (c clockTime) resolve(context meridiem) (int, bool) {
	mer := c.Meridiem
	if mer == meridiemNone {
		mer = context
	}
	h := applyMeridiem(c.Hour, mer)
	return h, mer != meridiemNone || h == 0 || h > 12
}

// contextMeridiem infers AM or PM from words like "tonight" or "morning".
func contextMeridiem(lex *rules.Lexicons, s string) meridiem {
	pm, pmOK := lex.PMContext.Find(s, 0)
	am, amOK := lex.AMContext.Find(s, 0)
	switch {
	case pmOK && (!amOK || pm.Start < am.Start):
		return meridiemPM
	case amOK:
		return meridiemAM
	default:
		return meridiemNone
	}
}

// clockString renders a reminder time: "9:30 AM" when the half of the day is
// known, otherwise "9:30".
func clockString(h, m int, known bool) string {
	if !known || h < 0 || h > 23 {
		return fmt.Sprintf("%d:%02d", h, m)
	}
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}
