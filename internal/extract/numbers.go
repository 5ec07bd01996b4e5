package extract

import (
	"strconv"
	"strings"
)

var units = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// numberWords matches a spelled-out number below one hundred. Longer words
// come first so "seventeen" is not read as "seven".
const numberWords = `(?:(?:twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)(?:[\s-]?(?:one|two|three|four|five|six|seven|eight|nine))?` +
	`|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|eleven|twelve|ten` +
	`|zero|one|two|three|four|five|six|seven|eight|nine)`

// numberValue parses digits, decimals, "a"/"an" and spelled numbers.
func numberValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0, false
	case "a", "an":
		return 1, true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if v, ok := wordValue(s); ok {
		return float64(v), true
	}
	return 0, false
}

func wordValue(s string) (int, bool) {
	if v, ok := units[s]; ok {
		return v, true
	}
	if v, ok := tens[s]; ok {
		return v, true
	}
	for t, tv := range tens {
		if !strings.HasPrefix(s, t) {
			continue
		}
		rest := strings.TrimLeft(s[len(t):], " -")
		if u, ok := units[rest]; ok && u > 0 && u < 10 {
			return tv + u, true
		}
	}
	return 0, false
}

func intValue(s string) (int, bool) {
	v, ok := numberValue(s)
	if !ok || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}
