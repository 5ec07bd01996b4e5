package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/schema"
)

type Options struct {
	HourFormat domain.HourFormat
}

// Validator checks tool calls against the schema registry and applies safe
// repairs. It never edits its input.
type Validator struct {
	registry *schema.Registry
	opts     Options
}

func New(registry *schema.Registry, opts Options) *Validator {
	if opts.HourFormat == "" {
		opts.HourFormat = domain.Hour24
	}
	return &Validator{registry: registry, opts: opts}
}

var (
	songLeading  = []string{"some ", "any ", "the song ", "a song "}
	songTrailing = []string{" please", " for me", " song"}
)

// Validate returns a repaired copy of call with the notes describing each
// repair, or the first schema or plausibility failure.
func (v *Validator) Validate(call domain.ToolCall) (domain.ToolCall, []string, error) {
	tool, ok := v.registry.Lookup(call.Tool)
	if !ok {
		return call, nil, &domain.FieldError{Kind: domain.ErrSchemaViolation, Tool: call.Tool, Field: "name", Reason: "unknown tool"}
	}
	var notes []string
	out := make(domain.Arguments, len(tool.Params))

	for _, p := range tool.Params {
		raw, present := call.Arguments[p.Name]
		if !present || raw == nil {
			return call, notes, domain.Violation(call.Tool, p.Name, "required argument missing")
		}
		val, note, err := coerce(p, raw)
		if err != nil {
			return call, notes, &domain.FieldError{Kind: kindOf(err), Tool: call.Tool, Field: p.Name, Value: raw, Reason: err.Error()}
		}
		if note != "" {
			notes = append(notes, p.Name+": "+note)
		}
		out[p.Name] = val
	}

	var unknown []string
	for k := range call.Arguments {
		if _, ok := tool.Param(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		notes = append(notes, fmt.Sprintf("dropped unknown argument %q", k))
	}

	for _, p := range tool.Params {
		switch p.Type {
		case schema.TypeString:
			s, repaired := v.repairString(call, p.Name, out[p.Name].(string))
			notes = append(notes, repaired...)
			if s == "" {
				return call, notes, domain.Violation(call.Tool, p.Name, "empty after repair")
			}
			out[p.Name] = s
		case schema.TypeInteger, schema.TypeNumber:
			if err := v.checkBounds(call.Tool, p, out[p.Name]); err != nil {
				return call, notes, err
			}
		}
	}
	return domain.ToolCall{Tool: call.Tool, Arguments: out, Source: call.Source}, notes, nil
}

type coerceError struct {
	kind error
	msg  string
}

func (e *coerceError) Error() string { return e.msg }

func kindOf(err error) error {
	if ce, ok := err.(*coerceError); ok {
		return ce.kind
	}
	return domain.ErrSchemaViolation
}

func violation(format string, args ...any) error {
	return &coerceError{kind: domain.ErrSchemaViolation, msg: fmt.Sprintf(format, args...)}
}

func coerce(p schema.Param, raw any) (any, string, error) {
	switch p.Type {
	case schema.TypeInteger:
		f, fromString, ok := toFloat(raw)
		if !ok {
			return nil, "", violation("expected integer, got %T", raw)
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, "", &coerceError{kind: domain.ErrImplausibleValue, msg: fmt.Sprintf("%v is not a whole number", f)}
		}
		if _, isInt := raw.(int); isInt {
			return raw, "", nil
		}
		if f <= math.MinInt64 || f >= math.MaxInt64 {
			return nil, "", &coerceError{kind: domain.ErrImplausibleValue, msg: fmt.Sprintf("%v is out of integer range", f)}
		}
		if fromString {
			return int(f), fmt.Sprintf("coerced %q to integer", raw), nil
		}
		return int(f), "", nil
	case schema.TypeNumber:
		f, fromString, ok := toFloat(raw)
		if !ok {
			return nil, "", violation("expected number, got %T", raw)
		}
		if fromString {
			return f, fmt.Sprintf("coerced %q to number", raw), nil
		}
		return f, "", nil
	case schema.TypeBoolean:
		switch b := raw.(type) {
		case bool:
			return b, "", nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true":
				return true, fmt.Sprintf("coerced %q to boolean", b), nil
			case "false":
				return false, fmt.Sprintf("coerced %q to boolean", b), nil
			}
		}
		return nil, "", violation("expected boolean, got %T", raw)
	case schema.TypeArray:
		switch a := raw.(type) {
		case []any:
			return append([]any{}, a...), "", nil
		case []string:
			out := make([]any, len(a))
			for i, s := range a {
				out[i] = s
			}
			return out, "", nil
		case string:
			var out []any
			if err := json.Unmarshal([]byte(a), &out); err == nil {
				return out, "parsed JSON array string", nil
			}
		}
		return nil, "", violation("expected array, got %T", raw)
	default:
		switch s := raw.(type) {
		case string:
			return s, "", nil
		case int, int64, float64, json.Number:
			return fmt.Sprint(s), fmt.Sprintf("coerced %v to string", s), nil
		}
		return nil, "", violation("expected string, got %T", raw)
	}
}

// toFloat reads numeric values and numeric strings.
func toFloat(raw any) (float64, bool, bool) {
	switch n := raw.(type) {
	case int:
		return float64(n), false, true
	case int32:
		return float64(n), false, true
	case int64:
		return float64(n), false, true
	case float32:
		return float64(n), false, true
	case float64:
		return n, false, true
	case json.Number:
		f, err := n.Float64()
		return f, false, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, true, err == nil
	}
	return 0, false, false
}

func (v *Validator) checkBounds(tool domain.ToolName, p schema.Param, val any) error {
	var f float64
	switch n := val.(type) {
	case int:
		f = float64(n)
	case float64:
		f = n
	default:
		return nil
	}
	lo, hi := p.Minimum, p.Maximum
	if tool == domain.ToolSetAlarm && p.Name == "hour" && v.opts.HourFormat == domain.Hour12 {
		one, twelve := 1.0, 12.0
		lo, hi = &one, &twelve
	}
	if (lo != nil && f < *lo) || (hi != nil && f > *hi) {
		return domain.Implausible(tool, p.Name, val, fmt.Sprintf("outside %s", rangeText(lo, hi)))
	}
	return nil
}

func rangeText(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%g..%g", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf(">= %g", *lo)
	default:
		return fmt.Sprintf("<= %g", *hi)
	}
}

// repairString trims s and applies the per-field cleanups.
func (v *Validator) repairString(call domain.ToolCall, field, s string) (string, []string) {
	var notes []string
	if t := strings.TrimSpace(s); t != s {
		notes = append(notes, field+": trimmed whitespace")
		s = t
	}
	quoted := quotedInSource(call.Source, s)
	switch {
	case call.Tool == domain.ToolSendMessage && field == "message" && !quoted:
		if t := strings.TrimRight(s, ".,; "); t != s && t != "" {
			notes = append(notes, field+": stripped trailing punctuation")
			s = t
		}
	case call.Tool == domain.ToolPlayMusic && field == "song" && !quoted:
		if t := stripSongFiller(s); t != s && t != "" {
			notes = append(notes, field+": stripped filler words")
			s = t
		}
	}
	return s, notes
}

func stripSongFiller(s string) string {
	for changed := true; changed; {
		changed = false
		lower := normalize.New(s).Folded
		for _, p := range songLeading {
			if strings.HasPrefix(lower, p) && len(lower) == len(s) {
				s = strings.TrimSpace(s[len(p):])
				changed = true
				break
			}
		}
		lower = normalize.New(s).Folded
		for _, p := range songTrailing {
			if strings.HasSuffix(lower, p) && len(lower) == len(s) {
				s = strings.TrimSpace(s[:len(s)-len(p)])
				changed = true
				break
			}
		}
	}
	return s
}

// quotedInSource reports whether s was written inside quotes in the source segment.
func quotedInSource(seg domain.Segment, s string) bool {
	if seg.Text == "" || s == "" {
		return false
	}
	for _, q := range normalize.QuoteSpans(seg.Text) {
		if q.Inner(seg.Text) == s {
			return true
		}
	}
	return false
}
