package validate

import (
	"errors"
	"strings"
	"testing"

	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/schema"
)

func newValidator(format domain.HourFormat) *Validator {
	return New(schema.Default(), Options{HourFormat: format})
}

func TestUnknownKeysAreDropped(t *testing.T) {
	v := newValidator(domain.Hour24)
	in := domain.ToolCall{Tool: domain.ToolGetWeather, Arguments: domain.Arguments{"location": "Paris", "units": "celsius"}}
	out, notes, err := v.Validate(in)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := out.Arguments["units"]; ok || out.Arguments["location"] != "Paris" {
		t.Fatalf("args=%v", out.Arguments)
	}
	if len(notes) != 1 {
		t.Fatalf("notes=%v, want one drop note", notes)
	}
	if _, ok := in.Arguments["units"]; !ok {
		t.Fatalf("input was modified")
	}
}

func TestCoercions(t *testing.T) {
	v := newValidator(domain.Hour24)
	out, _, err := v.Validate(domain.ToolCall{Tool: domain.ToolSetAlarm, Arguments: domain.Arguments{"hour": "7", "minute": 30.0}})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out.Arguments["hour"] != 7 || out.Arguments["minute"] != 30 {
		t.Fatalf("args=%v, want hour 7 minute 30", out.Arguments)
	}
	out, _, err = v.Validate(domain.ToolCall{Tool: domain.ToolCreateReminder, Arguments: domain.Arguments{"title": " pay rent ", "time": "9:30 AM"}})
	if err != nil || out.Arguments["title"] != "pay rent" {
		t.Fatalf("args=%v err=%v", out.Arguments, err)
	}
}

func TestSchemaViolations(t *testing.T) {
	v := newValidator(domain.Hour24)
	cases := []domain.ToolCall{
		{Tool: "order_pizza", Arguments: domain.Arguments{}},
		{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{}},
		{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": "soon"}},
		{Tool: domain.ToolPlayMusic, Arguments: domain.Arguments{"song": "   "}},
	}
	for _, c := range cases {
		if _, _, err := v.Validate(c); !errors.Is(err, domain.ErrSchemaViolation) {
			t.Fatalf("%v: err=%v, want ErrSchemaViolation", c, err)
		}
	}
}

func TestBoundsAreNotClamped(t *testing.T) {
	cases := []struct {
		format domain.HourFormat
		call   domain.ToolCall
		field  string
	}{
		{domain.Hour24, domain.ToolCall{Tool: domain.ToolSetAlarm, Arguments: domain.Arguments{"hour": 25, "minute": 0}}, "hour"},
		{domain.Hour24, domain.ToolCall{Tool: domain.ToolSetAlarm, Arguments: domain.Arguments{"hour": 7, "minute": 60}}, "minute"},
		{domain.Hour12, domain.ToolCall{Tool: domain.ToolSetAlarm, Arguments: domain.Arguments{"hour": 0, "minute": 0}}, "hour"},
		{domain.Hour24, domain.ToolCall{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": 0}}, "minutes"},
		{domain.Hour24, domain.ToolCall{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": 1.5}}, "minutes"},
		{domain.Hour24, domain.ToolCall{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": 1e20}}, "minutes"},
		{domain.Hour24, domain.ToolCall{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": "-99999999999999999999"}}, "minutes"},
	}
	for _, tc := range cases {
		_, _, err := newValidator(tc.format).Validate(tc.call)
		var fe *domain.FieldError
		if !errors.As(err, &fe) || fe.Field != tc.field || !errors.Is(err, domain.ErrImplausibleValue) {
			t.Fatalf("%v: err=%v, want implausible %s", tc.call.Arguments, err, tc.field)
		}
	}
}

func TestHugeIntegerReportsTypedValue(t *testing.T) {
	_, _, err := newValidator(domain.Hour24).Validate(domain.ToolCall{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": 1e20}})
	if err == nil || !strings.Contains(err.Error(), "1e+20 is out of integer range") || strings.Contains(err.Error(), "-9223372036854775808") {
		t.Fatalf("err=%v", err)
	}
}

func TestMessagePunctuationRepair(t *testing.T) {
	v := newValidator(domain.Hour24)
	out, notes, err := v.Validate(domain.ToolCall{Tool: domain.ToolSendMessage, Arguments: domain.Arguments{"recipient": "Alice", "message": "good morning."}})
	if err != nil || out.Arguments["message"] != "good morning" || len(notes) == 0 {
		t.Fatalf("args=%v notes=%v err=%v", out.Arguments, notes, err)
	}
	out, _, _ = v.Validate(domain.ToolCall{Tool: domain.ToolSendMessage, Arguments: domain.Arguments{"recipient": "Al", "message": "are you up?"}})
	if out.Arguments["message"] != "are you up?" {
		t.Fatalf("question mark stripped: %v", out.Arguments["message"])
	}

	text := "Text Diego 'see you at 8.'"
	src := domain.Segment{Text: text, Form: normalize.New(text)}
	out, _, _ = v.Validate(domain.ToolCall{Tool: domain.ToolSendMessage, Arguments: domain.Arguments{"recipient": "Diego", "message": "see you at 8."}, Source: src})
	if out.Arguments["message"] != "see you at 8." {
		t.Fatalf("quoted period stripped: %v", out.Arguments["message"])
	}
}

func TestSongFiller(t *testing.T) {
	v := newValidator(domain.Hour24)
	out, _, err := v.Validate(domain.ToolCall{Tool: domain.ToolPlayMusic, Arguments: domain.Arguments{"song": "some lofi please"}})
	if err != nil || out.Arguments["song"] != "lofi" {
		t.Fatalf("song=%v err=%v", out.Arguments["song"], err)
	}
	out, _, _ = v.Validate(domain.ToolCall{Tool: domain.ToolPlayMusic, Arguments: domain.Arguments{"song": "focus music"}})
	if out.Arguments["song"] != "focus music" {
		t.Fatalf("song=%v, want focus music", out.Arguments["song"])
	}
}
