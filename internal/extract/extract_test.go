package extract

import (
	"errors"
	"testing"

	"intentc/internal/classify"
	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/rules"
	"intentc/internal/segment"
)

type harness struct {
	seg *segment.Segmenter
	cls *classify.Classifier
	ext *Extractor
}

func newHarness(t *testing.T, format domain.HourFormat) harness {
	t.Helper()
	table, err := rules.Default()
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	return harness{
		seg: segment.New(table),
		cls: classify.New(table),
		ext: New(table, Options{HourFormat: format}),
	}
}

func (h harness) run(t *testing.T, text string, ctx Context) (domain.ToolName, domain.Arguments, error) {
	t.Helper()
	segs := h.seg.All(normalize.New(text))
	if len(segs) != 1 {
		t.Fatalf("%q: segments=%d, want 1", text, len(segs))
	}
	m := h.cls.Classify(segs[0], nil)
	if !m.Matched() {
		t.Fatalf("%q: unclassified", text)
	}
	args, err := h.ext.Extract(segs[0], m, ctx)
	return m.Tool, args, err
}

func TestFindClock(t *testing.T) {
	cases := []struct {
		in           string
		hour, minute int
		mer          meridiem
	}{
		{"set an alarm for 7:30 am", 7, 30, meridiemAM},
		{"wake me at 10:30pm", 10, 30, meridiemPM},
		{"alarm for 6 a.m", 6, 0, meridiemAM},
		{"alarm at noon", 12, 0, meridiemFixed},
		{"alarm at midnight", 0, 0, meridiemFixed},
		{"alarm for half past seven", 7, 30, meridiemNone},
		{"alarm for quarter past 6", 6, 15, meridiemNone},
		{"alarm for quarter to 8", 7, 45, meridiemNone},
		{"alarm for 10 minutes to 9 pm", 20, 50, meridiemFixed},
		{"alarm at seven o'clock", 7, 0, meridiemNone},
		{"alarm at seven thirty", 7, 30, meridiemNone},
		{"alarm for six fifteen pm", 6, 15, meridiemPM},
		{"alarm at 5", 5, 0, meridiemNone},
	}
	for _, tc := range cases {
		c, ok := findClock(tc.in)
		if !ok {
			t.Fatalf("%q: no clock found", tc.in)
		}
		if c.Hour != tc.hour || c.Minute != tc.minute || c.Meridiem != tc.mer {
			t.Fatalf("%q: clock=%d:%02d mer=%d, want %d:%02d mer=%d", tc.in, c.Hour, c.Minute, c.Meridiem, tc.hour, tc.minute, tc.mer)
		}
	}
	if _, ok := findClock("set a timer for 5 minutes"); ok {
		t.Fatalf("duration read as a clock")
	}
}

func TestFindDuration(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"start a 25 minute countdown", 25},
		{"set a timer for 12 minutes", 12},
		{"timer for half an hour", 30},
		{"timer for an hour", 60},
		{"timer for a quarter of an hour", 15},
		{"timer for an hour and a half", 90},
		{"timer for 2 and a half hours", 150},
		{"timer for 1.5 hours", 90},
		{"timer for 1 hour 30 minutes", 90},
		{"timer for an hour and 15 minutes", 75},
		{"timer for ninety seconds", 1.5},
		{"timer for twenty-five mins", 25},
	}
	for _, tc := range cases {
		d, ok := findDuration(tc.in)
		if !ok {
			t.Fatalf("%q: no duration", tc.in)
		}
		if d.minutes != tc.want {
			t.Fatalf("%q: minutes=%v, want %v", tc.in, d.minutes, tc.want)
		}
	}
}

func TestAlarmHourFormat(t *testing.T) {
	h24 := newHarness(t, domain.Hour24)
	h12 := newHarness(t, domain.Hour12)
	cases := []struct {
		in         string
		want24     int
		want12     int
		wantMinute int
	}{
		{"Set an alarm for 7:30 AM", 7, 7, 30},
		{"Set an alarm for 3:05 PM", 15, 3, 5},
		{"Set an alarm for noon", 12, 12, 0},
		{"Wake me up at midnight", 0, 12, 0},
		{"Set an alarm for 8 tonight", 20, 8, 0},
		{"Set an alarm for quarter to 8", 7, 7, 45},
	}
	for _, tc := range cases {
		_, args, err := h24.run(t, tc.in, Context{})
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if args["hour"] != tc.want24 || args["minute"] != tc.wantMinute {
			t.Fatalf("%q 24h: args=%v, want hour %d minute %d", tc.in, args, tc.want24, tc.wantMinute)
		}
		_, args, err = h12.run(t, tc.in, Context{})
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if args["hour"] != tc.want12 {
			t.Fatalf("%q 12h: hour=%v, want %d", tc.in, args["hour"], tc.want12)
		}
	}
}

func TestTimerRejectsFractionalMinutes(t *testing.T) {
	h := newHarness(t, domain.Hour24)
	_, _, err := h.run(t, "Set a timer for 90 seconds", Context{})
	if !errors.Is(err, domain.ErrImplausibleValue) {
		t.Fatalf("err=%v, want ErrImplausibleValue", err)
	}
	_, args, err := h.run(t, "Set a timer for 120 seconds", Context{})
	if err != nil || args["minutes"] != 2 {
		t.Fatalf("args=%v err=%v, want minutes 2", args, err)
	}
}

func TestTimerOutOfIntRange(t *testing.T) {
	h := newHarness(t, domain.Hour24)
	_, _, err := h.run(t, "Set a timer for 99999999999999999999 minutes", Context{})
	var fe *domain.FieldError
	if !errors.As(err, &fe) || !errors.Is(err, domain.ErrImplausibleValue) {
		t.Fatalf("err=%v, want ErrImplausibleValue", err)
	}
	if v, ok := fe.Value.(float64); !ok || v != 1e20 {
		t.Fatalf("value=%v (%T), want 1e+20", fe.Value, fe.Value)
	}
}

func TestSlotExtraction(t *testing.T) {
	h := newHarness(t, domain.Hour24)
	cases := []struct {
		in   string
		tool domain.ToolName
		want domain.Arguments
	}{
		{"What's the weather in Paris today", domain.ToolGetWeather, domain.Arguments{"location": "Paris"}},
		{"What's the weather in Vancouver right now?", domain.ToolGetWeather, domain.Arguments{"location": "Vancouver"}},
		{"How's the weather at the moment in Denver", domain.ToolGetWeather, domain.Arguments{"location": "Denver"}},
		{"Give me the Tokyo forecast", domain.ToolGetWeather, domain.Arguments{"location": "Tokyo"}},
		{"Text Emma saying good night.", domain.ToolSendMessage, domain.Arguments{"recipient": "Emma", "message": "good night"}},
		{"Text Priya: checking in—are we still on for today?", domain.ToolSendMessage, domain.Arguments{"recipient": "Priya", "message": "checking in—are we still on for today?"}},
		{"Send Chen a quick note: running 10 min late.", domain.ToolSendMessage, domain.Arguments{"recipient": "Chen", "message": "running 10 min late"}},
		{"Send a message to Dr. Patel saying the results are in", domain.ToolSendMessage, domain.Arguments{"recipient": "Patel", "message": "the results are in"}},
		{"Text Diego 'see you at 8.'", domain.ToolSendMessage, domain.Arguments{"recipient": "Diego", "message": "see you at 8."}},
		{"Tell Sam I'm running late", domain.ToolSendMessage, domain.Arguments{"recipient": "Sam", "message": "I'm running late"}},
		{"Let Omar know that dinner is ready", domain.ToolSendMessage, domain.Arguments{"recipient": "Omar", "message": "dinner is ready"}},
		{"Remind me to pay rent at 9:30 AM", domain.ToolCreateReminder, domain.Arguments{"title": "pay rent", "time": "9:30 AM"}},
		{"Set a reminder to pick up laundry at 7:20 PM", domain.ToolCreateReminder, domain.Arguments{"title": "pick up laundry", "time": "7:20 PM"}},
		{"Remind me about the dentist tomorrow at 9am", domain.ToolCreateReminder, domain.Arguments{"title": "dentist", "time": "tomorrow 9:00 AM"}},
		{"Remind me in 20 minutes to check the oven", domain.ToolCreateReminder, domain.Arguments{"title": "check the oven", "time": "in 20 minutes"}},
		{"Find Omar in my contacts", domain.ToolSearchContacts, domain.Arguments{"query": "Omar"}},
		{"Search my contacts for Dave Lee", domain.ToolSearchContacts, domain.Arguments{"query": "Dave Lee"}},
		{"Look up Jenna's phone number", domain.ToolSearchContacts, domain.Arguments{"query": "Jenna"}},
		{"Play some jazz music.", domain.ToolPlayMusic, domain.Arguments{"song": "jazz"}},
		{"Play focus music", domain.ToolPlayMusic, domain.Arguments{"song": "focus music"}},
		{"Put on some synthwave", domain.ToolPlayMusic, domain.Arguments{"song": "synthwave"}},
		{"Play \"Take Five\".", domain.ToolPlayMusic, domain.Arguments{"song": "Take Five"}},
		{"Play me Bohemian Rhapsody by Queen please", domain.ToolPlayMusic, domain.Arguments{"song": "Bohemian Rhapsody by Queen"}},
	}
	for _, tc := range cases {
		tool, args, err := h.run(t, tc.in, Context{})
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if tool != tc.tool {
			t.Fatalf("%q: tool=%s, want %s", tc.in, tool, tc.tool)
		}
		if len(args) != len(tc.want) {
			t.Fatalf("%q: args=%v, want %v", tc.in, args, tc.want)
		}
		for k, v := range tc.want {
			if args[k] != v {
				t.Fatalf("%q: %s=%q, want %q", tc.in, k, args[k], v)
			}
		}
	}
}

func TestRecipientCarryOver(t *testing.T) {
	h := newHarness(t, domain.Hour24)
	ctx := Context{}.Observe(domain.ToolCall{Tool: domain.ToolSearchContacts, Arguments: domain.Arguments{"query": "Ravi"}})
	_, args, err := h.run(t, "message him 'joining in 5'", ctx)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if args["recipient"] != "Ravi" || args["message"] != "joining in 5" {
		t.Fatalf("args=%v", args)
	}
	_, args, err = h.run(t, "send: are you near the office?", Context{LastPerson: "Lina"})
	if err != nil || args["recipient"] != "Lina" || args["message"] != "are you near the office?" {
		t.Fatalf("args=%v err=%v", args, err)
	}
	_, _, err = h.run(t, "message him 'hi'", Context{})
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "recipient" || !errors.Is(err, domain.ErrExtractionIncomplete) {
		t.Fatalf("err=%v, want incomplete recipient", err)
	}
}

func TestMissingSlots(t *testing.T) {
	h := newHarness(t, domain.Hour24)
	cases := []struct {
		in    string
		field string
	}{
		{"Set an alarm", "hour"},
		{"Start a timer", "minutes"},
		{"Remind me to call mom", "time"},
		{"What's the weather like", "location"},
		{"Text Bob", "message"},
		{"Play some music", "song"},
		{"Play music", "song"},
		{"Put on some tunes please", "song"},
	}
	for _, tc := range cases {
		_, _, err := h.run(t, tc.in, Context{})
		var fe *domain.FieldError
		if !errors.As(err, &fe) || fe.Field != tc.field || !errors.Is(err, domain.ErrExtractionIncomplete) {
			t.Fatalf("%q: err=%v, want incomplete %s", tc.in, err, tc.field)
		}
	}
}
