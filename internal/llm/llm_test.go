package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"intentc/internal/domain"
	"intentc/internal/schema"
)

func TestOpenAIProposeParsesToolCalls(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth=%q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"tool_calls":[
			{"id":"1","type":"function","function":{"name":"set_alarm","arguments":"{\"hour\":7,\"minute\":30}"}},
			{"id":"2","type":"function","function":{"name":"get_weather","arguments":"{\"location\":\"Oslo\"}"}}
		]}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.Client(), srv.URL+"/", "k")
	defs := schema.Default().Definitions([]domain.ToolName{domain.ToolSetAlarm, domain.ToolGetWeather})
	calls, err := p.Propose(context.Background(), Request{Model: "m", Utterance: "wake me at 7:30 and weather in Oslo", Tools: defs})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(calls) != 2 || calls[0].Tool != domain.ToolSetAlarm || calls[1].Arguments["location"] != "Oslo" {
		t.Fatalf("calls=%v", calls)
	}
	if calls[0].Arguments["hour"] != float64(7) {
		t.Fatalf("hour=%#v, want raw json number", calls[0].Arguments["hour"])
	}
	if got.Model != "m" || len(got.Tools) != 2 || got.ToolChoice != "auto" || len(got.Messages) != 2 {
		t.Fatalf("request=%+v", got)
	}
}

func TestOpenAIProposeErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		noCall bool
	}{
		{"status", http.StatusBadGateway, `upstream down`, false},
		{"api error", http.StatusOK, `{"error":{"message":"bad key"}}`, false},
		{"empty", http.StatusOK, `{"choices":[]}`, false},
		{"text only", http.StatusOK, `{"choices":[{"message":{"content":"sure"}}]}`, true},
		{"bad args", http.StatusOK, `{"choices":[{"message":{"tool_calls":[{"function":{"name":"set_timer","arguments":"{"}}]}}]}`, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		}))
		_, err := NewOpenAIProvider(srv.Client(), srv.URL, "k").Propose(context.Background(), Request{Utterance: "x"})
		srv.Close()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if errors.Is(err, ErrNoCalls) != tc.noCall {
			t.Fatalf("%s: err=%v, ErrNoCalls=%v", tc.name, err, tc.noCall)
		}
	}
}

func TestClaudeProposeParsesToolUse(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "k" {
			t.Errorf("path=%s key=%q", r.URL.Path, r.Header.Get("x-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, `{"content":[
			{"type":"text","text":"ok"},
			{"type":"tool_use","id":"t1","name":"set_timer","input":{"minutes":5}}
		]}`)
	}))
	defer srv.Close()

	p := NewClaudeProvider(srv.Client(), srv.URL, "k")
	calls, err := p.Propose(context.Background(), Request{Model: "m", Utterance: "5 minute timer", Tools: schema.Default().Definitions(nil)})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(calls) != 1 || calls[0].Tool != domain.ToolSetTimer || calls[0].Arguments["minutes"] != float64(5) {
		t.Fatalf("calls=%v", calls)
	}
	if len(got.Tools) != 7 || got.System == "" || got.Tools[0].InputSchema == nil {
		t.Fatalf("request=%+v", got)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{Provider: "none"})
	if err != nil || p != nil {
		t.Fatalf("none: p=%v err=%v", p, err)
	}
	p, err = NewProvider(Config{Provider: "openai", OpenAIBaseURL: "http://x"})
	if err != nil || p.Name() != "openai" {
		t.Fatalf("openai: p=%v err=%v", p, err)
	}
	p, err = NewProvider(Config{Provider: "claude"})
	if err != nil || p.Name() != "claude" {
		t.Fatalf("claude: p=%v err=%v", p, err)
	}
	if _, err := NewProvider(Config{Provider: "gemini"}); err == nil {
		t.Fatalf("unknown provider accepted")
	}
}
