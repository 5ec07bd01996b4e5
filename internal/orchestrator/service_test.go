package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"intentc/internal/compiler"
	"intentc/internal/domain"
	"intentc/internal/llm"
	"intentc/internal/rules"
	"intentc/internal/schema"
)

type fakeProvider struct {
	calls []domain.ToolCall
	err   error
	mu    sync.Mutex
	seen  []llm.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Propose(_ context.Context, req llm.Request) ([]domain.ToolCall, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	return f.calls, f.err
}

type memStore struct {
	mu      sync.Mutex
	reports []domain.Report
	err     error
}

func (m *memStore) SaveReport(_ context.Context, r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func (m *memStore) RecentReports(_ context.Context, terminalID string, limit int) ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Report
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		if terminalID == "" || m.reports[i].TerminalID == terminalID {
			out = append(out, m.reports[i])
		}
	}
	return out, nil
}

func newService(t *testing.T, provider llm.Provider, store Store) (*Service, *Metrics) {
	t.Helper()
	table, err := rules.Default()
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	c := compiler.New(table, schema.Default(), compiler.Options{MinConfidence: 0.99})
	m := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{CacheTTL: time.Minute, FallbackModel: "m"}, c, provider, store, m, logger), m
}

func counterValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("read metric: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestCompileRulesPath(t *testing.T) {
	store := &memStore{}
	svc, m := newService(t, nil, store)
	rep, err := svc.Compile(context.Background(), Request{TerminalID: "t1", Text: "Set an alarm for 7:30 AM and play jazz"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if rep.RequestID == "" || rep.TerminalID != "t1" {
		t.Fatalf("ids: request=%q terminal=%q", rep.RequestID, rep.TerminalID)
	}
	if rep.Record.Source != domain.SourceRules || len(rep.Record.Calls) != 2 || rep.Record.Confidence != 1 {
		t.Fatalf("record=%+v", rep.Record)
	}
	if rep.Meta["hour_format"] != "24h" || rep.Meta["cache_hit"] != false {
		t.Fatalf("meta=%v", rep.Meta)
	}
	if len(store.reports) != 1 {
		t.Fatalf("saved=%d, want 1", len(store.reports))
	}
	if got := counterValue(t, m.Calls.WithLabelValues("set_alarm")); got != 1 {
		t.Fatalf("set_alarm calls metric=%v, want 1", got)
	}
	if got := counterValue(t, m.Compilations.WithLabelValues("emit", "rules")); got != 1 {
		t.Fatalf("compilations metric=%v, want 1", got)
	}
}

func TestCompileRejectsEmpty(t *testing.T) {
	svc, _ := newService(t, nil, nil)
	if _, err := svc.Compile(context.Background(), Request{Text: "  \n "}); !errors.Is(err, ErrEmptyUtterance) {
		t.Fatalf("err=%v, want ErrEmptyUtterance", err)
	}
}

func TestCompileCache(t *testing.T) {
	svc, m := newService(t, nil, nil)
	ctx := context.Background()
	first, _ := svc.Compile(ctx, Request{RequestID: "a", Text: "Play jazz"})
	second, _ := svc.Compile(ctx, Request{RequestID: "b", Text: "Play jazz"})
	if second.RequestID != "b" || second.Meta["cache_hit"] != true {
		t.Fatalf("second=%+v", second)
	}
	if counterValue(t, m.CacheHits) != 1 {
		t.Fatalf("cache hits=%v, want 1", counterValue(t, m.CacheHits))
	}
	second.Record.Calls[0].Arguments["song"] = "changed"
	third, _ := svc.Compile(ctx, Request{Text: "Play jazz"})
	if third.Record.Calls[0].Arguments["song"] != first.Record.Calls[0].Arguments["song"] {
		t.Fatalf("cached report mutated through a returned copy")
	}

	twelve, _ := svc.Compile(ctx, Request{Text: "Set an alarm for 3:05 PM", HourFormat: domain.Hour12})
	if twelve.Record.Calls[0].Arguments["hour"] != 3 || twelve.Meta["cache_hit"] != false {
		t.Fatalf("12h record=%+v meta=%v", twelve.Record, twelve.Meta)
	}
	twentyFour, _ := svc.Compile(ctx, Request{Text: "Set an alarm for 3:05 PM"})
	if twentyFour.Record.Calls[0].Arguments["hour"] != 15 {
		t.Fatalf("24h hour=%v, want 15", twentyFour.Record.Calls[0].Arguments["hour"])
	}
}

func TestCacheKeyIgnoresToolOrder(t *testing.T) {
	a := cacheKey(domain.Hour24, []domain.ToolName{domain.ToolSetAlarm, domain.ToolPlayMusic}, "x")
	b := cacheKey(domain.Hour24, []domain.ToolName{domain.ToolPlayMusic, domain.ToolSetAlarm, domain.ToolPlayMusic}, "x")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == cacheKey(domain.Hour12, nil, "x") {
		t.Fatalf("hour format not part of the key")
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name       string
		provider   *fakeProvider
		allowed    []domain.ToolName
		wantSource string
		wantCalls  int
		wantConf   float64
		wantAction string
	}{
		{
			name: "valid calls replace the rules record",
			provider: &fakeProvider{calls: []domain.ToolCall{
				{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": float64(10)}},
				{Tool: domain.ToolGetWeather, Arguments: domain.Arguments{"location": " Oslo "}},
			}},
			wantSource: domain.SourceFallback, wantCalls: 2, wantConf: 1, wantAction: domain.ActionEmit,
		},
		{
			name: "invalid calls are dropped",
			provider: &fakeProvider{calls: []domain.ToolCall{
				{Tool: domain.ToolSetTimer, Arguments: domain.Arguments{"minutes": float64(10)}},
				{Tool: domain.ToolSetAlarm, Arguments: domain.Arguments{"hour": float64(30), "minute": float64(0)}},
				{Tool: "fly_drone", Arguments: domain.Arguments{}},
			}},
			wantSource: domain.SourceFallback, wantCalls: 1, wantConf: 0.3333, wantAction: domain.ActionEmit,
		},
		{
			name: "disallowed tools are dropped",
			provider: &fakeProvider{calls: []domain.ToolCall{
				{Tool: domain.ToolGetWeather, Arguments: domain.Arguments{"location": "Oslo"}},
			}},
			allowed:    []domain.ToolName{domain.ToolSetTimer},
			wantSource: domain.SourceRules, wantCalls: 0, wantConf: 0, wantAction: domain.ActionFallback,
		},
		{
			name:       "provider error keeps the rules record",
			provider:   &fakeProvider{err: errors.New("boom")},
			wantSource: domain.SourceRules, wantCalls: 0, wantConf: 0, wantAction: domain.ActionFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, tt.provider, nil)
			rep, err := svc.Compile(context.Background(), Request{Text: "I need ten minutes and Oslo skies", Tools: tt.allowed})
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if rep.Record.Source != tt.wantSource || len(rep.Record.Calls) != tt.wantCalls || rep.Record.Confidence != tt.wantConf {
				t.Fatalf("record=%+v, want source %s calls %d confidence %v", rep.Record, tt.wantSource, tt.wantCalls, tt.wantConf)
			}
			if rep.Decision.Action != tt.wantAction {
				t.Fatalf("decision=%+v, want %s", rep.Decision, tt.wantAction)
			}
			if rep.Meta["fallback_provider"] != "fake" {
				t.Fatalf("meta=%v", rep.Meta)
			}
			if len(tt.provider.seen) != 1 || tt.provider.seen[0].Model != "m" {
				t.Fatalf("provider requests=%+v", tt.provider.seen)
			}
		})
	}
}

func TestFallbackNotCalledWhenConfident(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newService(t, p, nil)
	if _, err := svc.Compile(context.Background(), Request{Text: "Play jazz"}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(p.seen) != 0 {
		t.Fatalf("fallback called for a confident compile")
	}
}

func TestFallbackFailureIsNotCached(t *testing.T) {
	p := &fakeProvider{err: errors.New("down")}
	svc, _ := newService(t, p, nil)
	ctx := context.Background()
	_, _ = svc.Compile(ctx, Request{Text: "hello there"})
	_, _ = svc.Compile(ctx, Request{Text: "hello there"})
	if len(p.seen) != 2 {
		t.Fatalf("provider rounds=%d, want 2", len(p.seen))
	}
}

func TestHandleUtteranceAndRecent(t *testing.T) {
	store := &memStore{}
	svc, _ := newService(t, nil, store)
	ctx := context.Background()
	rep, err := svc.HandleUtterance(ctx, "t9", domain.UtteranceRequest{RequestID: "r1", Text: "set an alarm for 3:05 PM", HourFormat: "12h"}, []domain.ToolName{domain.ToolSetAlarm})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rep.RequestID != "r1" || rep.Record.Calls[0].Arguments["hour"] != 3 {
		t.Fatalf("report=%+v", rep)
	}
	if _, err := svc.HandleUtterance(ctx, "t9", domain.UtteranceRequest{Text: "x", HourFormat: "25h"}, nil); err == nil {
		t.Fatalf("bad hour format accepted")
	}
	recent, err := svc.RecentReports(ctx, "t9", 10)
	if err != nil || len(recent) != 1 || recent[0].RequestID != "r1" {
		t.Fatalf("recent=%v err=%v", recent, err)
	}

	noDB, _ := newService(t, nil, nil)
	if _, err := noDB.RecentReports(ctx, "", 10); !errors.Is(err, ErrNoStore) {
		t.Fatalf("err=%v, want ErrNoStore", err)
	}
}
