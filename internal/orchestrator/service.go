package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"intentc/internal/compiler"
	"intentc/internal/domain"
	"intentc/internal/llm"
)

var (
	ErrEmptyUtterance = errors.New("utterance is empty")
	ErrNoStore        = errors.New("compile log is not configured")
)

// Store persists compile reports.
type Store interface {
	SaveReport(ctx context.Context, report domain.Report) error
	RecentReports(ctx context.Context, terminalID string, limit int) ([]domain.Report, error)
}

type Config struct {
	FallbackModel   string
	FallbackTimeout time.Duration
	CacheTTL        time.Duration
}

// Request is one compile as seen by the service layer.
type Request struct {
	RequestID  string
	TerminalID string
	Text       string
	Tools      []domain.ToolName
	HourFormat domain.HourFormat
}

type Service struct {
	cfg       Config
	base      *compiler.Compiler
	compilers map[domain.HourFormat]*compiler.Compiler
	provider  llm.Provider
	store     Store
	cache     *cache.Cache
	metrics   *Metrics
	logger    *slog.Logger
}

// New wires the compiler with its optional collaborators. provider, store
// and metrics may be nil.
func New(cfg Config, c *compiler.Compiler, provider llm.Provider, store Store, metrics *Metrics, logger *slog.Logger) *Service {
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Service{
		cfg:  cfg,
		base: c,
		compilers: map[domain.HourFormat]*compiler.Compiler{
			domain.Hour24: c.WithHourFormat(domain.Hour24),
			domain.Hour12: c.WithHourFormat(domain.Hour12),
		},
		provider: provider,
		store:    store,
		cache:    cache.New(ttl, 10*time.Minute),
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Service) Compiler() *compiler.Compiler { return s.base }

// Compile runs the rules, hands low-confidence results to the fallback
// model when one is configured, and records the outcome.
func (s *Service) Compile(ctx context.Context, req Request) (domain.Report, error) {
	started := time.Now()
	if strings.TrimSpace(req.Text) == "" {
		return domain.Report{}, ErrEmptyUtterance
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	c := s.compilerFor(req.HourFormat)
	key := cacheKey(c.HourFormat(), req.Tools, req.Text)

	var report domain.Report
	hit := false
	if cached, ok := s.cache.Get(key); ok {
		report = cloneReport(cached.(domain.Report))
		report.CreatedAt = time.Now().UTC()
		hit = true
	} else {
		report = c.Compile(req.Text, req.Tools)
		report.Record.Source = domain.SourceRules
		report.Meta = map[string]any{}
		s.observeRules(report)

		cacheable := true
		if report.Decision.Action == domain.ActionFallback && s.provider != nil {
			if err := s.fallback(ctx, c, &report, req.Tools, started); err != nil {
				cacheable = false
				s.logger.Warn("fallback failed, keeping rules result", "request_id", req.RequestID, "error", err)
			}
		}
		if cacheable {
			s.cache.Set(key, cloneReport(report), cache.DefaultExpiration)
		}
	}

	report.RequestID = req.RequestID
	report.TerminalID = req.TerminalID
	if report.Meta == nil {
		report.Meta = map[string]any{}
	}
	report.Meta["hour_format"] = string(c.HourFormat())
	report.Meta["cache_hit"] = hit
	s.observe(report, hit, started)

	if s.store != nil {
		if err := s.store.SaveReport(ctx, report); err != nil {
			s.logger.Warn("save compilation failed", "request_id", req.RequestID, "error", err)
		}
	}
	return report, nil
}

// HandleUtterance compiles text received from a terminal over MQTT.
func (s *Service) HandleUtterance(ctx context.Context, terminalID string, req domain.UtteranceRequest, allowed []domain.ToolName) (domain.Report, error) {
	hourFormat, err := domain.ParseHourFormat(req.HourFormat)
	if err != nil {
		return domain.Report{}, err
	}
	return s.Compile(ctx, Request{
		RequestID:  req.RequestID,
		TerminalID: terminalID,
		Text:       req.Text,
		Tools:      allowed,
		HourFormat: hourFormat,
	})
}

func (s *Service) RecentReports(ctx context.Context, terminalID string, limit int) ([]domain.Report, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	reports, err := s.store.RecentReports(ctx, terminalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list compilations: %w", err)
	}
	return reports, nil
}

func (s *Service) compilerFor(format domain.HourFormat) *compiler.Compiler {
	if c, ok := s.compilers[format]; ok {
		return c
	}
	return s.base
}

func (s *Service) fallback(ctx context.Context, c *compiler.Compiler, report *domain.Report, allowed []domain.ToolName, started time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FallbackTimeout)
	defer cancel()

	report.Meta["fallback_provider"] = s.provider.Name()
	proposed, err := s.provider.Propose(ctx, llm.Request{
		Model:     s.cfg.FallbackModel,
		Utterance: report.Utterance,
		Tools:     c.Registry().Definitions(allowed),
	})
	if err != nil {
		s.metrics.FallbackResults.WithLabelValues("error").Inc()
		report.Meta["fallback_error"] = err.Error()
		return fmt.Errorf("fallback %s: %w", s.provider.Name(), err)
	}

	calls := make([]domain.ToolCall, 0, len(proposed))
	var rejected []string
	for _, p := range proposed {
		if len(allowed) > 0 && !slices.Contains(allowed, p.Tool) {
			rejected = append(rejected, fmt.Sprintf("%s: tool not allowed", p.Tool))
			continue
		}
		call, _, err := c.Validator().Validate(p)
		if err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		calls = append(calls, call)
	}
	if len(rejected) > 0 {
		report.Meta["fallback_rejected"] = rejected
	}
	if len(calls) == 0 {
		s.metrics.FallbackResults.WithLabelValues("rejected").Inc()
		return fmt.Errorf("fallback %s: no valid calls among %d proposed", s.provider.Name(), len(proposed))
	}

	s.metrics.FallbackResults.WithLabelValues("used").Inc()
	report.Record = domain.OutputRecord{
		Calls:       calls,
		Confidence:  math.Round(float64(len(calls))/float64(len(proposed))*1e4) / 1e4,
		Source:      domain.SourceFallback,
		TotalTimeMS: compiler.RoundMillis(time.Since(started)),
	}
	report.Decision = domain.Decision{
		Action: domain.ActionEmit,
		Reason: fmt.Sprintf("fallback model: %d of %d proposed calls valid", len(calls), len(proposed)),
	}
	return nil
}

func (s *Service) observeRules(report domain.Report) {
	s.metrics.Confidence.Observe(report.Record.Confidence)
	for _, seg := range report.Segments {
		s.metrics.Segments.WithLabelValues(seg.Status).Inc()
	}
}

func (s *Service) observe(report domain.Report, hit bool, started time.Time) {
	if hit {
		s.metrics.CacheHits.Inc()
	}
	s.metrics.Compilations.WithLabelValues(report.Decision.Action, report.Record.Source).Inc()
	for _, call := range report.Record.Calls {
		s.metrics.Calls.WithLabelValues(string(call.Tool)).Inc()
	}
	s.metrics.CompileLatency.Observe(time.Since(started).Seconds())
}

func cacheKey(format domain.HourFormat, tools []domain.ToolName, text string) string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, string(t))
	}
	slices.Sort(names)
	names = slices.Compact(names)
	return string(format) + "|" + strings.Join(names, ",") + "|" + text
}

func cloneReport(r domain.Report) domain.Report {
	out := r
	out.Record.Calls = make([]domain.ToolCall, len(r.Record.Calls))
	for i, c := range r.Record.Calls {
		c.Arguments = c.Arguments.Clone()
		out.Record.Calls[i] = c
	}
	out.Segments = make([]domain.SegmentReport, len(r.Segments))
	for i, seg := range r.Segments {
		seg.Arguments = seg.Arguments.Clone()
		seg.Repairs = slices.Clone(seg.Repairs)
		out.Segments[i] = seg
	}
	if r.Meta != nil {
		out.Meta = make(map[string]any, len(r.Meta))
		for k, v := range r.Meta {
			out.Meta[k] = v
		}
	}
	return out
}
