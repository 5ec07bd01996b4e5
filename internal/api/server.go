package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"intentc/internal/domain"
	"intentc/internal/orchestrator"
	"intentc/internal/skills"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBatchItems   = 64
)

type Config struct {
	MaxBodyBytes int64
	BatchLimit   int
}

type Server struct {
	cfg      Config
	svc      *orchestrator.Service
	registry *skills.Registry
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New builds the HTTP surface. registry and gatherer may be nil.
func New(cfg Config, svc *orchestrator.Service, registry *skills.Registry, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 8
	}
	return &Server{
		cfg:      cfg,
		svc:      svc,
		registry: registry,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// CompileRequest is the body of /v1/compile and one item of a batch.
type CompileRequest struct {
	Text       string   `json:"text"`
	Tools      []string `json:"tools,omitempty"`
	HourFormat string   `json:"hour_format,omitempty"`
	TerminalID string   `json:"terminal_id,omitempty"`
	Explain    bool     `json:"explain,omitempty"`
}

type batchRequest struct {
	Items []CompileRequest `json:"items"`
}

type batchResult struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/tools", s.handleTools)
	r.Post("/v1/compile", s.handleCompile)
	r.Post("/v1/compile/batch", s.handleBatch)
	r.Get("/v1/compilations", s.handleCompilations)
	r.Get("/v1/terminals", s.handleTerminals)
	r.Get("/v1/stream", s.handleStream)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c := s.svc.Compiler()
	names := make([]string, 0, len(c.Registry().Tools()))
	for _, t := range c.Registry().Tools() {
		names = append(names, string(t.Name))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"rules_version": c.Table().Version,
		"hour_format":   c.HourFormat(),
		"tools":         names,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, req *http.Request) {
	var raw []string
	if v := req.URL.Query().Get("tools"); v != "" {
		raw = strings.Split(v, ",")
	}
	allowed, err := domain.ParseToolNames(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Compiler().Registry().Definitions(allowed))
}

func (s *Server) handleCompile(w http.ResponseWriter, req *http.Request) {
	var in CompileRequest
	if err := decodeJSONBody(req, s.cfg.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	requestID := req.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)

	out, status, err := s.compile(req.Context(), requestID, in)
	if err != nil {
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBatch(w http.ResponseWriter, req *http.Request) {
	var in batchRequest
	if err := decodeJSONBody(req, s.cfg.MaxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if len(in.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "items is required"})
		return
	}
	if len(in.Items) > maxBatchItems {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("at most %d items per batch", maxBatchItems)})
		return
	}

	results := make([]batchResult, len(in.Items))
	g, gctx := errgroup.WithContext(req.Context())
	g.SetLimit(s.cfg.BatchLimit)
	for i, item := range in.Items {
		g.Go(func() error {
			out, _, err := s.compile(gctx, uuid.NewString(), item)
			if err != nil {
				results[i] = batchResult{Error: err.Error()}
				return nil
			}
			results[i] = batchResult{Result: out}
			return nil
		})
	}
	_ = g.Wait()
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleCompilations(w http.ResponseWriter, req *http.Request) {
	limit := 20
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	reports, err := s.svc.RecentReports(req.Context(), req.URL.Query().Get("terminal_id"), limit)
	if errors.Is(err, orchestrator.ErrNoStore) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("list compilations failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"compilations": reports})
}

func (s *Server) handleTerminals(w http.ResponseWriter, _ *http.Request) {
	states := []skills.TerminalState{}
	if s.registry != nil {
		states = s.registry.ListOnlineStates()
	}
	writeJSON(w, http.StatusOK, map[string]any{"terminals": states})
}

// compile returns the record, or the full report when explain is set.
func (s *Server) compile(ctx context.Context, requestID string, in CompileRequest) (any, int, error) {
	allowed, err := domain.ParseToolNames(in.Tools)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	if len(allowed) == 0 && in.TerminalID != "" && s.registry != nil {
		allowed = s.registry.Tools(in.TerminalID)
	}
	hourFormat, err := domain.ParseHourFormat(in.HourFormat)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	report, err := s.svc.Compile(ctx, orchestrator.Request{
		RequestID:  requestID,
		TerminalID: in.TerminalID,
		Text:       in.Text,
		Tools:      allowed,
		HourFormat: hourFormat,
	})
	if errors.Is(err, orchestrator.ErrEmptyUtterance) {
		return nil, http.StatusBadRequest, err
	}
	if err != nil {
		s.logger.Error("compile failed", "request_id", requestID, "error", err)
		return nil, http.StatusInternalServerError, err
	}
	if in.Explain {
		return report, http.StatusOK, nil
	}
	return report.Record, http.StatusOK, nil
}

func decodeJSONBody(req *http.Request, maxBytes int64, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return fmt.Errorf("request body too large")
	}
	return decodeStrict(data, out)
}

func decodeStrict(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid json: multiple JSON values")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
