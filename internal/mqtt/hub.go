package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"intentc/internal/domain"
	"intentc/internal/skills"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	// Dispatch publishes each compiled call to the terminal's invoke topic.
	Dispatch        bool
	DispatchTimeout time.Duration
}

// UtteranceHandler compiles an utterance received from a terminal.
type UtteranceHandler interface {
	HandleUtterance(ctx context.Context, terminalID string, req domain.UtteranceRequest, allowed []domain.ToolName) (domain.Report, error)
}

type Hub struct {
	cfg      HubConfig
	client   paho.Client
	registry *skills.Registry
	handler  UtteranceHandler
	logger   *slog.Logger
	publish  func(topic string, body []byte) error

	pendingMu sync.Mutex
	pending   map[string]chan domain.InvokeResult

	wg sync.WaitGroup
}

func NewHub(cfg HubConfig, registry *skills.Registry, handler UtteranceHandler, logger *slog.Logger) *Hub {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 8 * time.Second
	}
	h := &Hub{
		cfg:      cfg,
		registry: registry,
		handler:  handler,
		logger:   logger,
		pending:  make(map[string]chan domain.InvokeResult),
	}
	h.publish = h.publishMQTT
	return h
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})
	// Resubscribe after every reconnect; the session is not persistent.
	opts.SetOnConnectHandler(func(paho.Client) {
		if err := h.subscribeHandlers(); err != nil {
			h.logger.Error("mqtt subscribe failed", "error", err)
		}
	})

	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		h.wg.Wait()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) subscribeHandlers() error {
	subs := []struct {
		topic   string
		handler func(topic string, payload []byte)
	}{
		{TopicTerminalUtterance(h.cfg.TopicPrefix), h.handleUtterance},
		{TopicTerminalSkills(h.cfg.TopicPrefix), h.handleSkillReport},
		{TopicTerminalOnline(h.cfg.TopicPrefix), h.handleOnline},
		{TopicTerminalHeartbeat(h.cfg.TopicPrefix), h.handleHeartbeat},
		{TopicTerminalResult(h.cfg.TopicPrefix), h.handleInvokeResult},
	}
	for _, s := range subs {
		handle := s.handler
		cb := func(_ paho.Client, msg paho.Message) { handle(msg.Topic(), msg.Payload()) }
		if token := h.client.Subscribe(s.topic, 1, cb); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
		}
	}
	return nil
}

func (h *Hub) publishMQTT(topic string, body []byte) error {
	if h.client == nil {
		return errors.New("mqtt client not started")
	}
	if token := h.client.Publish(topic, 1, false, body); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// ParseUtterance accepts a JSON UtteranceRequest or plain text.
func ParseUtterance(payload []byte) (domain.UtteranceRequest, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return domain.UtteranceRequest{}, errors.New("empty utterance")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return domain.UtteranceRequest{Text: trimmed}, nil
	}
	var req domain.UtteranceRequest
	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return domain.UtteranceRequest{}, fmt.Errorf("decode utterance: %w", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return domain.UtteranceRequest{}, errors.New("empty utterance")
	}
	return req, nil
}

func (h *Hub) handleUtterance(topic string, payload []byte) {
	terminalID, err := ParseTerminalID(topic, h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid utterance topic", "topic", topic, "error", err)
		return
	}
	req, err := ParseUtterance(payload)
	if err != nil {
		h.logger.Warn("invalid utterance payload", "terminal_id", terminalID, "error", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var allowed []domain.ToolName
	if len(req.Tools) > 0 {
		allowed, err = domain.ParseToolNames(req.Tools)
		if err != nil {
			h.logger.Warn("invalid utterance tools", "terminal_id", terminalID, "request_id", req.RequestID, "error", err)
			return
		}
	} else {
		allowed = h.registry.Tools(terminalID)
	}

	// paho delivers messages on one goroutine; compiling and dispatching here
	// would block invoke results from arriving.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.process(terminalID, req, allowed)
	}()
}

func (h *Hub) process(terminalID string, req domain.UtteranceRequest, allowed []domain.ToolName) {
	ctx := context.Background()
	report, err := h.handler.HandleUtterance(ctx, terminalID, req, allowed)
	if err != nil {
		h.logger.Error("compile utterance failed", "terminal_id", terminalID, "request_id", req.RequestID, "error", err)
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		h.logger.Error("encode report failed", "request_id", req.RequestID, "error", err)
		return
	}
	if err := h.publish(TopicCalls(h.cfg.TopicPrefix, terminalID, req.RequestID), body); err != nil {
		h.logger.Error("publish calls failed", "terminal_id", terminalID, "request_id", req.RequestID, "error", err)
		return
	}
	h.logger.Info("utterance compiled",
		"terminal_id", terminalID,
		"request_id", req.RequestID,
		"calls", len(report.Record.Calls),
		"confidence", report.Record.Confidence,
		"source", report.Record.Source,
	)

	if h.cfg.Dispatch && report.Decision.Action == domain.ActionEmit {
		h.dispatch(ctx, terminalID, report.Record.Calls)
	}
}

// dispatch invokes calls in order and stops at the first failure.
func (h *Hub) dispatch(ctx context.Context, terminalID string, calls []domain.ToolCall) {
	for i, call := range calls {
		callCtx, cancel := context.WithTimeout(ctx, h.cfg.DispatchTimeout)
		_, err := h.InvokeTool(callCtx, terminalID, call)
		cancel()
		if err != nil {
			h.logger.Warn("tool invocation failed", "terminal_id", terminalID, "tool", call.Tool, "index", i, "error", err)
			return
		}
	}
}

func (h *Hub) handleSkillReport(topic string, payload []byte) {
	terminalID, err := ParseTerminalID(topic, h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid skill topic", "topic", topic, "error", err)
		return
	}

	var report domain.SkillReport
	if err := json.Unmarshal(payload, &report); err != nil {
		// backward compatible: payload can be a bare array of tool names
		var toolsOnly []string
		if err2 := json.Unmarshal(payload, &toolsOnly); err2 != nil {
			h.logger.Warn("invalid skill payload", "terminal_id", terminalID, "error", err)
			return
		}
		report = domain.SkillReport{TerminalID: terminalID, Tools: toolsOnly}
	}
	if report.TerminalID == "" {
		report.TerminalID = terminalID
	}
	if report.TerminalID != terminalID {
		h.logger.Warn("skill report terminal mismatch", "topic_terminal", terminalID, "payload_terminal", report.TerminalID)
		return
	}
	tools, err := domain.ParseToolNames(report.Tools)
	if err != nil {
		h.logger.Warn("invalid skill report", "terminal_id", terminalID, "error", err)
		return
	}

	if !h.registry.SetTools(terminalID, report.SkillVersion, tools) {
		h.logger.Info("stale skill report ignored", "terminal_id", terminalID, "skill_version", report.SkillVersion)
		return
	}
	h.logger.Info("skills updated", "terminal_id", terminalID, "skill_version", report.SkillVersion, "tool_count", len(tools))
}

func (h *Hub) handleOnline(topic string, payload []byte) {
	terminalID, err := ParseTerminalID(topic, h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid online topic", "topic", topic, "error", err)
		return
	}

	p := strings.TrimSpace(strings.ToLower(string(payload)))
	online := p == "1" || p == "true" || p == "online"
	h.registry.SetOnline(terminalID, online)
	h.logger.Info("terminal online status", "terminal_id", terminalID, "online", online)
}

func (h *Hub) handleHeartbeat(topic string, _ []byte) {
	terminalID, err := ParseTerminalID(topic, h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid heartbeat topic", "topic", topic, "error", err)
		return
	}
	h.registry.SetOnline(terminalID, true)
}

func (h *Hub) handleInvokeResult(topic string, payload []byte) {
	requestID := ParseRequestID(topic)
	if requestID == "" {
		return
	}

	var result domain.InvokeResult
	if err := json.Unmarshal(payload, &result); err != nil {
		h.logger.Warn("invalid invoke result", "topic", topic, "error", err)
		return
	}
	if result.RequestID == "" {
		result.RequestID = requestID
	}

	h.pendingMu.Lock()
	ch, ok := h.pending[result.RequestID]
	h.pendingMu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- result:
	default:
	}
}

// InvokeTool publishes one call to a terminal and waits for its result.
func (h *Hub) InvokeTool(ctx context.Context, terminalID string, call domain.ToolCall) (domain.InvokeResult, error) {
	requestID := uuid.NewString()
	payload := domain.InvokeRequest{
		RequestID: requestID,
		Tool:      call.Tool,
		Arguments: call.Arguments,
	}
	if payload.Arguments == nil {
		payload.Arguments = domain.Arguments{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.InvokeResult{}, err
	}

	resultCh := make(chan domain.InvokeResult, 1)
	h.pendingMu.Lock()
	h.pending[requestID] = resultCh
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, requestID)
		h.pendingMu.Unlock()
	}()

	if err := h.publish(TopicInvoke(h.cfg.TopicPrefix, terminalID, requestID), body); err != nil {
		return domain.InvokeResult{}, err
	}

	select {
	case <-ctx.Done():
		return domain.InvokeResult{}, ctx.Err()
	case result := <-resultCh:
		if !result.OK {
			if result.Error == "" {
				result.Error = "tool invocation failed"
			}
			return result, fmt.Errorf("%s", result.Error)
		}
		return result, nil
	}
}
