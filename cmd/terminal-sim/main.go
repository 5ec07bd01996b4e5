package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"intentc/internal/config"
	"intentc/internal/domain"
	"intentc/internal/mqtt"
)

// terminal-sim plays the device side of the MQTT bridge: it announces a tool
// subset, sends stdin lines as utterances and acknowledges invocations.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.LoadTerminalSimConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := startMQTT(ctx, cfg, logger)
	if err != nil {
		logger.Error("start terminal mqtt failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(100)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	topic := mqtt.TopicUtterance(cfg.MQTTTopicPrefix, cfg.TerminalID)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// Leave time for the last report to arrive.
				time.Sleep(2 * time.Second)
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			body, _ := json.Marshal(domain.UtteranceRequest{RequestID: uuid.NewString(), Text: line})
			if token := client.Publish(topic, 1, false, body); token.Wait() && token.Error() != nil {
				logger.Error("publish utterance failed", "error", token.Error())
			}
		}
	}
}

func startMQTT(ctx context.Context, cfg config.TerminalSimConfig, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	onlineTopic := mqtt.TopicOnline(cfg.MQTTTopicPrefix, cfg.TerminalID)
	opts.SetWill(onlineTopic, "offline", 1, true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	if token := client.Publish(onlineTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if err := publishSkills(client, cfg); err != nil {
		return nil, err
	}

	callsTopic := fmt.Sprintf("%s/terminal/%s/calls/+", cfg.MQTTTopicPrefix, cfg.TerminalID)
	if token := client.Subscribe(callsTopic, 1, func(_ paho.Client, msg paho.Message) {
		var report domain.Report
		if err := json.Unmarshal(msg.Payload(), &report); err != nil {
			logger.Error("invalid report payload", "error", err)
			return
		}
		fmt.Println(summarize(report))
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	invokeTopic := fmt.Sprintf("%s/terminal/%s/invoke/+", cfg.MQTTTopicPrefix, cfg.TerminalID)
	if token := client.Subscribe(invokeTopic, 1, func(_ paho.Client, msg paho.Message) {
		var req domain.InvokeRequest
		if err := json.Unmarshal(msg.Payload(), &req); err != nil {
			logger.Error("invalid invoke payload", "error", err)
			return
		}
		result := handleInvoke(req, cfg.Tools)
		fmt.Printf("  -> %s %s\n", req.Tool, string(result.Output))
		resultTopic := mqtt.TopicResult(cfg.MQTTTopicPrefix, cfg.TerminalID, req.RequestID)
		buf, _ := json.Marshal(result)
		if tk := client.Publish(resultTopic, 1, false, buf); tk.Wait() && tk.Error() != nil {
			logger.Error("publish result failed", "error", tk.Error())
		}
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	heartbeatTopic := mqtt.TopicHeartbeat(cfg.MQTTTopicPrefix, cfg.TerminalID)
	go func() {
		heartbeatTicker := time.NewTicker(cfg.HeartbeatInterval)
		defer heartbeatTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeatTicker.C:
				client.Publish(heartbeatTopic, 0, false, []byte("1"))
			}
		}
	}()

	return client, nil
}

func publishSkills(client paho.Client, cfg config.TerminalSimConfig) error {
	report := domain.SkillReport{TerminalID: cfg.TerminalID, SkillVersion: cfg.SkillVersion}
	for _, t := range cfg.Tools {
		report.Tools = append(report.Tools, string(t))
	}
	buf, err := json.Marshal(report)
	if err != nil {
		return err
	}
	topic := mqtt.TopicSkills(cfg.MQTTTopicPrefix, cfg.TerminalID)
	if token := client.Publish(topic, 1, true, buf); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func summarize(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s confidence=%.4f source=%s", r.RequestID, r.Decision.Action, r.Record.Confidence, r.Record.Source)
	for _, c := range r.Record.Calls {
		args, _ := json.Marshal(c.Arguments)
		fmt.Fprintf(&b, "\n  %s %s", c.Tool, args)
	}
	for _, s := range r.Segments {
		if s.Status != domain.StatusOK {
			fmt.Fprintf(&b, "\n  ! %q %s %s", s.Span.Text, s.Status, s.Reason)
		}
	}
	return b.String()
}

// handleInvoke acknowledges a call with a line describing what a real device would do.
func handleInvoke(req domain.InvokeRequest, supported []domain.ToolName) domain.InvokeResult {
	result := domain.InvokeResult{RequestID: req.RequestID}
	ok := false
	for _, t := range supported {
		if t == req.Tool {
			ok = true
			break
		}
	}
	if !ok {
		result.Error = fmt.Sprintf("tool %s is not supported by this terminal", req.Tool)
		return result
	}

	a := req.Arguments
	var action string
	switch req.Tool {
	case domain.ToolSetAlarm:
		action = fmt.Sprintf("alarm set for %02d:%02d", intArg(a["hour"]), intArg(a["minute"]))
	case domain.ToolSetTimer:
		action = fmt.Sprintf("timer started for %d min", intArg(a["minutes"]))
	case domain.ToolGetWeather:
		action = fmt.Sprintf("weather requested for %v", a["location"])
	case domain.ToolSendMessage:
		action = fmt.Sprintf("message to %v: %v", a["recipient"], a["message"])
	case domain.ToolCreateReminder:
		action = fmt.Sprintf("reminder %q at %v", a["title"], a["time"])
	case domain.ToolSearchContacts:
		action = fmt.Sprintf("contacts searched for %v", a["query"])
	case domain.ToolPlayMusic:
		action = fmt.Sprintf("now playing %v", a["song"])
	}
	out, _ := json.Marshal(map[string]string{"action": action})
	result.OK = true
	result.Output = out
	return result
}

// intArg reads a JSON number decoded as float64, or an int set in process.
func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
