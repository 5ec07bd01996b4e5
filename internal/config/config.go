package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"intentc/internal/domain"
)

type IntentServerConfig struct {
	HTTPAddr         string
	MaxBodyBytes     int64
	HourFormat       domain.HourFormat
	RulesPath        string
	CacheTTL         time.Duration
	BatchLimit       int
	MinConfidence    float64
	DBDSN            string
	MQTTBrokerURL    string
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	MQTTTopicPrefix  string
	Dispatch         bool
	DispatchTimeout  time.Duration
	SkillSnapshotTTL time.Duration
	FallbackProvider string
	FallbackModel    string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	FallbackTimeout  time.Duration
}

// TerminalSimConfig drives the command-line terminal that talks to the
// intent server over MQTT.
type TerminalSimConfig struct {
	TerminalID        string
	SkillVersion      int64
	Tools             []domain.ToolName
	HeartbeatInterval time.Duration
	MQTTBrokerURL     string
	MQTTClientID      string
	MQTTUsername      string
	MQTTPassword      string
	MQTTTopicPrefix   string
}

func LoadIntentServerConfig() (IntentServerConfig, error) {
	hourFormat, err := domain.ParseHourFormat(os.Getenv("INTENT_HOUR_FORMAT"))
	if err != nil {
		return IntentServerConfig{}, fmt.Errorf("INTENT_HOUR_FORMAT: %w", err)
	}
	minConfidence, err := getenvFloatDefault("MIN_CONFIDENCE", 0.99)
	if err != nil {
		return IntentServerConfig{}, err
	}

	cfg := IntentServerConfig{
		HTTPAddr:         getenvDefault("INTENT_HTTP_ADDR", ":9013"),
		MaxBodyBytes:     getenvInt64Default("INTENT_MAX_BODY_BYTES", 64<<10),
		HourFormat:       hourFormat,
		RulesPath:        os.Getenv("INTENT_RULES_PATH"),
		CacheTTL:         time.Duration(getenvIntDefault("INTENT_CACHE_TTL_SECONDS", 300)) * time.Second,
		BatchLimit:       getenvIntDefault("INTENT_BATCH_LIMIT", 8),
		MinConfidence:    minConfidence,
		DBDSN:            os.Getenv("DB_DSN"),
		MQTTBrokerURL:    os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:     getenvDefault("INTENT_MQTT_CLIENT_ID", "intent-server"),
		MQTTUsername:     os.Getenv("MQTT_USERNAME"),
		MQTTPassword:     os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:  getenvDefault("MQTT_TOPIC_PREFIX", "soul"),
		Dispatch:         getenvBoolDefault("INTENT_DISPATCH", false),
		DispatchTimeout:  time.Duration(getenvIntDefault("INTENT_DISPATCH_TIMEOUT_SECONDS", 8)) * time.Second,
		SkillSnapshotTTL: time.Duration(getenvIntDefault("SKILL_SNAPSHOT_TTL_SECONDS", 60)) * time.Second,
		FallbackProvider: strings.ToLower(getenvDefault("FALLBACK_PROVIDER", "none")),
		FallbackModel:    getenvDefault("FALLBACK_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicBaseURL: getenvDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		FallbackTimeout:  time.Duration(getenvIntDefault("FALLBACK_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	if cfg.MaxBodyBytes <= 0 {
		return IntentServerConfig{}, fmt.Errorf("INTENT_MAX_BODY_BYTES must be positive")
	}
	if cfg.BatchLimit <= 0 {
		return IntentServerConfig{}, fmt.Errorf("INTENT_BATCH_LIMIT must be positive")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return IntentServerConfig{}, fmt.Errorf("MIN_CONFIDENCE must be within [0, 1]")
	}
	switch cfg.FallbackProvider {
	case "none":
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return IntentServerConfig{}, fmt.Errorf("OPENAI_API_KEY is required when FALLBACK_PROVIDER=openai")
		}
	case "claude":
		if cfg.AnthropicAPIKey == "" {
			return IntentServerConfig{}, fmt.Errorf("ANTHROPIC_API_KEY is required when FALLBACK_PROVIDER=claude")
		}
	default:
		return IntentServerConfig{}, fmt.Errorf("unsupported FALLBACK_PROVIDER: %s", cfg.FallbackProvider)
	}
	if cfg.Dispatch && cfg.MQTTBrokerURL == "" {
		return IntentServerConfig{}, fmt.Errorf("MQTT_BROKER_URL is required when INTENT_DISPATCH is on")
	}

	return cfg, nil
}

func LoadTerminalSimConfig() (TerminalSimConfig, error) {
	var raw []string
	if v := os.Getenv("TERMINAL_TOOLS"); v != "" {
		raw = strings.Split(v, ",")
	}
	tools, err := domain.ParseToolNames(raw)
	if err != nil {
		return TerminalSimConfig{}, fmt.Errorf("TERMINAL_TOOLS: %w", err)
	}
	if len(tools) == 0 {
		tools = domain.ToolNames()
	}
	return TerminalSimConfig{
		TerminalID:        getenvDefault("TERMINAL_ID", "terminal-debug-01"),
		SkillVersion:      getenvInt64Default("TERMINAL_SKILL_VERSION", 1),
		Tools:             tools,
		HeartbeatInterval: time.Duration(getenvIntDefault("TERMINAL_HEARTBEAT_INTERVAL_SECONDS", 10)) * time.Second,
		MQTTBrokerURL:     getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:      getenvDefault("TERMINAL_MQTT_CLIENT_ID", "terminal-sim"),
		MQTTUsername:      os.Getenv("MQTT_USERNAME"),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:   getenvDefault("MQTT_TOPIC_PREFIX", "soul"),
	}, nil
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvInt64Default(key string, val int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return val
	}
	return n
}

func getenvBoolDefault(key string, val bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return val
	}
	return b
}

// A malformed float is an error, unlike the integer helpers.
func getenvFloatDefault(key string, val float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return val, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
