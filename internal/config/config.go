package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	alarms "linesim/internal/alarms/domain"
)

// Config is the process configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Alarms     AlarmsConfig     `yaml:"alarms"`
	Simulation SimulationConfig `yaml:"simulation"`
	Tags       TagsConfig       `yaml:"tags"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Redis      RedisConfig      `yaml:"redis"`
	Notify     NotifyConfig     `yaml:"notify"`
	Log        LogConfig        `yaml:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig configures JWT checks. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// AlarmsConfig locates the alarm history.
type AlarmsConfig struct {
	// Paths are tried in order; the first readable export wins.
	Paths           []string       `yaml:"paths" validate:"dive,required"`
	Sheet           string         `yaml:"sheet"`
	Header          bool           `yaml:"header"`
	Columns         alarms.Columns `yaml:"columns"`
	TimestampPolicy string         `yaml:"timestamp_policy" validate:"oneof=skip now"`
	DatabaseURL     string         `yaml:"database_url"`
	HistoryTable    string         `yaml:"history_table"`
}

// SimulationConfig tunes the engine.
type SimulationConfig struct {
	Seed                int64         `yaml:"seed"`
	BaseRate            int           `yaml:"base_rate" validate:"gt=0"`
	ProductionInterval  time.Duration `yaml:"production_interval" validate:"gt=0"`
	ReplayInterval      time.Duration `yaml:"replay_interval" validate:"gt=0"`
	MetricsInterval     time.Duration `yaml:"metrics_interval" validate:"gt=0"`
	NoiseInterval       time.Duration `yaml:"noise_interval" validate:"gt=0"`
	AlternateInterval   time.Duration `yaml:"alternate_interval" validate:"gt=0"`
	SequenceProbability float64       `yaml:"sequence_probability" validate:"gte=0,lte=1"`
	SequenceMembers     int           `yaml:"sequence_members" validate:"gte=1"`
	SequenceMemberDelay time.Duration `yaml:"sequence_member_delay" validate:"gte=0"`
	MaxActiveAlarms     int           `yaml:"max_active_alarms" validate:"gte=0"`
	ScenarioStepDelay   time.Duration `yaml:"scenario_step_delay" validate:"gte=0"`
	ScenarioDwell       time.Duration `yaml:"scenario_dwell" validate:"gte=0"`
	AlternatorEnabled   bool          `yaml:"alternator_enabled"`
}

// TagsConfig points at an optional exported tag document.
type TagsConfig struct {
	DocumentPath string `yaml:"document_path"`
}

// MQTTConfig mirrors tag writes to a broker when Broker is set.
type MQTTConfig struct {
	Broker      string        `yaml:"broker" validate:"omitempty,url"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos" validate:"lte=2"`
	Retained    bool          `yaml:"retained"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RedisConfig mirrors tag writes to a hash when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Key      string `yaml:"key"`
}

// NotifyConfig posts alarm and scenario messages to chat webhooks when
// WebhookURLs is set.
type NotifyConfig struct {
	WebhookURLs  []string      `yaml:"webhook_urls" validate:"dive,url"`
	TemplatePath string        `yaml:"template_path"`
	Severities   []string      `yaml:"severities" validate:"dive,oneof=Warning Fault FirstFault Note Debug"`
	Scenarios    bool          `yaml:"scenarios"`
	Cooldown     time.Duration `yaml:"cooldown" validate:"gte=0"`
	DedupeWindow time.Duration `yaml:"dedupe_window" validate:"gte=0"`
	Escalation   time.Duration `yaml:"escalation" validate:"gte=0"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Alarms: AlarmsConfig{
			Paths:           []string{"data/alarm_history.xlsx", "data/alarm_history.csv"},
			Header:          true,
			Columns:         alarms.DefaultColumns(),
			TimestampPolicy: "skip",
		},
		Simulation: SimulationConfig{
			BaseRate:            18000,
			ProductionInterval:  time.Second,
			ReplayInterval:      50 * time.Millisecond,
			MetricsInterval:     5 * time.Second,
			NoiseInterval:       time.Second,
			AlternateInterval:   30 * time.Second,
			SequenceProbability: 0.02,
			SequenceMembers:     5,
			SequenceMemberDelay: 10 * time.Millisecond,
			MaxActiveAlarms:     64,
			ScenarioStepDelay:   5 * time.Millisecond,
			ScenarioDwell:       10 * time.Second,
			AlternatorEnabled:   true,
		},
		MQTT: MQTTConfig{
			ClientID:    "linesim",
			TopicPrefix: "linesim",
			Retained:    true,
			Timeout:     5 * time.Second,
		},
		Notify: NotifyConfig{
			Severities:   []string{"Fault", "FirstFault"},
			Scenarios:    true,
			Cooldown:     time.Minute,
			DedupeWindow: 10 * time.Minute,
			Escalation:   5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// LINESIM_CONFIG, then environment overrides, and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("LINESIM_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getenvDefault("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.ShutdownTimeout = getenvDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.Auth.JWTSecret))

	if paths := splitCSV(os.Getenv("ALARM_HISTORY_PATHS")); len(paths) > 0 {
		cfg.Alarms.Paths = paths
	}
	cfg.Alarms.Sheet = getenvDefault("ALARM_HISTORY_SHEET", cfg.Alarms.Sheet)
	cfg.Alarms.TimestampPolicy = getenvDefault("ALARM_TIMESTAMP_POLICY", cfg.Alarms.TimestampPolicy)
	cfg.Alarms.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Alarms.DatabaseURL))
	cfg.Alarms.HistoryTable = getenvDefault("ALARM_HISTORY_TABLE", cfg.Alarms.HistoryTable)

	sim := &cfg.Simulation
	sim.Seed = getenvInt64Default("SIM_SEED", sim.Seed)
	sim.BaseRate = getenvIntDefault("SIM_BASE_RATE", sim.BaseRate)
	sim.ReplayInterval = getenvDuration("SIM_REPLAY_INTERVAL", sim.ReplayInterval)
	sim.AlternateInterval = getenvDuration("SIM_ALTERNATE_INTERVAL", sim.AlternateInterval)
	sim.MaxActiveAlarms = getenvIntDefault("SIM_MAX_ACTIVE_ALARMS", sim.MaxActiveAlarms)
	sim.ScenarioDwell = getenvDuration("SIM_SCENARIO_DWELL", sim.ScenarioDwell)
	sim.AlternatorEnabled = getenvBoolDefault("SIM_ALTERNATOR_ENABLED", sim.AlternatorEnabled)

	cfg.Tags.DocumentPath = getenvDefault("TAG_DOCUMENT_PATH", cfg.Tags.DocumentPath)

	cfg.MQTT.Broker = getenvDefault("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getenvDefault("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = getenvDefault("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getenvDefault("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.TopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getenvIntDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Key = getenvDefault("REDIS_KEY", cfg.Redis.Key)

	if urls := splitCSV(os.Getenv("ALARM_WEBHOOK_URL")); len(urls) > 0 {
		cfg.Notify.WebhookURLs = urls
	}
	cfg.Notify.TemplatePath = getenvDefault("ALARM_NOTIFY_TEMPLATE", cfg.Notify.TemplatePath)
	cfg.Notify.Cooldown = getenvDuration("ALARM_NOTIFY_COOLDOWN", cfg.Notify.Cooldown)
	cfg.Notify.Escalation = getenvDuration("ALARM_ESCALATION_AFTER", cfg.Notify.Escalation)

	cfg.Log.Level = strings.ToLower(getenvDefault("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getenvDefault("LOG_FORMAT", cfg.Log.Format))
}

var validate = validator.New()

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			first := invalid[0]
			return fmt.Errorf("config: %s failed %q (value %v)", first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
