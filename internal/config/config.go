package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// #region config-types
// Config is the stimd configuration file.
type Config struct {
	InstanceID string        `yaml:"instance_id"`
	DBPath     string        `yaml:"db_path"`
	Monitor    MonitorConfig `yaml:"monitor"`
	Trial      TrialConfig   `yaml:"trial"`
	Timing     TimingConfig  `yaml:"timing"`
	Remote     RemoteConfig  `yaml:"remote"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	Log        LogConfig     `yaml:"log"`
}

// MonitorConfig describes the display.
type MonitorConfig struct {
	RefreshHz float64 `yaml:"refresh_hz"`
	// LockTimeToFrames makes the clock advance exactly 1/refresh_hz per frame.
	LockTimeToFrames bool `yaml:"lock_time_to_frames"`
}

// TrialConfig holds presentation defaults.
type TrialConfig struct {
	Duration      float64 `yaml:"duration"`
	DurationUnit  string  `yaml:"duration_unit"` // seconds, frames, forever
	CollectTiming bool    `yaml:"collect_timing"`
}

// TimingConfig holds frame-rate check thresholds.
type TimingConfig struct {
	ImplausibleFPS     float64 `yaml:"implausible_fps"`
	Tolerance          float64 `yaml:"tolerance"`
	LongestFrameFactor float64 `yaml:"longest_frame_factor"` // in refresh periods
}

// RemoteConfig holds the control transports. Empty addresses disable a transport.
type RemoteConfig struct {
	TCPAddr      string  `yaml:"tcp_addr"`
	GRPCAddr     string  `yaml:"grpc_addr"`
	CommandRate  float64 `yaml:"command_rate"` // lines per second per connection, 0 = unlimited
	CommandBurst int     `yaml:"command_burst"`
}

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Enabled bool       `yaml:"enabled"`
	Broker  string     `yaml:"broker"`
	Topics  MQTTTopics `yaml:"topics"`
	QoS     byte       `yaml:"qos"`
}

// MQTTTopics contains topic names.
type MQTTTopics struct {
	Control   string `yaml:"control"`
	Responses string `yaml:"responses"`
	Reports   string `yaml:"reports"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // trivial, info, warning, error
	Format string `yaml:"format"` // json, text
}

// #endregion config-types

// #region load
// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{InstanceID: "stimd"}
	_ = Validate(cfg)
	return cfg
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from STIM_* environment variables and revalidates.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("STIM_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("STIM_TCP_ADDR"); v != "" {
		cfg.Remote.TCPAddr = v
	}
	if v := getenv("STIM_GRPC_ADDR"); v != "" {
		cfg.Remote.GRPCAddr = v
	}
	if v := getenv("STIM_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
		cfg.MQTT.Enabled = true
	}
	if v := getenv("STIM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("STIM_REFRESH_HZ"); v != "" {
		hz, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("STIM_REFRESH_HZ: %w", err)
		}
		cfg.Monitor.RefreshHz = hz
	}
	return Validate(cfg)
}

// #endregion load

// #region validate
var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "stimd"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "stimd.db"
	}

	if cfg.Monitor.RefreshHz < 0 {
		return fmt.Errorf("monitor.refresh_hz must be > 0")
	}
	if cfg.Monitor.RefreshHz == 0 {
		cfg.Monitor.RefreshHz = 60
	}

	switch cfg.Trial.DurationUnit {
	case "":
		cfg.Trial.DurationUnit = "seconds"
	case "seconds", "frames", "forever":
	default:
		return fmt.Errorf("trial.duration_unit %q: must be seconds, frames or forever", cfg.Trial.DurationUnit)
	}
	if cfg.Trial.Duration < 0 {
		return fmt.Errorf("trial.duration must be >= 0")
	}
	if cfg.Trial.Duration == 0 && cfg.Trial.DurationUnit != "forever" {
		cfg.Trial.Duration = 5.0
	}

	if cfg.Timing.ImplausibleFPS <= 0 {
		cfg.Timing.ImplausibleFPS = 210
	}
	if cfg.Timing.Tolerance <= 0 {
		cfg.Timing.Tolerance = 0.10
	}
	if cfg.Timing.LongestFrameFactor <= 0 {
		cfg.Timing.LongestFrameFactor = 2.0
	}

	if cfg.Remote.TCPAddr == "" && cfg.Remote.GRPCAddr == "" {
		cfg.Remote.TCPAddr = "localhost:7766"
	}
	if cfg.Remote.CommandRate < 0 {
		return fmt.Errorf("remote.command_rate must be >= 0")
	}
	if cfg.Remote.CommandRate > 0 && cfg.Remote.CommandBurst <= 0 {
		cfg.Remote.CommandBurst = 1
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.MQTT.Topics.Control == "" {
		cfg.MQTT.Topics.Control = fmt.Sprintf("stim/control/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Responses == "" {
		cfg.MQTT.Topics.Responses = fmt.Sprintf("stim/responses/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Reports == "" {
		cfg.MQTT.Topics.Reports = fmt.Sprintf("stim/trials/%s", cfg.InstanceID)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q: must be json or text", cfg.Log.Format)
	}
	return nil
}

// #endregion validate
