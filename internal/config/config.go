package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// PlayerConfig is the player.yaml file. Every field can be overridden
// from a DIALOGUE_* environment variable by ApplyEnv.
type PlayerConfig struct {
	Version  int            `yaml:"version"`
	PlayerID string         `yaml:"player_id" env:"DIALOGUE_PLAYER_ID"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Network  NetworkConfig  `yaml:"network"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type DialogueConfig struct {
	Path string `yaml:"path" env:"DIALOGUE_FILE"`
	// TextSpeed is the player-facing 0..1 setting; 1 reveals instantly.
	TextSpeed float64 `yaml:"text_speed" env:"DIALOGUE_TEXT_SPEED"`
	// ScrollSpeed, when positive, overrides TextSpeed in seconds per character.
	ScrollSpeed float64       `yaml:"scroll_speed" env:"DIALOGUE_SCROLL_SPEED"`
	StartDelay  float64       `yaml:"start_delay" env:"DIALOGUE_START_DELAY"`
	SkipDelay   bool          `yaml:"skip_delay" env:"DIALOGUE_SKIP_DELAY"`
	Tick        time.Duration `yaml:"tick" env:"DIALOGUE_TICK"`
	VoiceDir    string        `yaml:"voice_dir" env:"DIALOGUE_VOICE_DIR"`
	Headless    bool          `yaml:"headless" env:"DIALOGUE_HEADLESS"`
}

type NetworkConfig struct {
	APIPort int `yaml:"api_port" env:"DIALOGUE_API_PORT"`
}

type MQTTConfig struct {
	URL         string `yaml:"url" env:"DIALOGUE_MQTT_URL"`
	ClientID    string `yaml:"client_id" env:"DIALOGUE_MQTT_CLIENT_ID"`
	Username    string `yaml:"username" env:"DIALOGUE_MQTT_USERNAME"`
	TopicPrefix string `yaml:"topic_prefix" env:"DIALOGUE_MQTT_TOPIC_PREFIX"`
}

type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled" env:"DIALOGUE_PG_ENABLED"`
	Host     string `yaml:"host" env:"DIALOGUE_PG_HOST"`
	Port     int    `yaml:"port" env:"DIALOGUE_PG_PORT"`
	User     string `yaml:"user" env:"DIALOGUE_PG_USER"`
	Database string `yaml:"database" env:"DIALOGUE_PG_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"DIALOGUE_PG_SSLMODE"`
}

// DefaultPlayerConfig returns the configuration used when no file is given.
func DefaultPlayerConfig() *PlayerConfig {
	return &PlayerConfig{
		Version:  1,
		PlayerID: "player-1",
		Dialogue: DialogueConfig{
			TextSpeed:  0.5,
			StartDelay: 2,
			Tick:       16 * time.Millisecond,
		},
		Network: NetworkConfig{APIPort: 8080},
		MQTT: MQTTConfig{
			URL:         "tcp://localhost:1883",
			ClientID:    "sentient-dialogue",
			TopicPrefix: "dialogue",
		},
	}
}

// LoadPlayerConfig reads path over the defaults. Keys missing from the
// file keep their default value.
func LoadPlayerConfig(path string) (*PlayerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultPlayerConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported player.yaml version: %d", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides cfg from DIALOGUE_* environment variables.
// Unset variables leave the current value untouched.
func ApplyEnv(cfg *PlayerConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return cfg.Validate()
}

// Validate checks value ranges.
func (c *PlayerConfig) Validate() error {
	d := c.Dialogue
	if math.IsNaN(d.TextSpeed) || d.TextSpeed < 0 || d.TextSpeed > 1 {
		return fmt.Errorf("text_speed must be within [0,1], got %v", d.TextSpeed)
	}
	if err := checkSeconds("scroll_speed", d.ScrollSpeed); err != nil {
		return err
	}
	if err := checkSeconds("start_delay", d.StartDelay); err != nil {
		return err
	}
	if d.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", d.Tick)
	}
	if c.Network.APIPort < 0 || c.Network.APIPort > 65535 {
		return fmt.Errorf("api_port out of range: %d", c.Network.APIPort)
	}
	return nil
}

// ScrollInterval returns the per-character reveal interval. An explicit
// scroll_speed wins; otherwise text_speed maps 0 to 0.1s and 1 to instant.
func (c *PlayerConfig) ScrollInterval() time.Duration {
	if c.Dialogue.ScrollSpeed > 0 {
		return seconds(c.Dialogue.ScrollSpeed)
	}
	return seconds(0.1 * (1 - c.Dialogue.TextSpeed))
}

// StartDelay returns the wait before the first event.
func (c *PlayerConfig) StartDelay() time.Duration {
	return seconds(c.Dialogue.StartDelay)
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *PlayerConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// maxSeconds keeps timing settings well inside time.Duration's range.
const maxSeconds = 24 * 60 * 60

func checkSeconds(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > maxSeconds {
		return fmt.Errorf("%s must be within [0,%d] seconds, got %v", name, maxSeconds, v)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
