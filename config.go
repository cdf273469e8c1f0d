package servo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the servo array and how to reach it.
type Config struct {
	// Port is the serial device path. Empty means auto-discover.
	Port string `yaml:"port"`

	// Baud is the line speed. Default is 1000000.
	Baud int `yaml:"baud"`

	// Variant selects the servo firmware family ("sts" or "hls").
	Variant Variant `yaml:"variant"`

	// ServoIDs lists the servos this controller manages.
	ServoIDs []int `yaml:"servo_ids"`

	// Names optionally labels servos for logs and telemetry.
	Names map[int]string `yaml:"names,omitempty"`

	// Relay optionally streams positions over UDP.
	Relay *RelayConfig `yaml:"relay,omitempty"`

	// Telemetry optionally publishes positions over MQTT.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// RelayConfig configures the UDP position relay.
type RelayConfig struct {
	Target string  `yaml:"target"`
	Hz     float64 `yaml:"hz"`
}

// TelemetryConfig configures the MQTT position publisher.
type TelemetryConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Baud == 0 {
		c.Baud = 1000000
	}
	if c.Relay != nil && c.Relay.Hz == 0 {
		c.Relay.Hz = 30
	}
}

// Validate checks the servo list and relay settings.
func (c *Config) Validate() error {
	if len(c.ServoIDs) == 0 {
		return fmt.Errorf("%w: at least one servo ID is required", ErrInvalidArgument)
	}

	seen := make(map[int]bool, len(c.ServoIDs))
	for _, id := range c.ServoIDs {
		if err := validateID(id); err != nil {
			return err
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate servo ID %d", ErrInvalidArgument, id)
		}
		seen[id] = true
	}

	if c.Baud <= 0 {
		return fmt.Errorf("%w: baud rate must be positive, got %d", ErrInvalidArgument, c.Baud)
	}
	if c.Relay != nil {
		if c.Relay.Target == "" {
			return fmt.Errorf("%w: relay target is required", ErrInvalidArgument)
		}
		if c.Relay.Hz <= 0 {
			return fmt.Errorf("%w: relay hz must be positive", ErrInvalidArgument)
		}
	}
	if c.Telemetry != nil && c.Telemetry.Broker == "" {
		return fmt.Errorf("%w: telemetry broker is required", ErrInvalidArgument)
	}

	return nil
}
