// Package telemetry publishes servo position snapshots to an MQTT broker
// as JSON, for dashboards and recorders that live off the serial bus.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopic is used when the config names none.
const DefaultTopic = "servo/positions"

// Config describes the broker connection.
type Config struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// ClientID identifies this publisher; generated when empty.
	ClientID string

	// Topic to publish snapshots on. Defaults to DefaultTopic.
	Topic string

	Username string
	Password string

	// ConnectTimeout bounds the initial connection. Default 10s.
	ConnectTimeout time.Duration
}

// Publisher sends position snapshots to one topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// Connect establishes the broker session.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("telemetry broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("servoctl-%d", time.Now().UnixNano())
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", cfg.Broker, err)
	}

	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// PublishPositions sends one snapshot as a JSON object keyed by servo
// ("servo_<id>") plus a millisecond timestamp, at QoS 1.
func (p *Publisher) PublishPositions(positions map[int]int) error {
	if !p.client.IsConnected() {
		return errors.New("not connected to broker")
	}

	payload := make(map[string]any, len(positions)+1)
	for id, position := range positions {
		payload[fmt.Sprintf("servo_%d", id)] = position
	}
	payload["ts"] = time.Now().UnixMilli()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry payload: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish telemetry: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker, letting in-flight messages drain.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
