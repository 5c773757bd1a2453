package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultPublishTimeout = 2 * time.Second
	disconnectQuiesce     = 250 // milliseconds
)

var (
	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishTimeout is returned when the broker does not acknowledge in time.
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// MQTTConfig describes the optional broker mirror.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// MQTT mirrors each Value to a retained topic so late subscribers get the
// current reading immediately.
type MQTT struct {
	client  pahomqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// DialMQTT starts connecting to the broker in the background and returns
// without waiting; Publish fails with ErrNotConnected until the link is up.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Topic == "" {
		return nil, errors.New("mqtt: topic cannot be empty")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid QoS %d", cfg.QoS)
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetCleanSession(true)
	// Consumers see the fault if the bridge dies without a clean disconnect.
	opts.SetWill(cfg.Topic, Fault().String(), cfg.QoS, true)

	client := pahomqtt.NewClient(opts)
	client.Connect()

	return NewMQTT(client, cfg.Topic, cfg.QoS), nil
}

// NewMQTT wraps an existing client.
func NewMQTT(client pahomqtt.Client, topic string, qos byte) *MQTT {
	return &MQTT{
		client:  client,
		topic:   topic,
		qos:     qos,
		timeout: defaultPublishTimeout,
	}
}

// Publish implements Publisher.
func (m *MQTT) Publish(_ context.Context, v Value) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := m.client.Publish(m.topic, m.qos, true, v.String())
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("%w after %v", ErrPublishTimeout, m.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker, waiting briefly for in-flight work.
// paho reports no disconnect failure, so the error is always nil; it exists
// to satisfy io.Closer.
func (m *MQTT) Close() error {
	m.client.Disconnect(disconnectQuiesce)
	return nil
}
