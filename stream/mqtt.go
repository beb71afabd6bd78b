package stream

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const DefaultTopic = "magnetometer/field"

// MQTT publishes samples as JSON to a broker topic.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
}

type MQTTOption func(*MQTT)

func WithTopic(topic string) MQTTOption {
	return func(m *MQTT) {
		m.topic = topic
	}
}

func WithQoS(qos byte) MQTTOption {
	return func(m *MQTT) {
		m.qos = qos
	}
}

// DialMQTT connects to broker, e.g. "tcp://localhost:1883".
func DialMQTT(ctx context.Context, broker, clientID string, opts ...MQTTOption) (*MQTT, error) {
	clientOpts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(clientOpts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return NewMQTT(client, opts...), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, opts ...MQTTOption) *MQTT {
	m := &MQTT{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MQTT) Publish(ctx context.Context, s Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("could not encode sample: %w", err)
	}
	if err := wait(ctx, m.client.Publish(m.topic, m.qos, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
