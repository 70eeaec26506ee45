/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package homeassistant

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// ClientConfig configures the MQTT connection.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	WillTopic string
	Timeout   time.Duration
}

// Client is a Broker backed by paho.
type Client struct {
	client  mqtt.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// Dial connects to the broker. onConnect runs after every successful (re)connection.
func Dial(cfg ClientConfig, onConnect func(), logger zerolog.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger = logger.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		// Handlers publish and wait; ordered delivery would deadlock.
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info().Str("broker", cfg.BrokerURL).Msg("mqtt connected")
			if onConnect != nil {
				onConnect()
			}
		})
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, PayloadOffline, 1, true)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to %s: timed out after %s", cfg.BrokerURL, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.BrokerURL, err)
	}
	return &Client{client: client, timeout: cfg.Timeout, logger: logger}, nil
}

// Publish sends payload with QoS 1.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	return token.Error()
}

// Subscribe registers handler for topic with QoS 1.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe %s: timed out", topic)
	}
	return token.Error()
}

// Close disconnects, waiting up to 250ms for in-flight work.
func (c *Client) Close() {
	c.client.Disconnect(250)
}
