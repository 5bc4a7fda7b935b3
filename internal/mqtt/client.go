// Package mqtt mirrors device snapshots to an MQTT broker.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"controlling_dehumidifier/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const disconnectQuiesceMs = 250

type Config struct {
	Broker   string // e.g. "tcp://localhost:1883"
	ClientID string
	Username string
	Password string
	Prefix   string // prepended to every topic
	UseTLS   bool
}

// Client wraps a paho client with a topic prefix and a last-will
// availability message.
type Client struct {
	client   mqtt.Client
	config   Config
	mu       sync.RWMutex
	log      *logger.Logger
	isActive bool
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("dehumidifier-%d", time.Now().Unix())
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{config: cfg, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// broker announces offline on our behalf if the connection drops
	opts.SetWill(c.buildTopic(TopicAvailability), PayloadOffline, 1, true)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warnw("mqtt_connection_lost", "err", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.log.Infow("mqtt_connected", "broker", cfg.Broker)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.log.Infow("mqtt_reconnecting")
	})

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	return c, nil
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isActive {
		return nil
	}

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	c.isActive = true
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return
	}
	c.client.Disconnect(disconnectQuiesceMs)
	c.isActive = false
	c.log.Infow("mqtt_disconnected")
}

// PublishWithQoS publishes payload on the prefixed topic.
func (c *Client) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return fmt.Errorf("mqtt client is not connected")
	}

	fullTopic := c.buildTopic(topic)
	token := c.client.Publish(fullTopic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", fullTopic, token.Error())
	}
	c.log.Debugw("mqtt_published", "topic", fullTopic, "qos", qos, "retained", retained)
	return nil
}

func (c *Client) buildTopic(topic string) string {
	if c.config.Prefix == "" {
		return topic
	}
	return c.config.Prefix + "/" + topic
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive && c.client.IsConnected()
}
