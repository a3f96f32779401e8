// Package mqtt publishes scan outcomes and link transitions and accepts
// remote connect/disconnect commands.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config holds MQTT broker connection settings.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Handlers holds callback functions for MQTT events. OnMessage fires on
// the paho callback goroutine; implementations must hand off to the
// consumer context instead of mutating state.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
	OnMessage    func(topic string, payload []byte)
}

// Client wraps the paho client with the punchd topic scheme.
type Client struct {
	client       paho.Client
	clientID     string
	enabled      bool
	onConnect    func()
	onDisconnect func()
	onMessage    func(topic string, payload []byte)
}

// New creates a new MQTT client. Returns a disabled no-op client if
// host is empty, so a broker is never required to run.
func New(cfg Config, clientID string, handlers Handlers) (*Client, error) {
	c := &Client{
		clientID:     clientID,
		onConnect:    handlers.OnConnect,
		onDisconnect: handlers.OnDisconnect,
		onMessage:    handlers.OnMessage,
	}

	if cfg.Host == "" {
		c.enabled = false
		log.Println("MQTT disabled (no host configured)")
		return c, nil
	}
	c.enabled = true

	var broker string
	var tlsConfig *tls.Config

	if cfg.CACert != "" || cfg.ClientCert != "" {
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, cfg.Port)
		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
	} else {
		if cfg.Port == 0 {
			cfg.Port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetOnConnectHandler(c.handleConnect).
		SetDefaultPublishHandler(c.handleMessage)

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(opts)
	return c, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		caPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect connects to the broker. If disabled, calls OnConnect
// immediately so the rest of the app behaves as if online.
func (c *Client) Connect() error {
	if !c.enabled {
		if c.onConnect != nil {
			c.onConnect()
		}
		return nil
	}
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	log.Println("MQTT connected")
	return nil
}

// Disconnect disconnects from the broker. No-op if disabled.
func (c *Client) Disconnect() {
	if !c.enabled || c.client == nil {
		return
	}
	c.client.Disconnect(250)
}

// SubscribeControl subscribes to this node's control topic.
func (c *Client) SubscribeControl() error {
	if !c.enabled {
		return nil
	}
	topic := fmt.Sprintf("punchd/control/node/%s/link", c.clientID)
	if token := c.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// ControlTopic returns the control topic this client listens on.
func (c *Client) ControlTopic() string {
	return fmt.Sprintf("punchd/control/node/%s/link", c.clientID)
}

// PublishScan publishes one scan outcome.
func (c *Client) PublishScan(outcome, cardID, employee string) {
	payload, _ := json.Marshal(map[string]string{
		"outcome":  outcome,
		"card_id":  cardID,
		"employee": employee,
	})
	c.publish(fmt.Sprintf("punchd/status/node/%s/scan", c.clientID), string(payload))
}

// PublishLink publishes a connection-state transition or transient
// notification.
func (c *Client) PublishLink(connected bool, port, message string) {
	payload, _ := json.Marshal(map[string]any{
		"connected": connected,
		"port":      port,
		"message":   message,
	})
	c.publish(fmt.Sprintf("punchd/status/node/%s/link", c.clientID), string(payload))
}

// PublishPing publishes a liveness ping.
func (c *Client) PublishPing() {
	c.publish(fmt.Sprintf("punchd/status/node/%s/ping", c.clientID), `{"status":"ok"}`)
}

func (c *Client) publish(topic, payload string) {
	if !c.enabled {
		return
	}
	c.client.Publish(topic, 0, false, payload)
}

func (c *Client) handleConnect(client paho.Client) {
	log.Println("MQTT connection established")
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *Client) handleConnectionLost(client paho.Client, err error) {
	log.Printf("MQTT connection lost: %v", err)
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

func (c *Client) handleMessage(client paho.Client, msg paho.Message) {
	if c.onMessage != nil {
		c.onMessage(msg.Topic(), msg.Payload())
	}
}
