package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/thermoptim/internal/controllers/wire"
	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/ports"
)

type Config struct {
	// Identity of the building the run describes.
	Site string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSummary   bool
	PublishInterval time.Duration

	Username string
	Password string
}

type Controller struct {
	svc ports.RunService
	cfg Config

	client mqtt.Client
	last   []byte
}

func New(svc ports.RunService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.Site == "" {
		return nil, errors.New("mqtt: Site is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "thermoptim/" + cfg.Site
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "thermoptim-" + cfg.Site
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 5 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	log := logger.WithComponent("mqtt").WithField("broker", c.cfg.BrokerURL)
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		token := cl.Subscribe(c.topic("predict"), c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			log.WithError(err).Warn("subscribe failed")
			return
		}
		log.Info("connected")
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	// Publish loop: publish the summary on interval, and only when changed.
	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	// publish immediately once
	c.publishSummary()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			log.Info("disconnected")
			return ctx.Err()

		case <-ticker.C:
			c.publishSummary()
		}
	}
}

// publishSummary sends the snapshot unless it is byte-identical to the last
// one sent. It reports whether a message went out.
func (c *Controller) publishSummary() bool {
	b, err := json.Marshal(wire.FromSnapshot(c.svc.Get()))
	if err != nil {
		return false
	}
	if c.last != nil && bytes.Equal(b, c.last) {
		return false
	}
	c.client.Publish(c.topic("summary"), c.cfg.QoS, c.cfg.RetainSummary, b)
	c.last = b
	return true
}

// Request payload format: {"value": {sample}}. The reply goes to
// <base>/recommendation, either the recommendation or {"error": "..."}.
func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if msg.Topic() != c.topic("predict") {
		return
	}

	var reply any
	sample, err := wire.DecodeSampleBytes(msg.Payload())
	if err == nil {
		rec, perr := c.svc.Predict(sample)
		if perr == nil {
			reply = wire.FromRecommendation(rec)
		}
		err = perr
	}
	if err != nil {
		reply = map[string]string{"error": err.Error()}
	}

	b, err := json.Marshal(reply)
	if err != nil {
		return
	}
	c.client.Publish(c.topic("recommendation"), c.cfg.QoS, false, b)
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}
