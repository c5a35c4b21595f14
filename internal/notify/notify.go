// Package notify publishes directive run events to an MQTT broker.
// Delivery is best effort: events are dropped rather than ever
// blocking or failing a run.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/dirigent/internal/config"
	"github.com/nugget/dirigent/internal/driver"
)

// queueDepth bounds the outbound event buffer. A full queue drops the
// newest event.
const queueDepth = 64

// Publisher relays driver events to MQTT. Create with New, then call
// Start to connect and begin draining the queue.
type Publisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	queue  chan driver.Event
	cm     *autopaho.ConnectionManager
}

var _ driver.Notifier = (*Publisher)(nil)

// New creates a Publisher but does not connect.
func New(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan driver.Event, queueDepth),
	}
}

// Notify enqueues an event for publishing. It never blocks: when the
// queue is full the event is dropped with a debug log.
func (p *Publisher) Notify(_ context.Context, event driver.Event) {
	select {
	case p.queue <- event:
	default:
		p.logger.Debug("notify queue full, dropping event",
			"type", event.Type, "directive", event.Directive)
	}
}

// Start connects to the broker and drains the queue until ctx is
// cancelled. Connection failures are retried in the background by
// autopaho; events arriving while disconnected are published once the
// connection comes up or dropped when the queue overflows.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "dirigent-notify",
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.drain(ctx)
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			p.publish(ctx, event)
		}
	}
}

// publish sends one event at QoS 0. Failures are logged and swallowed.
func (p *Publisher) publish(ctx context.Context, event driver.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("notify event marshal failed", "error", err)
		return
	}

	topic := fmt.Sprintf("%s/runs/%s", p.cfg.TopicPrefix, event.Directive)
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     0,
	}); err != nil {
		p.logger.Debug("notify publish failed",
			"topic", topic, "type", event.Type, "error", err)
		return
	}
	p.logger.Debug("notify published", "topic", topic, "type", event.Type)
}
