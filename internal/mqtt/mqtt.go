// Package mqtt relays applied snapshots and control actions to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
	controltypes "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

var ErrNotConnected = errors.New("mqtt client not connected")

const publishTimeout = 5 * time.Second

type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// SnapshotMessage is the retained payload on <prefix>/snapshot.
type SnapshotMessage struct {
	TotalRecords       int                `json:"total_records"`
	LastPwrTrigger     string             `json:"last_pwr_trigger"`
	LastPing           string             `json:"last_ping"`
	PingDelta          types.Delta        `json:"ping_delta"`
	ResetDelta         types.Delta        `json:"reset_delta"`
	PCStatus           *bool              `json:"pc_status,omitempty"`
	LastMotionDetected *int64             `json:"last_motion_detected,omitempty"`
	Latest             *types.SamplePoint `json:"latest,omitempty"`
	Samples            int                `json:"samples"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// broker publishes the retained offline marker if the connection drops
	opts.SetWill(p.topic("status"), "offline", 1, true)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		c.Publish(p.topic("status"), 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func (p *Publisher) Name() string { return "mqtt" }

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// Apply publishes snap as the retained snapshot message. A disconnected publisher skips it.
func (p *Publisher) Apply(ctx context.Context, snap types.Snapshot, display types.Display) error {
	err := p.PublishSnapshot(snap, display.UpdatedAt)
	if errors.Is(err, ErrNotConnected) {
		p.logger.Debug("mqtt offline, snapshot not relayed")
		return nil
	}
	return err
}

// ActionRecorded publishes a journaled control action.
func (p *Publisher) ActionRecorded(ctx context.Context, a controltypes.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	return p.publish(p.topic("actions"), false, data)
}

func (p *Publisher) PublishSnapshot(snap types.Snapshot, updatedAt time.Time) error {
	msg := SnapshotMessage{
		TotalRecords:       snap.TotalRecords,
		LastPwrTrigger:     snap.LastTriggerText(),
		LastPing:           snap.TextLastPing,
		PingDelta:          snap.PingDelta,
		ResetDelta:         snap.ResetDelta,
		PCStatus:           snap.PCStatus,
		LastMotionDetected: snap.LastMotionDetected,
		Latest:             latestReading(snap.Data),
		Samples:            len(snap.Data),
		UpdatedAt:          updatedAt.UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return p.publish(p.topic("snapshot"), true, data)
}

// PublishReachability publishes the probe result for host, retained.
func (p *Publisher) PublishReachability(host string, reachable bool, rtt time.Duration) error {
	data, err := json.Marshal(struct {
		Host      string  `json:"host"`
		Reachable bool    `json:"reachable"`
		RTTMillis float64 `json:"rtt_ms"`
	}{host, reachable, float64(rtt.Microseconds()) / 1000})
	if err != nil {
		return fmt.Errorf("marshal reachability: %w", err)
	}
	return p.publish(p.topic("probe"), true, data)
}

func (p *Publisher) publish(topic string, retained bool, data []byte) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 1, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("mqtt published", "topic", topic, "size", len(data), "retained", retained)
	return nil
}

func (p *Publisher) topic(name string) string {
	return p.cfg.MQTTTopicPrefix + "/" + name
}

// latestReading returns the newest sample with at least one reading.
func latestReading(samples []types.SamplePoint) *types.SamplePoint {
	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		if !math.IsNaN(s.Temperature) || !math.IsNaN(s.Humidity) {
			return &s
		}
	}
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect publishes the offline marker and closes the connection. Idempotent.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		if p.IsConnected() {
			p.client.Publish(p.topic("status"), 1, true, "offline").WaitTimeout(time.Second)
		}
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
