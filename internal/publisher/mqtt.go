// Package publisher pushes the monthly summary to an MQTT broker so
// dashboards and home automation can subscribe to it.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"evcharge/internal/core"
	applog "evcharge/internal/log"
	"evcharge/internal/sheets"
)

const (
	defaultTopicPrefix = "evcharge"
	defaultClientID    = "evcharge"
	publishTimeout     = 5 * time.Second
)

type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// Message is one retained publish.
type Message struct {
	Topic   string
	Payload []byte
}

// TotalPayload is the body published on the total topic.
type TotalPayload struct {
	TotalCost      float64   `json:"total_cost"`
	TotalEnergyKwh float64   `json:"total_energy_kwh"`
	CostPerKwh     float64   `json:"cost_per_kwh"`
	ChargeCycles   float64   `json:"charge_cycles"`
	Sessions       int       `json:"sessions"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Publisher publishes summary tables over MQTT.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	now         func() time.Time
}

var _ sheets.SummaryPublisher = (*Publisher)(nil)

// New connects to the broker. A disabled config yields a nil publisher and
// no error.
func New(cfg Config) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker address is required when enabled")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(15*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix(cfg.TopicPrefix),
		now:         time.Now,
	}, nil
}

// PublishSummary implements sheets.SummaryPublisher.
func (p *Publisher) PublishSummary(ctx context.Context, rows []core.SummaryRow) error {
	msgs, err := BuildMessages(p.topicPrefix, rows, p.now().UTC())
	if err != nil {
		return err
	}
	for _, m := range msgs {
		token := p.client.Publish(m.Topic, 1, true, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish %s: timed out", m.Topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}
	logger().DebugContext(ctx, "Summary published to MQTT",
		"prefix", p.topicPrefix,
		"rows", len(rows))
	return nil
}

// BuildMessages renders the table on <prefix>/summary and the total row on
// <prefix>/summary/total.
func BuildMessages(prefix string, rows []core.SummaryRow, at time.Time) ([]Message, error) {
	prefix = topicPrefix(prefix)
	if rows == nil {
		rows = []core.SummaryRow{}
	}
	table, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	var total TotalPayload
	for _, r := range rows {
		if r.IsTotal {
			total = TotalPayload{
				TotalCost:      r.TotalCost,
				TotalEnergyKwh: r.TotalEnergyKwh,
				CostPerKwh:     r.CostPerKwh,
				ChargeCycles:   r.ChargeCycles,
				Sessions:       r.Sessions,
			}
		}
	}
	total.UpdatedAt = at
	totalBody, err := json.Marshal(total)
	if err != nil {
		return nil, fmt.Errorf("encoding total: %w", err)
	}

	return []Message{
		{Topic: prefix + "/summary", Payload: table},
		{Topic: prefix + "/summary/total", Payload: totalBody},
	}, nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p != nil && p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func topicPrefix(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return defaultTopicPrefix
	}
	return s
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return fmt.Sprintf("tcp://%s", broker)
}

func logger() *applog.Logger {
	return applog.ForComponent(applog.ComponentMQTT)
}
