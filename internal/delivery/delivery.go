package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/realtime"
)

const (
	DriverHub   = "hub"
	DriverKafka = "kafka"
)

// Config selects and configures the delivery gateway.
type Config struct {
	Driver string
	// Stream is the realtime stream used by the hub driver.
	Stream string
	Kafka  KafkaConfig
}

// KafkaConfig configures the Kafka producer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	RequiredAcks string
}

// Gateway is a dispatch gateway that owns resources released on shutdown.
type Gateway interface {
	dispatch.Gateway
	Close() error
}

// New builds the configured gateway. The hub is required for the hub driver.
func New(cfg Config, hub *realtime.Hub) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverHub:
		if hub == nil {
			return nil, errors.New("delivery: hub driver requires a realtime hub")
		}
		return NewHubGateway(hub, cfg.Stream), nil
	case DriverKafka:
		return NewKafkaGateway(cfg.Kafka)
	default:
		return nil, fmt.Errorf("delivery: unsupported driver %q", cfg.Driver)
	}
}

// Payload is the wire representation of a notification.
type Payload struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	Priority   string     `json:"priority"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Lat        *float64   `json:"lat,omitempty"`
	Long       *float64   `json:"long,omitempty"`
	IncidentAt *time.Time `json:"incident_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewPayload converts a notification for transport.
func NewPayload(n dispatch.Notification) Payload {
	p := Payload{
		ID:        n.ID,
		Category:  string(n.Category),
		Priority:  n.Priority.String(),
		Title:     n.Title,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if n.Location != nil {
		lat, long := n.Location.Lat, n.Location.Long
		p.Lat, p.Long = &lat, &long
	}
	if !n.IncidentAt.IsZero() {
		ts := n.IncidentAt.UTC()
		p.IncidentAt = &ts
	}
	return p
}

// HubGateway broadcasts notifications on a realtime hub stream.
type HubGateway struct {
	hub    *realtime.Hub
	stream string
}

// NewHubGateway returns a gateway publishing on stream, or realtime.StreamAlerts when empty.
func NewHubGateway(hub *realtime.Hub, stream string) *HubGateway {
	if strings.TrimSpace(stream) == "" {
		stream = realtime.StreamAlerts
	}
	return &HubGateway{hub: hub, stream: stream}
}

// Send publishes the notification. Having no listeners is not a failure.
func (g *HubGateway) Send(ctx context.Context, n dispatch.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.hub.Broadcast(g.stream, realtime.Message{Event: "alert", Data: NewPayload(n)})
	return err
}

// Close is a no-op; the hub is owned by the caller.
func (g *HubGateway) Close() error {
	return nil
}
