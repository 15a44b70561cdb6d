package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/pushgateway/port"
)

// RoutingKey is the topic push requests are published under.
const RoutingKey = "push.message"

// envelope is the wire shape consumed by the gateway.
type envelope struct {
	Meta envelopeMeta     `json:"meta"`
	Data port.PushRequest `json:"data"`
}

type envelopeMeta struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AMQPGateway publishes push requests to a durable topic exchange.
type AMQPGateway struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	exchange string
	log      zerolog.Logger
}

// NewAMQPGateway dials url and declares the exchange.
func NewAMQPGateway(url, exchange string, log zerolog.Logger) (*AMQPGateway, error) {
	if url == "" || exchange == "" {
		return nil, errors.New("pushgateway: url and exchange are required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("pushgateway: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pushgateway: channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pushgateway: declare exchange: %w", err)
	}
	return &AMQPGateway{conn: conn, exchange: exchange, log: log}, nil
}

var _ port.Gateway = (*AMQPGateway)(nil)

func (g *AMQPGateway) Push(ctx context.Context, r port.PushRequest) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return errors.New("pushgateway: connection closed")
	}

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	id := uuid.NewString()
	body, err := json.Marshal(envelope{
		Meta: envelopeMeta{ID: id, Type: RoutingKey, OccurredAt: time.Now().UTC()},
		Data: r,
	})
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, g.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     id,
		CorrelationId: r.MessageID,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err == nil {
		g.log.Debug().Str("exchange", g.exchange).Str("message_id", r.MessageID).Msg("pushgateway: published")
	}
	return err
}

func (g *AMQPGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}
