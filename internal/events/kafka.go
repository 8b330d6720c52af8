package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// envelope is the wire form of a relayed event. The payload keeps the
// event's own JSON shape so consumers can decode by type.
type envelope struct {
	Type    Type            `json:"type"`
	OrderID string          `json:"order_id"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// KafkaRelay forwards bus events to a Kafka topic so seller dashboards
// running outside this process can react without polling. The relay is an
// optimization layer on top of the Bus; dropped messages are only logged.
type KafkaRelay struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

// NewKafkaRelay creates a relay writing to topic on the given brokers.
func NewKafkaRelay(brokers []string, topic string, lg *zap.Logger) *KafkaRelay {
	return &KafkaRelay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		lg: lg,
	}
}

// Attach subscribes the relay to both order event types on the bus and
// returns a function that detaches it again.
func (r *KafkaRelay) Attach(b *Bus) (detach func()) {
	un1 := b.Subscribe(TypeOrderCreated, r.forward)
	un2 := b.Subscribe(TypeOrderStatusChanged, r.forward)
	return func() {
		un1()
		un2()
	}
}

// Close flushes and closes the underlying writer.
func (r *KafkaRelay) Close() error {
	if err := r.writer.Close(); err != nil {
		return errors.Wrap(err, "close kafka writer")
	}
	return nil
}

func (r *KafkaRelay) forward(e Event) {
	msg, err := r.encode(e)
	if err != nil {
		r.lg.Error("encode event for kafka", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.lg.Warn("relay event to kafka",
			zap.String("event_type", string(e.EventType())),
			zap.String("order_id", e.OrderID()),
			zap.Error(err),
		)
	}
}

func (r *KafkaRelay) encode(e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal payload")
	}

	body, err := json.Marshal(envelope{
		Type:    e.EventType(),
		OrderID: e.OrderID(),
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal envelope")
	}

	// Key by order id so all events for one order land in one partition.
	// Bus dispatch is concurrent, so this groups events per order rather
	// than guaranteeing their relative order; consumers order by the At
	// timestamp when it matters.
	return kafka.Message{Key: []byte(e.OrderID()), Value: body}, nil
}
