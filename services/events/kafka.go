// Package eventsvc publishes domain events to Kafka.
package eventsvc

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ticket"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TicketPublisher writes ticket events to the configured topic, keyed by ticket id so the events
// of one ticket stay ordered.
type TicketPublisher struct {
	writer messageWriter
}

var _ ticket.Publisher = (*TicketPublisher)(nil)

func NewTicketPublisher(conf *core.Config) *TicketPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(conf.Kafka.Brokers...),
		Topic:        conf.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	if conf.Kafka.Username != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: conf.Kafka.Username, Password: conf.Kafka.Password},
			TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	return &TicketPublisher{writer: w}
}

// ticketMessage is the wire format of a ticket event.
type ticketMessage struct {
	Type       ticket.EventType `json:"type"`
	Ticket     ticket.Ticket    `json:"ticket"`
	PrevStatus ticket.Status    `json:"prev_status,omitempty"`
	ActorID    string           `json:"actor_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (p *TicketPublisher) Publish(ctx context.Context, evt ticket.Event) error {
	value, err := json.Marshal(ticketMessage{
		Type:       evt.Type,
		Ticket:     evt.Ticket,
		PrevStatus: evt.PrevStatus,
		ActorID:    evt.ActorID,
		OccurredAt: evt.OccurredAt.UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "encoding ticket event")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.Ticket.ID),
		Value:   value,
		Time:    evt.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(evt.Type)}},
	})
	return errors.Wrapf(err, "writing %s event", evt.Type)
}

func (p *TicketPublisher) Close() error {
	return p.writer.Close()
}
