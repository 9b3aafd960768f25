package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeMessageSent   = "message.sent"
	TypeMemberAdded   = "member.added"
	TypeMemberRemoved = "member.removed"
)

type Event struct {
	Type    string    `json:"type"`
	ChatID  string    `json:"chat_id"`
	ActorID string    `json:"actor_id"`
	Payload any       `json:"payload,omitempty"`
	TS      time.Time `json:"ts"`
}

// Publisher emits persisted chat events for downstream consumers
// (notifications and the like). Fire and forget: a broker failure is logged,
// never surfaced to the caller. A nil Publisher is a valid no-op.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true,
	})
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) Publish(ctx context.Context, evtType, chatID, actorID string, payload any) {
	if p == nil || p.writer == nil {
		return
	}
	ev := Event{Type: evtType, ChatID: chatID, ActorID: actorID, Payload: payload, TS: time.Now()}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := kafka.Message{Key: []byte(chatID), Value: b, Time: ev.TS}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warnw("event publish failed", "type", evtType, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
