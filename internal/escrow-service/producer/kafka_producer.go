package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// MessageWriter é o que o publisher precisa de *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica eventos de escrow no tópico escrow_events.
// A chave é o id do escrow, então eventos do mesmo escrow caem na mesma partição em ordem.
type KafkaPublisher struct {
	Writer  MessageWriter
	Topic   string
	Timeout time.Duration
}

func NewKafkaPublisher(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic, Timeout: 2 * time.Second}
}

// Emit implementa engine.Emitter
func (p *KafkaPublisher) Emit(ctx context.Context, e events.EscrowEvent) error {
	if e.TsUnixMs == 0 {
		now := time.Now().UTC()
		e.TsUnixMs = now.UnixMilli()
		e.Ts = now
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.EscrowID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}
