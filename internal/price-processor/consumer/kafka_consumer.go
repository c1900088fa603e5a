package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Reader é o subconjunto do *kafka.Reader usado pelo processor
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Writer recebe mensagens inválidas (DLQ)
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Cache interface {
	SetCurrent(ctx context.Context, u events.PriceUpdate) error
}

type Repo interface {
	UpsertCurrent(ctx context.Context, u events.PriceUpdate) error
	InsertHistory(ctx context.Context, u events.PriceUpdate) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome preços do Kafka, atualiza o cache, persiste e difunde via Pub/Sub
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log         *zap.Logger
	Reader      Reader
	DLQ         Writer // opcional
	Repo        Repo
	Cache       Cache
	Broadcaster Broadcaster // opcional
	Channel     string

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem; falhas são contadas e logadas, nunca interrompem o loop
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed() // callback de métrica: mensagem consumida
	}

	var u events.PriceUpdate
	if err := json.Unmarshal(m.Value, &u); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, err)
		return
	}
	if err := u.Validate(); err != nil {
		p.Log.Warn("rejected price update", zap.String("source", u.Source), zap.Error(err))
		p.fail("validate")
		p.deadLetter(ctx, m, err)
		return
	}

	// Atualiza o preço corrente no Redis
	if err := p.Cache.SetCurrent(ctx, u); err != nil {
		p.Log.Warn("redis set failed", zap.Error(err))
		p.fail("cache")
		// não bloqueia persistência se falhar o cache
	} else if p.OnCached != nil {
		p.OnCached()
	}

	// Persiste preço corrente e histórico no Postgres
	if err := p.Repo.UpsertCurrent(ctx, u); err != nil {
		p.Log.Warn("db upsert failed", zap.Error(err))
		p.fail("db_upsert")
		return
	}
	if err := p.Repo.InsertHistory(ctx, u); err != nil {
		p.Log.Warn("db insert history failed", zap.Error(err))
		p.fail("db_history")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}

	p.broadcast(ctx, u)
}

// broadcast envia o preço para o WebSocket do price-service via Redis Pub/Sub
func (p *Processor) broadcast(ctx context.Context, u events.PriceUpdate) {
	if p.Broadcaster == nil {
		return
	}
	b, err := json.Marshal(events.PriceBroadcast{Source: u.Source, Payload: u})
	if err != nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(bctx, p.Channel, b); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.Error(err))
		p.fail("broadcast")
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	dlq := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_topic", Value: []byte(m.Topic)},
		},
		Time: time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, dlq); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
