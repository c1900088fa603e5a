package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal Redis Pub/Sub e repassa cada atualização ao Hub.
// A inscrição é encerrada quando o contexto termina.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	go Forward(ctx, sub.Channel(), hub, log, func() { _ = sub.Close() })
}

// Forward consome mensagens do Pub/Sub até o contexto terminar ou o canal fechar
func Forward(ctx context.Context, ch <-chan *redis.Message, hub *Hub, log *zap.Logger, onStop func()) {
	defer func() {
		if onStop != nil {
			onStop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			var upd events.PriceBroadcast
			if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
				log.Warn("ws subscriber unmarshal error", zap.Error(err))
				continue
			}
			hub.Broadcast(upd)
		}
	}
}
