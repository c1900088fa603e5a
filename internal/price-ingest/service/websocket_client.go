package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Publisher recebe as atualizações válidas lidas do oráculo
type Publisher interface {
	Publish(ctx context.Context, u events.PriceUpdate) error
}

// WSClient consome preços do WebSocket do oráculo e publica cada atualização no Kafka.
type WSClient struct {
	URL            string        // endpoint WebSocket do oráculo
	Log            *zap.Logger   // Logger estruturado
	Publisher      Publisher     // destino das atualizações
	ReconnectDelay time.Duration // espera entre tentativas; 0 = 3s

	OnReceived  func()       // métricas
	OnPublished func()       // métricas
	OnRejected  func(string) // métricas por motivo
}

// Start mantém a conexão ativa até o contexto ser cancelado, reconectando após falhas.
func (c *WSClient) Start(ctx context.Context) {
	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS client")
			return
		case <-time.After(delay):
		}
	}
}

// connectAndListen estabelece a conexão e processa mensagens até erro ou fechamento.
func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to oracle WS", zap.String("url", c.URL))

	// ReadMessage não observa o contexto; fechar a conexão destrava a leitura
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, message)
	}
}

// handle valida uma mensagem do oráculo e repassa ao publisher
func (c *WSClient) handle(ctx context.Context, message []byte) {
	if c.OnReceived != nil {
		c.OnReceived()
	}

	var update events.PriceUpdate
	if err := json.Unmarshal(message, &update); err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		c.reject("decode")
		return
	}
	if err := update.Validate(); err != nil {
		c.Log.Warn("rejected price update", zap.String("source", update.Source), zap.Error(err))
		c.reject(reason(err))
		return
	}

	if err := c.Publisher.Publish(ctx, update); err != nil {
		c.Log.Error("failed to publish to Kafka", zap.Error(err))
		c.reject("publish")
		return
	}
	if c.OnPublished != nil {
		c.OnPublished()
	}
}

func (c *WSClient) reject(why string) {
	if c.OnRejected != nil {
		c.OnRejected(why)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, events.ErrMissingSource):
		return "source"
	case errors.Is(err, events.ErrNonPositivePrice):
		return "price"
	default:
		return "invalid"
	}
}
