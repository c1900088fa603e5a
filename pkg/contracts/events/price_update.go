package events

import (
	"errors"
	"time"
)

// Evento publicado no tópico "price_updates"
// Preço efetivo = Mantissa * 10^Exponent
type PriceUpdate struct {
	Source      string    `json:"source"` // ex: "ETH/USD"
	Mantissa    int64     `json:"mantissa"`
	Exponent    int32     `json:"exponent"`
	Conf        uint64    `json:"conf"` // intervalo de confiança, mesma escala da mantissa
	PublishTime time.Time `json:"publish_time"`
	Provider    string    `json:"provider"` // "oracle-simulator"
	Version     int       `json:"version"`  // incrementado a cada atualização
}

var (
	ErrMissingSource    = errors.New("price update: missing source")
	ErrNonPositivePrice = errors.New("price update: mantissa must be positive")
	ErrMissingTime      = errors.New("price update: missing publish_time")
)

// Validate rejeita atualizações que o pipeline não deve propagar
func (u PriceUpdate) Validate() error {
	switch {
	case u.Source == "":
		return ErrMissingSource
	case u.Mantissa <= 0:
		return ErrNonPositivePrice
	case u.PublishTime.IsZero():
		return ErrMissingTime
	}
	return nil
}

// PriceCacheKey é a chave Redis do preço corrente de uma fonte
func PriceCacheKey(source string) string { return "price:current:" + source }

// PriceBroadcast é o envelope publicado no Redis Pub/Sub para o WebSocket do price-service
type PriceBroadcast struct {
	Source  string      `json:"source"`
	Payload PriceUpdate `json:"payload"`
}
