package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Price é o preço de uma fonte como exposto pela API
type Price struct {
	Source      string    `json:"source"`
	Mantissa    int64     `json:"mantissa"`
	Exponent    int32     `json:"exponent"`
	Conf        uint64    `json:"conf"`
	Price       string    `json:"price"` // mantissa * 10^exponent, em decimal exato
	Provider    string    `json:"provider,omitempty"`
	Version     int       `json:"version"`
	PublishTime time.Time `json:"publish_time"`
}

func FromUpdate(u events.PriceUpdate) Price {
	return Price{
		Source:      u.Source,
		Mantissa:    u.Mantissa,
		Exponent:    u.Exponent,
		Conf:        u.Conf,
		Price:       decimal.New(u.Mantissa, u.Exponent).String(),
		Provider:    u.Provider,
		Version:     u.Version,
		PublishTime: u.PublishTime,
	}
}
