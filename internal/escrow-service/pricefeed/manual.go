package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

// ManualFeed é um feed controlado à mão: testes e modo local setam o preço diretamente.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]engine.PriceQuote
	fail   error
	reads  int
	nowFn  func() time.Time
}

func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]engine.PriceQuote), nowFn: time.Now}
}

// Set publica o preço corrente da fonte (mantissa * 10^exponent)
func (f *ManualFeed) Set(source string, mantissa int64, exponent int32) {
	f.SetQuote(engine.PriceQuote{Source: source, Mantissa: mantissa, Exponent: exponent})
}

// SetQuote publica a cotação completa
func (f *ManualFeed) SetQuote(q engine.PriceQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.ObservedAt.IsZero() {
		q.ObservedAt = f.nowFn().UTC()
	}
	f.quotes[q.Source] = q
}

// Fail faz toda leitura seguinte falhar com err; nil restaura
func (f *ManualFeed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// Reads conta as leituras feitas
func (f *ManualFeed) Reads() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reads
}

func (f *ManualFeed) ReadPrice(_ context.Context, source string) (engine.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail != nil {
		return engine.PriceQuote{}, f.fail
	}
	q, ok := f.quotes[source]
	if !ok {
		return engine.PriceQuote{}, fmt.Errorf("%w: no price for %s", engine.ErrFeedUnavailable, source)
	}
	return q, nil
}

var _ engine.PriceFeed = (*ManualFeed)(nil)
