package oracle

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

const Provider = "oracle-simulator"

var ErrUnknownSource = errors.New("unknown price source")

// Catálogo fixo de pares simulados (expoente -8, como feeds on-chain)
var DefaultCatalog = []events.PriceUpdate{
	{Source: "ETH/USD", Mantissa: 262668321338, Exponent: -8},
	{Source: "BTC/USD", Mantissa: 6000000000000, Exponent: -8},
	{Source: "SOL/USD", Mantissa: 15000000000, Exponent: -8},
}

// Oracle mantém o último preço de cada fonte e gera passeios aleatórios
type Oracle struct {
	mu      sync.Mutex
	prices  map[string]events.PriceUpdate
	rng     *rand.Rand
	maxStep float64 // variação máxima por tick, ex: 0.005 = 0.5%
	nowFn   func() time.Time
}

func New(catalog []events.PriceUpdate, seed int64, maxStep float64) *Oracle {
	o := &Oracle{
		prices:  make(map[string]events.PriceUpdate, len(catalog)),
		rng:     rand.New(rand.NewSource(seed)),
		maxStep: maxStep,
		nowFn:   time.Now,
	}
	for _, p := range catalog {
		p.Provider = Provider
		p.Conf = confFor(p.Mantissa)
		p.PublishTime = o.nowFn().UTC()
		o.prices[p.Source] = p
	}
	return o
}

// Tick move cada preço em até ±maxStep e devolve as novas cotações, ordenadas por fonte
func (o *Oracle) Tick() []events.PriceUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.nowFn().UTC()
	out := make([]events.PriceUpdate, 0, len(o.prices))
	for _, src := range o.sourcesLocked() {
		p := o.prices[src]
		delta := (o.rng.Float64()*2 - 1) * o.maxStep
		p.Mantissa = max(p.Mantissa+int64(float64(p.Mantissa)*delta), 1)
		p.Conf = confFor(p.Mantissa)
		p.PublishTime = now
		p.Version++
		o.prices[src] = p
		out = append(out, p)
	}
	return out
}

// Set fixa o preço de uma fonte conhecida; exponent nil mantém o atual
func (o *Oracle) Set(source string, mantissa int64, exponent *int32, conf uint64) (events.PriceUpdate, error) {
	if mantissa <= 0 {
		return events.PriceUpdate{}, events.ErrNonPositivePrice
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.prices[source]
	if !ok {
		return events.PriceUpdate{}, ErrUnknownSource
	}
	p.Mantissa = mantissa
	if exponent != nil {
		p.Exponent = *exponent
	}
	if conf == 0 {
		conf = confFor(mantissa)
	}
	p.Conf = conf
	p.PublishTime = o.nowFn().UTC()
	p.Version++
	o.prices[source] = p
	return p, nil
}

// Snapshot devolve os preços correntes, ordenados por fonte
func (o *Oracle) Snapshot() []events.PriceUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]events.PriceUpdate, 0, len(o.prices))
	for _, src := range o.sourcesLocked() {
		out = append(out, o.prices[src])
	}
	return out
}

func (o *Oracle) sourcesLocked() []string {
	keys := make([]string, 0, len(o.prices))
	for k := range o.prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// confFor usa 0.1% do preço como intervalo de confiança
func confFor(mantissa int64) uint64 { return uint64(mantissa / 1000) }
