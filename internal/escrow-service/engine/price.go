package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// movePrecision casas decimais de PercentMove; 8 casas distinguem bem abaixo de 1 basis point
const movePrecision = 8

var (
	hundred     = decimal.NewFromInt(100)
	bpsPerUnit  = decimal.NewFromInt(10_000)
	zeroDecimal = decimal.Zero
)

// PriceQuote é uma leitura imutável do feed: preço efetivo = Mantissa * 10^Exponent.
// Mantissa e expoente sempre andam juntos; nada é normalizado para float.
type PriceQuote struct {
	Source     string
	Mantissa   int64
	Exponent   int32
	Conf       uint64
	ObservedAt time.Time
}

// Effective devolve o preço exato como decimal
func (q PriceQuote) Effective() decimal.Decimal {
	return decimal.New(q.Mantissa, q.Exponent)
}

// String renderiza o preço efetivo sem perda
func (q PriceQuote) String() string { return q.Effective().String() }

// PriceFeed lê a cotação corrente de uma fonte. Sem cache: toda checagem de política
// precisa de uma leitura nova no momento da checagem.
type PriceFeed interface {
	ReadPrice(ctx context.Context, sourceID string) (PriceQuote, error)
}

// PercentMove calcula (atual - referência) / referência * 100 preservando o sinal.
func PercentMove(reference, current PriceQuote) (decimal.Decimal, error) {
	ref := reference.Effective()
	if ref.Cmp(zeroDecimal) <= 0 {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return current.Effective().Sub(ref).Mul(hundred).DivRound(ref, movePrecision), nil
}

// compareMoveToBps compara |atual - referência| com bps/10000 da referência sem divisão:
// |atual - ref| * 10000 <=> bps * ref. Retorna -1, 0 ou 1.
func compareMoveToBps(reference, current PriceQuote, bps int64) (int, error) {
	ref := reference.Effective()
	if ref.Cmp(zeroDecimal) <= 0 {
		return 0, ErrInvalidPrice
	}
	if current.Effective().Cmp(zeroDecimal) <= 0 {
		return 0, ErrInvalidPrice
	}
	lhs := current.Effective().Sub(ref).Abs().Mul(bpsPerUnit)
	rhs := decimal.NewFromInt(bps).Mul(ref)
	return lhs.Cmp(rhs), nil
}

// WithinTolerance informa se a variação absoluta é no máximo bps (fronteira inclusiva)
func WithinTolerance(reference, current PriceQuote, bps int64) (bool, error) {
	c, err := compareMoveToBps(reference, current, bps)
	if err != nil {
		return false, err
	}
	return c <= 0, nil
}

// ReachesThreshold informa se a variação absoluta é pelo menos bps (fronteira inclusiva)
func ReachesThreshold(reference, current PriceQuote, bps int64) (bool, error) {
	c, err := compareMoveToBps(reference, current, bps)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}
