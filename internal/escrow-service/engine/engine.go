package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Hooks recebe callbacks de métricas; campos nil são ignorados
type Hooks struct {
	OnTransition func(op string)
	OnRejected   func(op, code string)
}

// Engine é a máquina de estados do escrow: Created -> Open -> Accepted -> Closed,
// com saída lateral Created|Open -> Withdrawn.
// Cada transição roda sob o lock do id e dentro de uma única unidade atômica
// (registro + ledger); qualquer falha deixa o registro intacto.
type Engine struct {
	log     *zap.Logger
	tx      Transactor
	feed    PriceFeed
	locker  Locker
	emitter Emitter
	policy  Policy
	settle  SettlePolicy
	hooks   Hooks
	nowFn   func() time.Time
}

// Option customiza o Engine na construção
type Option func(*Engine)

func WithPolicy(p Policy) Option { return func(e *Engine) { e.policy = p } }
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }
func WithEmitter(em Emitter) Option { return func(e *Engine) { e.emitter = em } }
func WithSettlePolicy(sp SettlePolicy) Option { return func(e *Engine) { e.settle = sp } }
func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

// WithNowFunc troca o relógio; usado nos testes para timestamps determinísticos
func WithNowFunc(now func() time.Time) Option { return func(e *Engine) { e.nowFn = now } }

// New cria o engine com política padrão, lock em processo e emitter no-op.
func New(log *zap.Logger, tx Transactor, feed PriceFeed, opts ...Option) *Engine {
	e := &Engine{
		log:     log,
		tx:      tx,
		feed:    feed,
		locker:  NewKeyedMutex(),
		emitter: NoopEmitter{},
		policy:  DefaultPolicy(),
		settle:  AnyCaller,
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.emitter == nil {
		e.emitter = NoopEmitter{}
	}
	if e.settle == nil {
		e.settle = AnyCaller
	}
	if e.nowFn == nil {
		e.nowFn = time.Now
	}
	return e
}

// Policy devolve os limites em uso
func (e *Engine) Policy() Policy { return e.policy }

// OpenRequest abre um escrow; o id é derivado de (Creator, Seed)
type OpenRequest struct {
	Creator     string
	Seed        uint64
	EntryFee    int64
	PriceSource string
}

// Settlement descreve o resultado de uma liquidação
type Settlement struct {
	Escrow *Escrow
	Winner string
	Loser  string
	Payout int64
	Move   decimal.Decimal
	Price  PriceQuote
}

// Open cria o registro em Created, sem custódia e sem preço de referência.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*Escrow, error) {
	const op = "open"
	creator := strings.TrimSpace(req.Creator)
	if !validParty(creator) {
		return nil, e.rejected(op, "", ErrInvalidCaller)
	}
	if req.EntryFee <= 0 {
		return nil, e.rejected(op, "", ErrInvalidEntryFee)
	}
	source := strings.TrimSpace(req.PriceSource)
	if source == "" {
		source = e.policy.DefaultPriceSource
	}

	id := DeriveID(creator, req.Seed)
	var out *Escrow
	err := e.run(ctx, op, id, func(ctx context.Context, u Unit) error {
		now := e.now()
		esc := &Escrow{
			ID:          id,
			Seed:        req.Seed,
			Creator:     creator,
			EntryFee:    req.EntryFee,
			PriceSource: source,
			Status:      StatusCreated,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := u.Records().Create(ctx, esc); err != nil {
			return err
		}
		out = esc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("escrow opened",
		zap.String("escrow_id", id),
		zap.String("creator", creator),
		zap.Int64("entry_fee", req.EntryFee),
		zap.String("price_source", source),
	)
	e.emit(ctx, e.eventFor(events.EscrowOpened, out))
	return out, nil
}

// Fund captura o preço de referência, define a direção e puxa a taxa do criador para a custódia.
func (e *Engine) Fund(ctx context.Context, id, caller string, direction bool) (*Escrow, error) {
	const op = "fund"
	if !validParty(caller) {
		return nil, e.rejected(op, id, ErrInvalidCaller)
	}

	var out *Escrow
	err := e.run(ctx, op, id, func(ctx context.Context, u Unit) error {
		esc, err := u.Records().Get(ctx, id)
		if err != nil {
			return err
		}
		if caller != esc.Creator {
			return ErrNotCreator
		}
		switch esc.Status {
		case StatusCreated:
		case StatusOpen, StatusAccepted, StatusClosed, StatusWithdrawn:
			return ErrGameNotFundable
		default:
			return fmt.Errorf("escrow %s: invalid status %d", id, esc.Status)
		}

		quote, err := e.readPrice(ctx, esc.PriceSource)
		if err != nil {
			return err
		}
		if err := NewCustody(u.Ledger()).TransferIn(ctx, esc, caller, esc.EntryFee); err != nil {
			return err
		}
		esc.ReferencePrice = &quote
		esc.Direction = direction
		esc.Status = StatusOpen
		esc.UpdatedAt = e.now()
		if err := u.Records().Save(ctx, esc); err != nil {
			return err
		}
		out = esc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("escrow funded",
		zap.String("escrow_id", id),
		zap.String("creator", caller),
		zap.Bool("direction", direction),
		zap.String("reference_price", out.ReferencePrice.String()),
	)
	e.emit(ctx, e.eventFor(events.EscrowFunded, out))
	return out, nil
}

// Accept admite a contraparte se o preço não se afastou da referência além da tolerância.
func (e *Engine) Accept(ctx context.Context, id, caller string) (*Escrow, error) {
	const op = "accept"
	if !validParty(caller) {
		return nil, e.rejected(op, id, ErrInvalidCaller)
	}

	var (
		out  *Escrow
		move decimal.Decimal
	)
	err := e.run(ctx, op, id, func(ctx context.Context, u Unit) error {
		esc, err := u.Records().Get(ctx, id)
		if err != nil {
			return err
		}
		switch esc.Status {
		case StatusOpen:
		case StatusCreated, StatusAccepted, StatusClosed, StatusWithdrawn:
			return ErrGameNotJoinable
		default:
			return fmt.Errorf("escrow %s: invalid status %d", id, esc.Status)
		}
		if caller == esc.Creator {
			return ErrCreatorCannotAccept
		}

		quote, err := e.readPrice(ctx, esc.PriceSource)
		if err != nil {
			return err
		}
		ok, err := WithinTolerance(*esc.ReferencePrice, quote, e.policy.AcceptToleranceBps)
		if err != nil {
			return err
		}
		if move, err = PercentMove(*esc.ReferencePrice, quote); err != nil {
			return err
		}
		if !ok {
			e.log.Info("accept rejected by price drift",
				zap.String("escrow_id", id),
				zap.String("caller", caller),
				zap.String("move_percent", move.String()),
			)
			return ErrPriceDriftTooLarge
		}

		if err := NewCustody(u.Ledger()).TransferIn(ctx, esc, caller, esc.EntryFee); err != nil {
			return err
		}
		esc.Counterparty = caller
		esc.Status = StatusAccepted
		esc.UpdatedAt = e.now()
		if err := u.Records().Save(ctx, esc); err != nil {
			return err
		}
		out = esc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("escrow accepted",
		zap.String("escrow_id", id),
		zap.String("counterparty", caller),
		zap.String("move_percent", move.String()),
	)
	ev := e.eventFor(events.EscrowAccepted, out)
	ev.MovePercent = move.String()
	e.emit(ctx, ev)
	return out, nil
}

// Settle relê o preço, exige variação decisiva e paga o pote inteiro ao lado vencedor.
// Quem pode chamar é decidido pela SettlePolicy injetada.
func (e *Engine) Settle(ctx context.Context, id, caller string) (*Settlement, error) {
	const op = "settle"
	if !validParty(caller) {
		return nil, e.rejected(op, id, ErrInvalidCaller)
	}

	var out *Settlement
	err := e.run(ctx, op, id, func(ctx context.Context, u Unit) error {
		esc, err := u.Records().Get(ctx, id)
		if err != nil {
			return err
		}
		switch esc.Status {
		case StatusAccepted:
		case StatusCreated, StatusOpen, StatusClosed, StatusWithdrawn:
			return ErrGameNotSettleable
		default:
			return fmt.Errorf("escrow %s: invalid status %d", id, esc.Status)
		}
		if err := e.settle(esc, caller); err != nil {
			return err
		}

		quote, err := e.readPrice(ctx, esc.PriceSource)
		if err != nil {
			return err
		}
		move, err := PercentMove(*esc.ReferencePrice, quote)
		if err != nil {
			return err
		}
		decisive, err := ReachesThreshold(*esc.ReferencePrice, quote, e.policy.CloseThresholdBps)
		if err != nil {
			return err
		}
		if !decisive {
			return ErrNoDecisiveMove
		}

		winner, loser := esc.Counterparty, esc.Creator
		if (esc.Direction && move.IsPositive()) || (!esc.Direction && move.IsNegative()) {
			winner, loser = esc.Creator, esc.Counterparty
		}
		payout := esc.CustodyBalance
		if err := NewCustody(u.Ledger()).TransferOut(ctx, esc, winner, payout); err != nil {
			return err
		}
		esc.Status = StatusClosed
		esc.UpdatedAt = e.now()
		if err := u.Records().Save(ctx, esc); err != nil {
			return err
		}
		if err := u.Records().Retire(ctx, id); err != nil {
			return err
		}
		out = &Settlement{
			Escrow: esc.Clone(),
			Winner: winner,
			Loser:  loser,
			Payout: payout,
			Move:   move,
			Price:  quote,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("escrow settled",
		zap.String("escrow_id", id),
		zap.String("caller", caller),
		zap.String("winner", out.Winner),
		zap.Int64("payout", out.Payout),
		zap.String("move_percent", out.Move.String()),
	)
	ev := e.eventFor(events.EscrowSettled, out.Escrow)
	ev.Winner = out.Winner
	ev.Payout = out.Payout
	ev.MovePercent = out.Move.String()
	e.emit(ctx, ev)
	return out, nil
}

// Withdraw devolve ao criador o que estiver em custódia enquanto ninguém aceitou o jogo.
func (e *Engine) Withdraw(ctx context.Context, id, caller string) (*Escrow, error) {
	const op = "withdraw"
	if !validParty(caller) {
		return nil, e.rejected(op, id, ErrInvalidCaller)
	}

	var (
		out    *Escrow
		refund int64
	)
	err := e.run(ctx, op, id, func(ctx context.Context, u Unit) error {
		esc, err := u.Records().Get(ctx, id)
		if err != nil {
			return err
		}
		if caller != esc.Creator {
			return ErrNotCreator
		}
		switch esc.Status {
		case StatusCreated, StatusOpen:
		case StatusAccepted, StatusClosed, StatusWithdrawn:
			return ErrGameNotWithdrawable
		default:
			return fmt.Errorf("escrow %s: invalid status %d", id, esc.Status)
		}

		refund = esc.CustodyBalance
		if err := NewCustody(u.Ledger()).TransferOut(ctx, esc, esc.Creator, refund); err != nil {
			return err
		}
		esc.Status = StatusWithdrawn
		esc.UpdatedAt = e.now()
		if err := u.Records().Save(ctx, esc); err != nil {
			return err
		}
		if err := u.Records().Retire(ctx, id); err != nil {
			return err
		}
		out = esc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("escrow withdrawn",
		zap.String("escrow_id", id),
		zap.String("creator", caller),
		zap.Int64("refund", refund),
	)
	ev := e.eventFor(events.EscrowWithdrawn, out)
	ev.Payout = refund
	e.emit(ctx, ev)
	return out, nil
}

// Get lê o escrow vivo; aposentados respondem ErrNotFound
func (e *Engine) Get(ctx context.Context, id string) (*Escrow, error) {
	if r, ok := e.tx.(RecordReader); ok {
		return r.Read(ctx, id)
	}
	var out *Escrow
	err := e.tx.Atomic(ctx, func(ctx context.Context, u Unit) error {
		esc, err := u.Records().Get(ctx, id)
		if err != nil {
			return err
		}
		out = esc
		return nil
	})
	return out, err
}

// run serializa a operação no id e executa fn numa unidade atômica.
func (e *Engine) run(ctx context.Context, op, id string, fn func(ctx context.Context, u Unit) error) error {
	unlock, err := e.locker.Acquire(ctx, id)
	if err != nil {
		return e.rejected(op, id, err)
	}
	defer unlock()

	if err := e.tx.Atomic(ctx, fn); err != nil {
		return e.rejected(op, id, err)
	}
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(op)
	}
	return nil
}

// rejected registra a falha (log + métrica) e devolve o próprio erro
func (e *Engine) rejected(op, id string, err error) error {
	code := CodeOf(err)
	if e.hooks.OnRejected != nil {
		e.hooks.OnRejected(op, code)
	}
	if KindOf(err) == 0 {
		e.log.Error("escrow transition failed", zap.String("op", op), zap.String("escrow_id", id), zap.Error(err))
	} else {
		e.log.Info("escrow transition rejected", zap.String("op", op), zap.String("escrow_id", id), zap.String("code", code))
	}
	return err
}

// readPrice busca uma cotação nova; falhas do feed viram ErrFeedUnavailable
func (e *Engine) readPrice(ctx context.Context, source string) (PriceQuote, error) {
	q, err := e.feed.ReadPrice(ctx, source)
	if err != nil {
		if errors.Is(err, ErrFeedUnavailable) || errors.Is(err, ErrInvalidPrice) {
			return PriceQuote{}, err
		}
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if q.Mantissa <= 0 {
		return PriceQuote{}, ErrInvalidPrice
	}
	if q.Source == "" {
		q.Source = source
	}
	return q, nil
}

func (e *Engine) emit(ctx context.Context, ev events.EscrowEvent) {
	if err := e.emitter.Emit(ctx, ev); err != nil {
		e.log.Warn("escrow event publish failed",
			zap.String("type", ev.Type),
			zap.String("escrow_id", ev.EscrowID),
			zap.Error(err),
		)
	}
}

func (e *Engine) now() time.Time { return e.nowFn().UTC() }

func (e *Engine) eventFor(eventType string, esc *Escrow) events.EscrowEvent {
	now := e.now()
	ev := events.EscrowEvent{
		Type:           eventType,
		EscrowID:       esc.ID,
		Creator:        esc.Creator,
		Counterparty:   esc.Counterparty,
		EntryFee:       esc.EntryFee,
		Direction:      esc.Direction,
		Status:         esc.Status.String(),
		CustodyBalance: esc.CustodyBalance,
		PriceSource:    esc.PriceSource,
		TsUnixMs:       now.UnixMilli(),
		Ts:             now,
	}
	if esc.ReferencePrice != nil {
		ev.RefMantissa = esc.ReferencePrice.Mantissa
		ev.RefExponent = esc.ReferencePrice.Exponent
	}
	return ev
}
