package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/price-escrow-platform/internal/settlement-keeper/client"
	"github.com/radieske/price-escrow-platform/internal/settlement-keeper/dto"
	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Settler interface {
	Settle(ctx context.Context, escrowID string) (*dto.SettleResponse, error)
}

// Keeper acompanha escrows aceitos (via escrow_events) e tenta liquidá-los periodicamente
// como terceiro. Só faz sentido com a política de liquidação aberta a qualquer chamador.
type Keeper struct {
	Log      *zap.Logger
	Reader   Reader
	DLQ      Writer // opcional: eventos que não decodificam
	Settler  Settler
	Interval time.Duration

	OnTracked func()
	OnSettled func()
	OnPending func(code string) // ainda não liquidável
	OnDropped func(code string) // deixou de ser acompanhado sem liquidar
	OnError   func(stage string)

	mu      sync.Mutex
	tracked map[string]time.Time // escrowId -> aceito em
}

// Run consome eventos e varre os escrows acompanhados até o contexto terminar
func (k *Keeper) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return k.consume(gctx) })
	g.Go(func() error { return k.sweepLoop(gctx) })
	return g.Wait()
}

func (k *Keeper) consume(ctx context.Context) error {
	for {
		m, err := k.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.Log.Warn("kafka read", zap.Error(err))
			k.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		k.Observe(ctx, m)
	}
}

func (k *Keeper) sweepLoop(ctx context.Context) error {
	every := k.Interval
	if every <= 0 {
		every = 5 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			k.Sweep(ctx)
		}
	}
}

// Observe aplica um evento de escrow ao conjunto acompanhado
func (k *Keeper) Observe(ctx context.Context, m kafka.Message) {
	var ev events.EscrowEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.EscrowID == "" {
		k.Log.Error("unmarshal escrow event", zap.Error(err), zap.ByteString("key", m.Key))
		k.fail("decode")
		k.deadLetter(ctx, m)
		return
	}

	switch ev.Type {
	case events.EscrowAccepted:
		if k.track(ev.EscrowID, ev.Ts) {
			k.Log.Info("tracking escrow", zap.String("escrowId", ev.EscrowID))
			if k.OnTracked != nil {
				k.OnTracked()
			}
		}
	case events.EscrowSettled, events.EscrowWithdrawn:
		k.untrack(ev.EscrowID)
	}
}

// Sweep tenta liquidar cada escrow acompanhado, em ordem de aceite
func (k *Keeper) Sweep(ctx context.Context) {
	for _, id := range k.Tracked() {
		if ctx.Err() != nil {
			return
		}
		res, err := k.Settler.Settle(ctx, id)
		if err == nil {
			k.untrack(id)
			k.Log.Info("escrow settled", zap.String("escrowId", id), zap.String("winner", res.Winner), zap.Int64("payout", res.Payout))
			if k.OnSettled != nil {
				k.OnSettled()
			}
			continue
		}

		var apiErr *client.APIError
		if !errors.As(err, &apiErr) {
			k.Log.Warn("settle call failed", zap.String("escrowId", id), zap.Error(err))
			k.fail("settle")
			continue
		}
		switch apiErr.Code {
		case "NoDecisiveMove", "FeedUnavailable", "InvalidPrice", "Busy":
			k.Log.Debug("escrow not settleable yet", zap.String("escrowId", id), zap.String("code", apiErr.Code))
			if k.OnPending != nil {
				k.OnPending(apiErr.Code)
			}
		case "NotFound", "GameNotSettleable", "NotParticipant":
			// já liquidado/retirado por outro chamador, ou política não permite terceiros
			k.untrack(id)
			k.Log.Info("escrow dropped", zap.String("escrowId", id), zap.String("code", apiErr.Code))
			if k.OnDropped != nil {
				k.OnDropped(apiErr.Code)
			}
		default:
			k.Log.Warn("settle rejected", zap.String("escrowId", id), zap.Error(err))
			k.fail("settle")
		}
	}
}

// Tracked devolve os ids acompanhados, do aceite mais antigo ao mais recente
func (k *Keeper) Tracked() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]string, 0, len(k.tracked))
	for id := range k.tracked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := k.tracked[ids[i]], k.tracked[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	return ids
}

func (k *Keeper) track(id string, at time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.tracked == nil {
		k.tracked = make(map[string]time.Time)
	}
	if _, ok := k.tracked[id]; ok {
		return false
	}
	k.tracked[id] = at
	return true
}

func (k *Keeper) untrack(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.tracked, id)
}

func (k *Keeper) deadLetter(ctx context.Context, m kafka.Message) {
	if k.DLQ == nil {
		return
	}
	if err := k.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}); err != nil {
		k.Log.Error("dlq write", zap.Error(err))
		k.fail("dlq")
	}
}

func (k *Keeper) fail(stage string) {
	if k.OnError != nil {
		k.OnError(stage)
	}
}
