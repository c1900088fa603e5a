package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EscrowPolicy são os parâmetros de negócio do escrow-service.
// Ordem de precedência: defaults < arquivo TOML < variáveis ESCROW_*.
type EscrowPolicy struct {
	AcceptToleranceBps int64  `toml:"accept_tolerance_bps"`
	CloseThresholdBps  int64  `toml:"close_threshold_bps"`
	SettlePolicy       string `toml:"settle_policy"` // "any" | "participants"
	DefaultPriceSource string `toml:"default_price_source"`
	FeedMaxAge         string `toml:"feed_max_age"` // ex: "30s"; vazio ou "0" desliga
	LockTTL            string `toml:"lock_ttl"`
	LockWait           string `toml:"lock_wait"`
}

// DefaultEscrowPolicy: 1% para aceitar, 5% para liquidar, liquidação por qualquer um
func DefaultEscrowPolicy() EscrowPolicy {
	return EscrowPolicy{
		AcceptToleranceBps: 100,
		CloseThresholdBps:  500,
		SettlePolicy:       "any",
		DefaultPriceSource: "ETH/USD",
		FeedMaxAge:         "30s",
		LockTTL:            "10s",
		LockWait:           "0s",
	}
}

// LoadEscrowPolicy lê o TOML em path (se não vazio) e aplica overrides de ambiente
func LoadEscrowPolicy(path string) (EscrowPolicy, error) {
	p := DefaultEscrowPolicy()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return p, fmt.Errorf("escrow policy file: %w", err)
		}
		if _, err := toml.DecodeFile(path, &p); err != nil {
			return p, fmt.Errorf("decode escrow policy %s: %w", path, err)
		}
	}

	p.AcceptToleranceBps = getInt64("ESCROW_ACCEPT_TOLERANCE_BPS", p.AcceptToleranceBps)
	p.CloseThresholdBps = getInt64("ESCROW_CLOSE_THRESHOLD_BPS", p.CloseThresholdBps)
	p.SettlePolicy = getEnv("ESCROW_SETTLE_POLICY", p.SettlePolicy)
	p.DefaultPriceSource = getEnv("ESCROW_DEFAULT_PRICE_SOURCE", p.DefaultPriceSource)
	p.FeedMaxAge = getEnv("ESCROW_FEED_MAX_AGE", p.FeedMaxAge)
	p.LockTTL = getEnv("ESCROW_LOCK_TTL", p.LockTTL)
	p.LockWait = getEnv("ESCROW_LOCK_WAIT", p.LockWait)

	if _, err := p.Durations(); err != nil {
		return p, err
	}
	return p, nil
}

// PolicyDurations são os campos de duração já convertidos
type PolicyDurations struct {
	FeedMaxAge time.Duration
	LockTTL    time.Duration
	LockWait   time.Duration
}

// Durations converte os campos textuais de duração
func (p EscrowPolicy) Durations() (PolicyDurations, error) {
	var (
		d   PolicyDurations
		err error
	)
	if d.FeedMaxAge, err = parseDuration("feed_max_age", p.FeedMaxAge); err != nil {
		return d, err
	}
	if d.LockTTL, err = parseDuration("lock_ttl", p.LockTTL); err != nil {
		return d, err
	}
	if d.LockWait, err = parseDuration("lock_wait", p.LockWait); err != nil {
		return d, err
	}
	return d, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("escrow policy %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("escrow policy %s: negative duration %s", field, v)
	}
	return d, nil
}
