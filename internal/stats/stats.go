// Package stats records per-user and protocol-wide deposit aggregates.
// Writes happen only after a deposit fully settles, so the store mirrors
// the admission controller's committed view exactly.
package stats

import (
	"context"
	"time"

	"cosmossdk.io/math"
)

// DepositRecord is one settled deposit as the orchestrator reports it.
type DepositRecord struct {
	AttemptID     string
	Caller        string
	Denom         string
	AmountIn      math.Int
	Swapped       math.Int
	QuoteReceived math.Int
	LiquidityUsed math.Int
	LPMinted      math.Int
	Refunded      math.Int
	PriceSource   string
	Height        int64
	SettledAt     time.Time
}

// UserStats aggregates one caller's settled deposits.
type UserStats struct {
	Caller        string    `json:"caller"`
	DepositCount  int64     `json:"deposit_count"`
	TotalAmount   math.Int  `json:"total_amount"`
	TotalLPMinted math.Int  `json:"total_lp_minted"`
	LastDepositAt time.Time `json:"last_deposit_at"`
}

// ProtocolStats aggregates all settled deposits.
type ProtocolStats struct {
	DepositCount  int64     `json:"deposit_count"`
	UniqueUsers   int64     `json:"unique_users"`
	TotalAmount   math.Int  `json:"total_amount"`
	TotalLPMinted math.Int  `json:"total_lp_minted"`
	LastDepositAt time.Time `json:"last_deposit_at"`
}

// Store persists settled-deposit aggregates.
type Store interface {
	RecordDeposit(ctx context.Context, rec DepositRecord) error
	User(ctx context.Context, caller string) (UserStats, error)
	Protocol(ctx context.Context) (ProtocolStats, error)
	Close() error
}
