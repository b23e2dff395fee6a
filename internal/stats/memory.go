package stats

import (
	"context"
	"sync"

	"cosmossdk.io/math"
)

// MemoryStore keeps aggregates in memory. Used by tests and ephemeral
// deployments.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*UserStats
	protocol ProtocolStats
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*UserStats),
		protocol: ProtocolStats{
			TotalAmount:   math.ZeroInt(),
			TotalLPMinted: math.ZeroInt(),
		},
	}
}

// RecordDeposit folds the record into both aggregates.
func (m *MemoryStore) RecordDeposit(_ context.Context, rec DepositRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[rec.Caller]
	if !ok {
		u = &UserStats{
			Caller:        rec.Caller,
			TotalAmount:   math.ZeroInt(),
			TotalLPMinted: math.ZeroInt(),
		}
		m.users[rec.Caller] = u
		m.protocol.UniqueUsers++
	}
	u.DepositCount++
	u.TotalAmount = u.TotalAmount.Add(rec.AmountIn)
	u.TotalLPMinted = u.TotalLPMinted.Add(rec.LPMinted)
	u.LastDepositAt = rec.SettledAt

	m.protocol.DepositCount++
	m.protocol.TotalAmount = m.protocol.TotalAmount.Add(rec.AmountIn)
	m.protocol.TotalLPMinted = m.protocol.TotalLPMinted.Add(rec.LPMinted)
	m.protocol.LastDepositAt = rec.SettledAt
	return nil
}

// User returns one caller's aggregate, zeroed when unknown.
func (m *MemoryStore) User(_ context.Context, caller string) (UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[caller]; ok {
		return *u, nil
	}
	return UserStats{Caller: caller, TotalAmount: math.ZeroInt(), TotalLPMinted: math.ZeroInt()}, nil
}

// Protocol returns the global aggregate.
func (m *MemoryStore) Protocol(context.Context) (ProtocolStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protocol, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
