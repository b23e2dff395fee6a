package deposit

import (
	"context"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/pkg/logger"
)

// RewardsLedger is notified of incoming deposits before the swap executes.
// Notification is best effort: a failing ledger never blocks a deposit.
type RewardsLedger interface {
	NotifyDeposit(ctx context.Context, caller string, amount math.Int) error
}

// LoggingLedger records notifications in the log. Stands in when no real
// ledger collaborator is configured.
type LoggingLedger struct {
	log *logger.Logger
}

// NewLoggingLedger builds the log-only ledger.
func NewLoggingLedger(log *logger.Logger) *LoggingLedger {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LoggingLedger{log: log}
}

// NotifyDeposit logs the deposit and always succeeds.
func (l *LoggingLedger) NotifyDeposit(_ context.Context, caller string, amount math.Int) error {
	l.log.Info("rewards ledger notified", "caller", caller, "amount", amount.String())
	return nil
}
