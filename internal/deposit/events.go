package deposit

import (
	"time"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/internal/metrics"
	"github.com/palisade-fi/zapgate/pkg/logger"
)

// Event outcome types.
const (
	EventSettled  = "settled"
	EventRejected = "rejected" // failed before any funds moved
	EventReverted = "reverted" // failed after funds moved; rollback ran
)

// Event is one finished deposit attempt, successful or not.
type Event struct {
	Type        string
	AttemptID   string
	Caller      string
	Amount      math.Int
	LPMinted    math.Int
	PriceSource string
	Took        time.Duration
	Err         error
}

// EventRecorder observes finished attempts. Recording must never fail the
// pipeline; implementations swallow their own errors.
type EventRecorder interface {
	Record(e Event)
}

// LoggingRecorder is the default recorder: one structured log line per
// attempt plus the Prometheus counters.
type LoggingRecorder struct {
	log *logger.Logger
}

// NewLoggingRecorder builds the default recorder.
func NewLoggingRecorder(log *logger.Logger) *LoggingRecorder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LoggingRecorder{log: log}
}

// Record logs the attempt and updates the deposit metrics.
func (r *LoggingRecorder) Record(e Event) {
	var amount int64
	if !e.Amount.IsNil() && e.Amount.IsInt64() {
		amount = e.Amount.Int64()
	}
	metrics.ObserveDeposit(e.Type, amount, e.Took)

	if e.Err != nil {
		observeRejection(e.Err)
		r.log.Info("deposit failed",
			"attempt_id", e.AttemptID, "caller", e.Caller,
			"amount", nonNil(e.Amount).String(), "outcome", e.Type, "error", e.Err.Error())
		return
	}
	r.log.Info("deposit settled",
		"attempt_id", e.AttemptID, "caller", e.Caller,
		"amount", nonNil(e.Amount).String(), "lp_minted", nonNil(e.LPMinted).String(),
		"price_source", e.PriceSource)
}
