package models

import "github.com/pkg/errors"

// Cycle-level failure classes. A pipeline run maps each of these to a
// distinct recovery: skip-and-retry-next-tick, per-bot abort, or loud
// reconcile logging. A rejected trade is a decision outcome (Verdict),
// not an error.
var (
	// ErrBrokerUnavailable - session not connected or broker API error.
	// Transient: the cycle is skipped and the bot stays active.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrSymbolNotFound - broker rejected the instrument.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrInvalidStrategyConfig - unknown strategy id or unusable rule
	// set. Fatal for that bot's cycle only.
	ErrInvalidStrategyConfig = errors.New("invalid strategy config")

	// ErrLockUnavailable - lock store unreachable. Acquisition fails
	// closed: the cycle is skipped.
	ErrLockUnavailable = errors.New("lock store unavailable")

	// ErrPositionOpen - refusing to pyramid onto an existing position.
	ErrPositionOpen = errors.New("position already open")

	// ErrNoOpenPosition - close requested with nothing open.
	ErrNoOpenPosition = errors.New("no open position")

	// ErrZeroStopDistance - stop-loss equals entry, sizing impossible.
	ErrZeroStopDistance = errors.New("zero stop-loss distance")
)

// Verdict is the Risk Gatekeeper's decision for one candidate trade.
type Verdict struct {
	Approved bool
	// Reason is set on rejection.
	Reason string
	// Quantity is the approved position size.
	Quantity float64
	// Breach marks a risk-limit violation that must emergency-stop
	// the bot, independent of the current cycle's outcome.
	Breach bool
}

func Approve(qty float64) Verdict {
	return Verdict{Approved: true, Quantity: qty}
}

func Reject(reason string, breach bool) Verdict {
	return Verdict{Reason: reason, Breach: breach}
}
