package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotReady      = errors.New("order book not ready")
	ErrSequenceGap   = errors.New("depth update sequence gap")
	ErrStaleUpdate   = errors.New("stale depth update")
	ErrOrderRejected = errors.New("order rejected")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrContextDone   = errors.New("context cancelled")
)

// StrategyFault wraps an unexpected error raised during a strategy
// evaluation tick. Faults are logged as bugs; expected conditions (book not
// ready, short window) never produce one.
type StrategyFault struct {
	Symbol string
	Err    error
}

func (f *StrategyFault) Error() string {
	return "strategy fault for " + f.Symbol + ": " + f.Err.Error()
}

func (f *StrategyFault) Unwrap() error { return f.Err }
