package types

import "errors"

// Cycle error taxonomy. Every one of these ends the cycle.
var (
	ErrSignalUnavailable  = errors.New("trend signal unavailable")
	ErrOracleUnavailable  = errors.New("price oracle unavailable")
	ErrCompositionRead    = errors.New("vault composition read failed")
	ErrZeroPortfolioValue = errors.New("portfolio value is zero")
	ErrTradeExecution     = errors.New("trade execution failed")
)
