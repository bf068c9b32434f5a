package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidOrder         = errors.New("invalid order parameters")
	ErrDataUnavailable      = errors.New("market data unavailable")
	ErrBotRunning           = errors.New("bot already running")
)
