package engine

import (
	"ai-trading-challenge/internal/interfaces"
	"ai-trading-challenge/internal/tradelog"
)

// New builds the execution router. rec receives the human-readable
// transcript; it may be nil.
func New(cfg Config, brk interfaces.Broker, rec *tradelog.Transcript, opts ...Option) interfaces.Engine {
	return newEngine(cfg, brk, rec, opts...)
}
