// Package logctx builds the structured logger every component logs
// through, replacing the teacher's fmt.Printf calls with go.uber.org/zap
// (grounded on other_examples/fzft-go-mock-redis' zap usage) — see
// DESIGN.md for why this is the one deliberate departure from "keep the
// teacher's way of doing things".
package logctx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger whose level is set from the
// CLI's stacked -v count: 0 is info, 1 is debug, 2+ also enables zap's
// own internal development-style stack traces on error.
func New(verbosity int) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch {
	case verbosity <= 0:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if verbosity >= 2 {
		cfg.Development = true
	}

	return cfg.Build()
}
