package logger

import (
	"go.uber.org/zap"

	"chain_provider/internal/app/port"
)

// zapAdapter implements port.Logger on top of a sugared zap logger.
type zapAdapter struct {
	s *zap.SugaredLogger
}

// NewZapAdapter wraps z so it can be passed to components expecting port.Logger.
func NewZapAdapter(z *zap.Logger) port.Logger {
	return &zapAdapter{s: z.Sugar()}
}

// Named returns a port.Logger scoped to a component name.
func Named(z *zap.Logger, name string) port.Logger {
	return NewZapAdapter(z.Named(name))
}

// NewNop returns a logger that discards everything.
func NewNop() port.Logger {
	return NewZapAdapter(zap.NewNop())
}

func (a *zapAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *zapAdapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }
