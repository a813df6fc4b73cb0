// File: internal/sink/sink.go
// Package sink fans session activity out to observers. Emission is fire
// and forget: a sink that fails must never stall or fail the session.
package sink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/store"
)

// Sink receives activity events as the session progresses.
type Sink interface {
	Emit(event schemas.ActivityEvent)
}

// Multi fans events out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(event schemas.ActivityEvent) {
	for _, s := range m {
		s.Emit(event)
	}
}

// LogSink writes activity to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("activity")}
}

func (s *LogSink) Emit(event schemas.ActivityEvent) {
	fields := []zap.Field{
		zap.String("session_id", event.SessionID),
		zap.String("kind", string(event.Kind)),
	}
	if event.ItemID != "" {
		fields = append(fields, zap.String("item_id", event.ItemID))
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}

	switch event.Kind {
	case schemas.EventSessionCrashed, schemas.EventItemFailure:
		s.logger.Warn("Session activity.", fields...)
	default:
		s.logger.Info("Session activity.", fields...)
	}
}

// StoreSink appends activity to the persistent log. Write failures are
// logged and dropped; the activity log is an audit trail, not a
// correctness dependency.
type StoreSink struct {
	store   store.Store
	logger  *zap.Logger
	timeout time.Duration
}

func NewStoreSink(st store.Store, logger *zap.Logger) *StoreSink {
	return &StoreSink{store: st, logger: logger.Named("activity_store"), timeout: 5 * time.Second}
}

func (s *StoreSink) Emit(event schemas.ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.AppendActivity(ctx, event); err != nil {
		s.logger.Warn("Dropping activity event.", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}
