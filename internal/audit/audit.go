// Package audit records integration activity without ever blocking or
// failing the operation being audited.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Entry is one audited operation.
type Entry struct {
	IntegrationID string         `json:"integrationId,omitempty"`
	Category      string         `json:"category,omitempty"`
	Provider      string         `json:"provider"`
	Action        string         `json:"action"`
	Success       bool           `json:"success"`
	Duration      time.Duration  `json:"duration"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	At            time.Time      `json:"at"`
}

// Sink persists entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, entry Entry) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// MultiSink writes every entry to each sink and joins their failures.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger writes entries to a sink on background goroutines. Sink
// failures are logged at warn level and dropped.
type Logger struct {
	sink   Sink
	logger *otelzap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLogger creates an audit logger. A nil sink discards entries.
func NewLogger(sink Sink, logger *otelzap.Logger) *Logger {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Logger{sink: sink, logger: logger, now: time.Now}
}

// Record schedules entry for writing and returns immediately. The write
// outlives ctx's cancellation but keeps its values.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || l.sink == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = l.now()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.logger.Ctx(ctx).Warn("audit logger closed, dropping entry",
			zap.String("provider", entry.Provider),
			zap.String("action", entry.Action))
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := l.sink.Write(wctx, entry); err != nil {
			l.logger.Ctx(wctx).Warn("failed to write audit entry",
				zap.String("provider", entry.Provider),
				zap.String("action", entry.Action),
				zap.Error(err))
		}
	}()
}

// Observe records the outcome of an operation that started at start.
func (l *Logger) Observe(ctx context.Context, entry Entry, start time.Time, err error) {
	if l == nil {
		return
	}
	entry.Duration = time.Since(start)
	entry.Success = err == nil
	if err != nil {
		entry.Error = err.Error()
	}
	l.Record(ctx, entry)
}

// Close stops accepting entries and waits for pending writes.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.wg.Wait()
}
