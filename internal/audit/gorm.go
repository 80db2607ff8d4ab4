package audit

import (
	"context"

	"github.com/tournevent/integrations/internal/store"
)

// GormSink appends entries to the integration_logs table.
type GormSink struct {
	logs *store.LogRepository
}

// NewGormSink creates a sink over logs.
func NewGormSink(logs *store.LogRepository) *GormSink {
	return &GormSink{logs: logs}
}

// Write implements Sink.
func (s *GormSink) Write(ctx context.Context, entry Entry) error {
	row := &store.IntegrationLog{
		Category:   entry.Category,
		Provider:   entry.Provider,
		Action:     entry.Action,
		Success:    entry.Success,
		DurationMs: entry.Duration.Milliseconds(),
		Error:      entry.Error,
		Metadata:   entry.Metadata,
		CreatedAt:  entry.At,
	}
	if entry.IntegrationID != "" {
		id := entry.IntegrationID
		row.IntegrationID = &id
	}
	return s.logs.Append(ctx, row)
}
