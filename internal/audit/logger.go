// Package audit appends immutable action records for compliance and traceability.
package audit

import (
	"context"

	"programhub/internal/reporting"
)

// Store is the persistence the Logger needs.
type Store interface {
	Insert(ctx context.Context, l Log) (Log, error)
}

// Logger appends entries. A failed write never aborts the triggering operation.
type Logger struct {
	store    Store
	reporter *reporting.Reporter
}

// NewLogger creates a Logger.
func NewLogger(store Store, reporter *reporting.Reporter) *Logger {
	return &Logger{store: store, reporter: reporter}
}

// Append records e. Errors are sent to the reporter and swallowed.
func (l *Logger) Append(ctx context.Context, e Entry) {
	if l == nil || l.store == nil {
		return
	}
	_, err := l.store.Insert(ctx, Log{
		UserID:  e.Actor,
		Action:  e.Action,
		Details: e.Details,
		Entity:  e.Entity,
	})
	if err != nil {
		l.reporter.Error("failed to create audit log entry", err, map[string]interface{}{
			"action": string(e.Action),
			"actor":  e.Actor,
		})
	}
}

// Ref is shorthand for an EntityRef.
func Ref(model, id string) *EntityRef {
	return &EntityRef{ID: id, Model: model}
}
