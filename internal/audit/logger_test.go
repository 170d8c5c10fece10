package audit

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"programhub/internal/reporting"
)

type fakeStore struct {
	logs []Log
	err  error
}

func (f *fakeStore) Insert(_ context.Context, l Log) (Log, error) {
	if f.err != nil {
		return Log{}, f.err
	}
	f.logs = append(f.logs, l)
	return l, nil
}

func TestAppendStoresEntry(t *testing.T) {
	st := &fakeStore{}
	l := NewLogger(st, reporting.NewStd(log.New(&bytes.Buffer{}, "", 0)))

	l.Append(context.Background(), Entry{
		Actor:   "u1",
		Action:  ActionProgramApproved,
		Details: "approved",
		Entity:  Ref("Program", "p1"),
	})

	require.Len(t, st.logs, 1)
	assert.Equal(t, "u1", st.logs[0].UserID)
	assert.Equal(t, ActionProgramApproved, st.logs[0].Action)
	assert.Equal(t, &EntityRef{ID: "p1", Model: "Program"}, st.logs[0].Entity)
}

func TestAppendSwallowsFailure(t *testing.T) {
	var buf bytes.Buffer
	st := &fakeStore{err: errors.New("db down")}
	l := NewLogger(st, reporting.NewStd(log.New(&buf, "", 0)))

	assert.NotPanics(t, func() {
		l.Append(context.Background(), Entry{Actor: "u1", Action: ActionUserLogin, Details: "x"})
	})
	assert.Contains(t, buf.String(), "failed to create audit log entry")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Append(context.Background(), Entry{Action: ActionUserLogin})
	})
}
