// File: internal/sink/sink_test.go
package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
)

type recordingSink struct {
	events []schemas.ActivityEvent
}

func (r *recordingSink) Emit(event schemas.ActivityEvent) {
	r.events = append(r.events, event)
}

type fakeStore struct {
	appended []schemas.ActivityEvent
	err      error
}

func (f *fakeStore) SaveSession(context.Context, *schemas.SessionState) error { return nil }
func (f *fakeStore) LoadLatestSession(context.Context) (*schemas.SessionState, error) {
	return nil, nil
}
func (f *fakeStore) AppendActivity(_ context.Context, event schemas.ActivityEvent) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, event)
	return nil
}
func (f *fakeStore) RecentActivity(context.Context, string, int) ([]schemas.ActivityEvent, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

func TestMultiFansOutInOrder(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := Multi{a, b}

	event := schemas.NewActivityEvent("sess-1", "item-1", schemas.EventItemSuccess, "")
	m.Emit(event)

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, schemas.EventItemSuccess, a.events[0].Kind)
}

func TestStoreSinkAppends(t *testing.T) {
	st := &fakeStore{}
	s := NewStoreSink(st, zap.NewNop())

	s.Emit(schemas.NewActivityEvent("sess-1", "", schemas.EventSessionStarted, ""))
	assert.Len(t, st.appended, 1)
}

func TestStoreSinkSwallowsWriteFailure(t *testing.T) {
	st := &fakeStore{err: errors.New("disk full")}
	s := NewStoreSink(st, zap.NewNop())

	assert.NotPanics(t, func() {
		s.Emit(schemas.NewActivityEvent("sess-1", "", schemas.EventSessionCrashed, "boom"))
	})
}

func TestLogSinkHandlesAllKinds(t *testing.T) {
	s := NewLogSink(zap.NewNop())
	for _, kind := range []schemas.EventKind{
		schemas.EventSessionStarted,
		schemas.EventSessionCrashed,
		schemas.EventItemSuccess,
		schemas.EventItemFailure,
		schemas.EventRecovery,
	} {
		assert.NotPanics(t, func() {
			s.Emit(schemas.NewActivityEvent("sess-1", "item-1", kind, "detail"))
		})
	}
}
