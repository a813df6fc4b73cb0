// File: internal/browser/context_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ctxKey string

func TestCombineContextCancelsOnSecondary(t *testing.T) {
	primary := context.WithValue(context.Background(), ctxKey("target"), "value")
	secondary, cancelSecondary := context.WithCancel(context.Background())

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	// Values come from the primary context.
	assert.Equal(t, "value", combined.Value(ctxKey("target")))

	cancelSecondary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context was not canceled by the secondary")
	}
}

func TestCombineContextCancelsOnPrimary(t *testing.T) {
	primary, cancelPrimary := context.WithCancel(context.Background())
	secondary := context.Background()

	combined, cancel := CombineContext(primary, secondary)
	defer cancel()

	cancelPrimary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context was not canceled by the primary")
	}
}

func TestDetachOutlivesParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	parent = context.WithValue(parent, ctxKey("k"), 42)

	detached := Detach(parent)
	cancel()

	require.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	assert.Equal(t, 42, detached.Value(ctxKey("k")))
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
}

func TestSelectorFor(t *testing.T) {
	assert.Equal(t, `[data-engager-id="eng-7"]`, selectorFor("eng-7"))
}

func TestIsStaleError(t *testing.T) {
	assert.True(t, isStaleError(errors.New("Could not find node with given id (-32000)")))
	assert.True(t, isStaleError(errors.New("rpc error -32000")))
	assert.False(t, isStaleError(errors.New("net::ERR_CONNECTION_REFUSED")))
	assert.False(t, isStaleError(nil))
}

func TestJSONEncodeEscapes(t *testing.T) {
	assert.Equal(t, `"a\"b"`, jsonEncode(`a"b`))
	assert.Equal(t, `"x"`, jsonEncode("x"))
}
