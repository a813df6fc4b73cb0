// File: api/schemas/schemas_test.go
package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateAccounting(t *testing.T) {
	s := NewSessionState(3)
	require.True(t, s.Consistent())
	assert.Equal(t, StatusIdle, s.Status)

	s.RecordSuccess("1001")
	s.RecordFailure("1002")
	s.RecordSuccess("1003")

	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.Success)
	assert.Equal(t, 1, s.Failed)
	assert.True(t, s.Consistent())
	assert.False(t, s.Complete())

	s.RecordSuccess("1004")
	assert.True(t, s.Complete())
	assert.InDelta(t, 0.75, s.SuccessRate(), 1e-9)
}

func TestSessionStateProcessedIDsDeduplicated(t *testing.T) {
	s := NewSessionState(10)
	s.RecordFailure("42")
	s.RecordSuccess("42")
	assert.Equal(t, []string{"42"}, s.ProcessedIDs)
	assert.True(t, s.Consistent())
}

func TestConsistentDetectsCorruption(t *testing.T) {
	s := NewSessionState(5)
	s.Processed = 4
	s.Success = 1
	s.Failed = 2
	assert.False(t, s.Consistent())
}

func TestSuccessRateZeroProcessed(t *testing.T) {
	s := NewSessionState(5)
	assert.Zero(t, s.SuccessRate())
}
