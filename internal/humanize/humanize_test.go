// File: internal/humanize/humanize_test.go
package humanize

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/engager-cli/internal/config"
)

func testSim() *Simulator {
	return New(config.HumanizeConfig{
		Enabled:       true,
		PauseMinMs:    1,
		PauseMaxMs:    3,
		KeyDelayMinMs: 1,
		KeyDelayMaxMs: 2,
	})
}

func TestPointerPathEndsOnTarget(t *testing.T) {
	s := testSim()
	start := Point{X: 10, Y: 10}
	end := Point{X: 400, Y: 300}

	path := s.PointerPath(start, end)
	require.NotEmpty(t, path)
	last := path[len(path)-1]
	assert.Equal(t, end, last)
}

func TestPointerPathHasIntermediateSteps(t *testing.T) {
	s := testSim()
	path := s.PointerPath(Point{X: 0, Y: 0}, Point{X: 600, Y: 0})
	assert.GreaterOrEqual(t, len(path), 6)
	assert.LessOrEqual(t, len(path), 48)

	// Progression is monotone toward the target on the dominant axis.
	prev := -math.MaxFloat64
	for _, p := range path {
		assert.GreaterOrEqual(t, p.X, prev-25) // drift tolerance
		if p.X > prev {
			prev = p.X
		}
	}
}

func TestPointerPathsDiffer(t *testing.T) {
	s := testSim()
	a := s.PointerPath(Point{X: 0, Y: 0}, Point{X: 500, Y: 400})
	b := s.PointerPath(Point{X: 0, Y: 0}, Point{X: 500, Y: 400})
	require.Equal(t, len(a), len(b))

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	assert.False(t, same, "two paths over the same segment should not be identical")
}

func TestTargetWithinStaysInsideBox(t *testing.T) {
	s := testSim()
	for range 200 {
		p := s.TargetWithin(100, 50, 80, 30)
		assert.GreaterOrEqual(t, p.X, 100.0)
		assert.LessOrEqual(t, p.X, 180.0)
		assert.GreaterOrEqual(t, p.Y, 50.0)
		assert.LessOrEqual(t, p.Y, 80.0)
	}
}

func TestPauseHonorsContext(t *testing.T) {
	s := New(config.HumanizeConfig{Enabled: true, PauseMinMs: 5000, PauseMaxMs: 6000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Pause(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepRangeBounds(t *testing.T) {
	start := time.Now()
	require.NoError(t, SleepRange(context.Background(), 5*time.Millisecond, 20*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}
