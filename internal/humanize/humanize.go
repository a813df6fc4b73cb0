// File: internal/humanize/humanize.go
package humanize

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/aquilax/go-perlin"

	"github.com/xkilldash9x/engager-cli/internal/config"
)

// Point is a viewport coordinate.
type Point struct {
	X float64
	Y float64
}

// Simulator produces human-plausible timing and motion. It is pure
// computation; the driver turns its output into CDP events.
type Simulator struct {
	cfg   config.HumanizeConfig
	noise *perlin.Perlin
	// noiseCursor walks the 1D noise field so consecutive paths differ.
	noiseCursor float64
}

// New creates a simulator seeded from the system RNG.
func New(cfg config.HumanizeConfig) *Simulator {
	return &Simulator{
		cfg:   cfg,
		noise: perlin.NewPerlin(2, 2, 3, rand.Int64()),
	}
}

// Enabled reports whether humanization is on. When off, callers should
// fall back to direct interaction.
func (s *Simulator) Enabled() bool {
	return s.cfg.Enabled
}

// Pause sleeps a randomized cognitive-pause duration, honoring ctx.
func (s *Simulator) Pause(ctx context.Context) error {
	return sleepCtx(ctx, s.randMs(s.cfg.PauseMinMs, s.cfg.PauseMaxMs, 350, 1400))
}

// KeyDelay sleeps a randomized inter-key interval, honoring ctx.
func (s *Simulator) KeyDelay(ctx context.Context) error {
	return sleepCtx(ctx, s.randMs(s.cfg.KeyDelayMinMs, s.cfg.KeyDelayMaxMs, 40, 140))
}

// SleepRange sleeps a uniform random duration in [min, max], honoring ctx.
func SleepRange(ctx context.Context, min, max time.Duration) error {
	if max < min {
		max = min
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}
	return sleepCtx(ctx, d)
}

// PointerPath returns intermediate points from start to end, jittered
// with smooth noise so repeated traversals never retrace each other.
func (s *Simulator) PointerPath(start, end Point) []Point {
	dist := math.Hypot(end.X-start.X, end.Y-start.Y)
	steps := int(dist / 12)
	if steps < 6 {
		steps = 6
	}
	if steps > 48 {
		steps = 48
	}

	// Perpendicular unit vector for lateral drift.
	perpX, perpY := 0.0, 1.0
	if dist > 0 {
		perpX = -(end.Y - start.Y) / dist
		perpY = (end.X - start.X) / dist
	}
	amplitude := math.Min(dist/8, 24)

	path := make([]Point, 0, steps+1)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		// Ease-in-out progression approximates real pointer velocity.
		eased := t * t * (3 - 2*t)
		s.noiseCursor += 0.13
		drift := s.noise.Noise1D(s.noiseCursor) * amplitude * math.Sin(t*math.Pi)
		path = append(path, Point{
			X: start.X + (end.X-start.X)*eased + perpX*drift,
			Y: start.Y + (end.Y-start.Y)*eased + perpY*drift,
		})
	}
	// The final point lands exactly on target.
	path[len(path)-1] = end
	return path
}

// TargetWithin picks a click point inside a box, biased toward the
// center rather than uniformly spread.
func (s *Simulator) TargetWithin(left, top, width, height float64) Point {
	cx := left + width/2
	cy := top + height/2
	// Two-sample average pulls the distribution toward the middle.
	dx := (rand.Float64() + rand.Float64() - 1) / 2 * width * 0.5
	dy := (rand.Float64() + rand.Float64() - 1) / 2 * height * 0.5
	return Point{X: cx + dx, Y: cy + dy}
}

func (s *Simulator) randMs(min, max, defMin, defMax int) time.Duration {
	if min <= 0 {
		min = defMin
	}
	if max < min {
		max = defMax
	}
	if max < min {
		max = min
	}
	ms := min
	if span := max - min; span > 0 {
		ms += rand.IntN(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
