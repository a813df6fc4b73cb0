// File: internal/engine/engine.go
// Package engine runs the engagement session: locate a post, draft a
// reply, inject it, submit it, pace, persist. The loop is deliberately
// single-threaded; pacing is the point, not throughput.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/config"
	"github.com/xkilldash9x/engager-cli/internal/feed"
	"github.com/xkilldash9x/engager-cli/internal/humanize"
	"github.com/xkilldash9x/engager-cli/internal/sink"
	"github.com/xkilldash9x/engager-cli/internal/store"
)

// Locator discovers the next eligible post in the feed.
type Locator interface {
	FindNext(ctx context.Context, isProcessed func(id string) bool) (*schemas.ContentItem, error)
	MarkProcessed(ctx context.Context, handle string) error
	ReplyControl(ctx context.Context, itemHandle string) (string, error)
}

// Generator drafts a reply for a post.
type Generator interface {
	Generate(ctx context.Context, item schemas.ContentItem) (schemas.ReplyDraft, error)
}

// Composer opens the reply surface and injects text.
type Composer interface {
	Open(ctx context.Context, replyControlHandle string) (string, error)
	Write(ctx context.Context, editorHandle, text string) error
	Close(ctx context.Context, editorHandle string)
}

// Submitter sends the drafted reply.
type Submitter interface {
	FindControl(ctx context.Context) (string, error)
	Submit(ctx context.Context, composerHandle, controlHandle, draft string) (string, error)
}

// Pager is the slice of the browser driver the loop itself needs.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	ScrollBy(ctx context.Context, viewports float64) error
}

// errPageLost marks failures where the page itself is gone, as opposed
// to one item going wrong.
var errPageLost = errors.New("engine: page lost")

const (
	defaultMaxConsecutiveFailures = 5
	defaultStallTimeout           = 5 * time.Minute

	quietHoursPoll = time.Minute
	// scanPause spaces feed re-scans when nothing eligible is on screen.
	scanPauseMin = 3 * time.Second
	scanPauseMax = 8 * time.Second
	// maxEmptyRounds bounds scroll-and-rescan before the feed is
	// declared exhausted and reloaded.
	maxEmptyRounds = 8
)

// Engine owns one engagement session from start to completion.
type Engine struct {
	pager   Pager
	locator Locator
	gen     Generator
	comp    Composer
	sub     Submitter
	store   store.Store
	sink    sink.Sink
	cfg     config.SessionConfig
	logger  *zap.Logger

	// now is swappable for quiet-hours tests.
	now func() time.Time

	quietPoll     time.Duration
	recoveryPause time.Duration
	scanPauseMin  time.Duration
	scanPauseMax  time.Duration
	crashBackoff  *backoff.ExponentialBackOff
}

// New assembles an engine from its collaborators.
func New(pager Pager, loc Locator, gen Generator, comp Composer, sub Submitter,
	st store.Store, snk sink.Sink, cfg config.SessionConfig, logger *zap.Logger) *Engine {

	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = defaultStallTimeout
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 15 * time.Second
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0

	return &Engine{
		pager:         pager,
		locator:       loc,
		gen:           gen,
		comp:          comp,
		sub:           sub,
		store:         st,
		sink:          snk,
		cfg:           cfg,
		logger:        logger.Named("engine"),
		now:           time.Now,
		quietPoll:     quietHoursPoll,
		recoveryPause: 2 * time.Minute,
		scanPauseMin:  scanPauseMin,
		scanPauseMax:  scanPauseMax,
		crashBackoff:  b,
	}
}

// Run executes the session until the target is met or the context is
// cancelled. The returned error is nil on completion, the cause on
// cancellation or unrecoverable page loss.
func (e *Engine) Run(ctx context.Context) error {
	state := e.loadOrCreate(ctx)
	processed := make(map[string]bool, len(state.ProcessedIDs))
	for _, id := range state.ProcessedIDs {
		processed[id] = true
	}

	if err := e.pager.Navigate(ctx, feed.SearchURL(e.cfg.Query)); err != nil {
		return e.stop(state, fmt.Errorf("open feed: %w", err))
	}

	consecutiveFailures := 0
	emptyRounds := 0
	lastSuccess := e.now()

	for !state.Complete() {
		if ctx.Err() != nil {
			return e.stop(state, ctx.Err())
		}

		if e.inQuietHours(e.now()) {
			e.logger.Info("Quiet hours, idling.")
			if err := sleepCtx(ctx, e.quietPoll); err != nil {
				return e.stop(state, err)
			}
			lastSuccess = e.now()
			continue
		}

		if e.now().Sub(lastSuccess) > e.cfg.StallTimeout {
			e.logger.Warn("No successful reply inside stall window, recovering.",
				zap.Duration("stall_timeout", e.cfg.StallTimeout))
			if err := e.recover(ctx, state, processed, "stall"); err != nil {
				return e.stop(state, err)
			}
			lastSuccess = e.now()
			continue
		}

		item, err := e.processOne(ctx, state, processed)
		switch {
		case err == nil:
			consecutiveFailures = 0
			emptyRounds = 0
			lastSuccess = e.now()
			e.crashBackoff.Reset()
			e.persist(ctx, state)
			e.emit(state.ID, item.ID, schemas.EventItemSuccess, "")
			if state.Complete() {
				continue
			}
			if serr := humanize.SleepRange(ctx, e.cfg.MinDelay, e.cfg.MaxDelay); serr != nil {
				return e.stop(state, serr)
			}

		case ctx.Err() != nil:
			return e.stop(state, ctx.Err())

		case errors.Is(err, feed.ErrNoContent):
			emptyRounds++
			if emptyRounds >= maxEmptyRounds {
				// The feed is exhausted from this scroll position; a
				// reload resets it to fresh results.
				emptyRounds = 0
				if cerr := e.crash(ctx, state, fmt.Errorf("feed exhausted after %d scans", maxEmptyRounds)); cerr != nil {
					return e.stop(state, cerr)
				}
				continue
			}
			e.logger.Debug("Nothing eligible on screen, scrolling.", zap.Int("round", emptyRounds))
			if serr := e.pager.ScrollBy(ctx, 1.5); serr != nil {
				if cerr := e.crash(ctx, state, serr); cerr != nil {
					return e.stop(state, cerr)
				}
				continue
			}
			if serr := humanize.SleepRange(ctx, e.scanPauseMin, e.scanPauseMax); serr != nil {
				return e.stop(state, serr)
			}

		case errors.Is(err, errPageLost):
			if cerr := e.crash(ctx, state, err); cerr != nil {
				return e.stop(state, cerr)
			}

		default:
			consecutiveFailures++
			itemID := ""
			if item != nil {
				itemID = item.ID
			}
			e.persist(ctx, state)
			e.emit(state.ID, itemID, schemas.EventItemFailure, err.Error())
			e.logger.Warn("Item failed.", zap.String("item_id", itemID),
				zap.Int("consecutive", consecutiveFailures), zap.Error(err))

			if consecutiveFailures >= e.cfg.MaxConsecutiveFailures {
				if rerr := e.recover(ctx, state, processed, "consecutive failures"); rerr != nil {
					return e.stop(state, rerr)
				}
				consecutiveFailures = 0
				lastSuccess = e.now()
				continue
			}
			if serr := humanize.SleepRange(ctx, e.cfg.FailureDelayMin, e.cfg.FailureDelayMax); serr != nil {
				return e.stop(state, serr)
			}
		}
	}

	state.Status = schemas.StatusCompleted
	e.persist(ctx, state)
	duration := e.now().Sub(state.StartedAt).Round(time.Second)
	e.emit(state.ID, "", schemas.EventSessionCompleted,
		fmt.Sprintf("success=%d failed=%d rate=%.0f%% duration=%s",
			state.Success, state.Failed, state.SuccessRate()*100, duration))
	e.logger.Info("Session complete.",
		zap.Int("success", state.Success), zap.Int("failed", state.Failed),
		zap.Duration("duration", duration))
	return nil
}

// processOne runs the full pipeline for a single post. A panic anywhere
// in the pipeline is converted into an item failure so one bad post
// cannot take the session down.
func (e *Engine) processOne(ctx context.Context, state *schemas.SessionState, processed map[string]bool) (item *schemas.ContentItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic in item pipeline.", zap.Any("panic", r))
			if item != nil {
				state.RecordFailure(item.ID)
				processed[item.ID] = true
			}
			err = fmt.Errorf("item pipeline panic: %v", r)
		}
	}()

	item, err = e.locator.FindNext(ctx, func(id string) bool { return processed[id] })
	if err != nil {
		if errors.Is(err, feed.ErrNoContent) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errPageLost, err)
	}

	// Flag the node up front so a failed attempt is never retried
	// against the same post.
	if merr := e.locator.MarkProcessed(ctx, item.Handle); merr != nil {
		e.logger.Debug("Could not flag item node.", zap.Error(merr))
	}

	fail := func(stage string, cause error) (*schemas.ContentItem, error) {
		state.RecordFailure(item.ID)
		processed[item.ID] = true
		return item, fmt.Errorf("%s: %w", stage, cause)
	}

	replyControl, err := e.locator.ReplyControl(ctx, item.Handle)
	if err != nil {
		return fail("find reply control", err)
	}

	draft, err := e.gen.Generate(ctx, *item)
	if err != nil {
		return fail("generate reply", err)
	}

	editor, err := e.comp.Open(ctx, replyControl)
	if err != nil {
		return fail("open composer", err)
	}

	if werr := e.comp.Write(ctx, editor, draft.Text); werr != nil {
		e.comp.Close(ctx, editor)
		return fail("inject reply", werr)
	}

	control, err := e.sub.FindControl(ctx)
	if err != nil {
		e.comp.Close(ctx, editor)
		return fail("find submit control", err)
	}

	strategy, err := e.sub.Submit(ctx, editor, control, draft.Text)
	if err != nil {
		e.comp.Close(ctx, editor)
		return fail("submit reply", err)
	}

	e.logger.Info("Reply sent.",
		zap.String("item_id", item.ID),
		zap.String("author", item.AuthorHandle),
		zap.String("strategy", strategy),
		zap.Int("progress", state.Success+1),
		zap.Int("target", state.Target))

	state.RecordSuccess(item.ID)
	processed[item.ID] = true
	return item, nil
}

// recover clears the in-memory skip set, scrolls fresh content into
// view and takes an extended pause. The persisted counters survive;
// previously failed items become eligible again so a retry can land.
func (e *Engine) recover(ctx context.Context, state *schemas.SessionState, processed map[string]bool, reason string) error {
	e.emit(state.ID, "", schemas.EventRecovery, reason)
	e.logger.Warn("Entering recovery.", zap.String("reason", reason))

	for id := range processed {
		delete(processed, id)
	}

	if err := e.pager.ScrollBy(ctx, 2); err != nil {
		return e.crash(ctx, state, err)
	}
	return sleepCtx(ctx, e.recoveryPause)
}

// crash handles page-level loss: persist, back off, reload, resume.
func (e *Engine) crash(ctx context.Context, state *schemas.SessionState, cause error) error {
	state.Status = schemas.StatusCrashed
	e.persist(ctx, state)
	e.emit(state.ID, "", schemas.EventSessionCrashed, cause.Error())
	e.logger.Error("Session crashed, attempting recovery.", zap.Error(cause))

	if err := sleepCtx(ctx, e.crashBackoff.NextBackOff()); err != nil {
		return err
	}
	if err := e.pager.Reload(ctx); err != nil {
		if nerr := e.pager.Navigate(ctx, feed.SearchURL(e.cfg.Query)); nerr != nil {
			return fmt.Errorf("reload after crash: %w", nerr)
		}
	}

	state.Status = schemas.StatusRunning
	e.persist(ctx, state)
	e.emit(state.ID, "", schemas.EventSessionResumed, "after crash")
	return nil
}

// loadOrCreate resumes the newest persisted session when it is still in
// flight and internally consistent; anything else starts fresh.
func (e *Engine) loadOrCreate(ctx context.Context) *schemas.SessionState {
	prev, err := e.store.LoadLatestSession(ctx)
	if err != nil && !errors.Is(err, store.ErrNoSession) {
		e.logger.Warn("Could not load previous session, starting fresh.", zap.Error(err))
	}
	if prev != nil && resumable(prev) {
		prev.Status = schemas.StatusRunning
		e.persist(ctx, prev)
		e.emit(prev.ID, "", schemas.EventSessionResumed,
			fmt.Sprintf("progress=%d/%d", prev.Processed, prev.Target))
		e.logger.Info("Resuming session.",
			zap.String("session_id", prev.ID),
			zap.Int("processed", prev.Processed), zap.Int("target", prev.Target))
		return prev
	}

	fresh := schemas.NewSessionState(e.cfg.Target)
	fresh.Status = schemas.StatusRunning
	e.persist(ctx, fresh)
	e.emit(fresh.ID, "", schemas.EventSessionStarted, fmt.Sprintf("target=%d", fresh.Target))
	e.logger.Info("Starting session.",
		zap.String("session_id", fresh.ID), zap.Int("target", fresh.Target))
	return fresh
}

// resumable sessions were in flight, are below target and carry
// consistent counters. A crashed session counts: the process may have
// died before writing a terminal status.
func resumable(s *schemas.SessionState) bool {
	inFlight := s.Status == schemas.StatusRunning || s.Status == schemas.StatusCrashed
	return inFlight && !s.Complete() && s.Consistent()
}

// stop persists a terminal stopped state. Uses a detached context since
// the run context is usually already cancelled here.
func (e *Engine) stop(st *schemas.SessionState, cause error) error {
	st.Status = schemas.StatusStopped
	pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.persist(pctx, st)
	e.emit(st.ID, "", schemas.EventSessionStopped, cause.Error())
	e.logger.Info("Session stopped.",
		zap.Int("success", st.Success), zap.Int("failed", st.Failed), zap.Error(cause))
	return cause
}

func (e *Engine) persist(ctx context.Context, st *schemas.SessionState) {
	if err := e.store.SaveSession(ctx, st); err != nil {
		e.logger.Warn("Could not persist session state.", zap.Error(err))
	}
}

func (e *Engine) emit(sessionID, itemID string, kind schemas.EventKind, detail string) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(schemas.NewActivityEvent(sessionID, itemID, kind, detail))
}

// inQuietHours reports whether t falls inside the configured window.
// The window may wrap midnight, e.g. 23 to 6.
func (e *Engine) inQuietHours(t time.Time) bool {
	q := e.cfg.QuietHours
	if !q.Enabled || q.StartHour == q.EndHour {
		return false
	}
	h := t.Hour()
	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}
	return h >= q.StartHour || h < q.EndHour
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
