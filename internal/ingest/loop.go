package ingest

import (
	"context"
	"time"

	"exalted/internal/logger"
	"exalted/internal/state"
	"exalted/internal/trading"
)

const Activity = "ingest"

// Executor applies one signal and reports what happened.
type Executor interface {
	ExecuteSignal(ctx context.Context, sig trading.ScoreSignal) trading.Outcome
}

type Deps struct {
	Source   *SignalFile
	Cursor   *state.Cursor
	Executor Executor
	// OnReport receives every finished pass.
	OnReport func(*trading.Report)
	Now      func() time.Time
}

// Loop is the single ingestion worker.
type Loop struct {
	deps Deps
}

func NewLoop(deps Deps) *Loop {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Loop{deps: deps}
}

// RunPass applies every signal newer than the cursor, in ID order, advancing
// the cursor after each attempt. A signal deferred for lack of an external
// read ends the pass without moving the cursor past it.
func (l *Loop) RunPass(ctx context.Context) *trading.Report {
	report := trading.NewReport(Activity, l.deps.Now())
	cursor := l.deps.Cursor.Reload()
	signals := l.deps.Source.After(cursor)
	if len(signals) > 0 {
		logger.Infof("ingest: %d new signal(s) after cursor %d", len(signals), cursor)
	}
	for _, sig := range signals {
		if ctx.Err() != nil {
			report.Abandon(ctx.Err())
			break
		}
		if sig.ID <= l.deps.Cursor.Value() {
			continue
		}
		out := l.deps.Executor.ExecuteSignal(ctx, sig)
		out.SignalID = sig.ID
		report.Add(out)
		if out.Is(trading.ErrDeferred) {
			logger.Warnf("ingest: signal %d (%s) deferred, cursor stays at %d: %v",
				sig.ID, sig.Ticker, l.deps.Cursor.Value(), out.Err)
			report.Abandon(out.Err)
			break
		}
		if err := l.deps.Cursor.Advance(sig.ID); err != nil {
			logger.Errorf("ingest: %v", err)
		}
	}
	report.Finish(l.deps.Now())
	if l.deps.OnReport != nil {
		l.deps.OnReport(report)
	}
	return report
}

// Run executes an initial pass and then one pass per trigger until ctx is done.
func (l *Loop) Run(ctx context.Context, trigger *Trigger) error {
	l.RunPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-trigger.C():
			logger.Debugf("ingest: pass triggered by %s", reason)
			l.RunPass(ctx)
		}
	}
}
