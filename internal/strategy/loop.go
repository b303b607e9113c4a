package strategy

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"github.com/capitalk/strategy/internal/bus"
	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/obs"
	"github.com/capitalk/strategy/internal/om"
	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/uncross"
	"github.com/capitalk/strategy/pkg/exception"
)

// pollInterval drives the outgoing logic when no inbound traffic
// arrives, so lifetime and rescue timers still fire on a quiet market.
const pollInterval = 100 * time.Millisecond

// Loop is the single-threaded core of the strategy. It owns the book,
// the order store and the cross in flight; every mutation funnels
// through its goroutine, which is why none of them carry locks.
type Loop struct {
	params    Params
	queue     *bus.Queue
	book      *md.Book
	store     *om.Store
	detector  *uncross.Detector
	lifecycle *uncross.Lifecycle
	metrics   *obs.Metrics
	now       func() time.Time
}

// NewLoop assembles the strategy core. metrics may be nil.
func NewLoop(params Params, queue *bus.Queue, book *md.Book, store *om.Store,
	detector *uncross.Detector, lifecycle *uncross.Lifecycle, metrics *obs.Metrics) *Loop {
	return &Loop{
		params:    params,
		queue:     queue,
		book:      book,
		store:     store,
		detector:  detector,
		lifecycle: lifecycle,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// Synchronize runs the market data warm-up window: for its duration
// only quote ticks are applied, so the book is populated before the
// first trading decision. Order-engine traffic during warm-up is
// unexpected and dropped with a warning.
func (l *Loop) Synchronize(ctx context.Context) error {
	logs.Infof("synchronizing market data for %s", l.params.WarmupWindow)
	timer := time.NewTimer(l.params.WarmupWindow)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			logs.Infof("market data synchronized: %d symbols", len(l.book.Symbols()))
			return nil
		case e, ok := <-l.queue.Chan():
			if !ok {
				return exception.ErrStrategyQueueClosed
			}
			if e.Tick == nil {
				logs.Warnf("dropping non-tick event during warm-up")
				continue
			}
			l.applyTick(*e.Tick)
		}
	}
}

// Run blocks until the context is cancelled, the queue closes, or a
// fatal error halts the strategy. Each iteration drains the inbound
// queue, then runs one pass of the outgoing decision logic.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-l.queue.Chan():
			if !ok {
				logs.Infof("event queue closed, strategy stopping")
				return nil
			}
			if err := l.handleEvent(e); err != nil {
				if exception.IsFatal(err) {
					logs.Errorf("fatal error handling event: %+v", err)
					return err
				}
				logs.Warnf("recoverable error handling event: %+v", err)
			}
			if err := l.drain(); err != nil {
				return err
			}
		case <-ticker.C:
		}

		if err := l.outgoing(); err != nil {
			if exception.IsFatal(err) {
				logs.Errorf("fatal error in outgoing logic: %+v", err)
				return err
			}
			logs.Warnf("recoverable error in outgoing logic: %+v", err)
		}
	}
}

// drain empties whatever else is already buffered so the outgoing pass
// sees the freshest state.
func (l *Loop) drain() error {
	for {
		select {
		case e, ok := <-l.queue.Chan():
			if !ok {
				return nil
			}
			if err := l.handleEvent(e); err != nil {
				if exception.IsFatal(err) {
					logs.Errorf("fatal error handling event: %+v", err)
					return err
				}
				logs.Warnf("recoverable error handling event: %+v", err)
			}
		default:
			return nil
		}
	}
}

func (l *Loop) handleEvent(e bus.Event) error {
	start := l.now()
	defer func() {
		l.metrics.ObserveTick(l.now().Sub(start))
	}()

	switch {
	case e.Tick != nil:
		l.applyTick(*e.Tick)
		return nil
	case e.Exec != nil:
		l.metrics.IncExecReport()
		return l.store.ApplyExecutionReport(*e.Exec)
	case e.Reject != nil:
		l.metrics.IncCancelReject()
		return l.store.ApplyCancelReject(*e.Reject)
	default:
		logs.Warnf("empty event on strategy queue")
		return nil
	}
}

func (l *Loop) applyTick(tick schema.QuoteTick) {
	l.metrics.IncTick()
	if l.book.Update(tick) {
		l.detector.MarkDirty(tick.Symbol)
	}
}

// outgoing runs one iteration of the decision logic: manage the cross
// in flight first, then look for a new one if that freed the slot.
func (l *Loop) outgoing() error {
	if l.lifecycle.Active() {
		c := l.lifecycle.Cross()
		if !c.Sent {
			if err := l.lifecycle.SendWhenReady(l.params.NewOrderDelay); err != nil {
				return err
			}
			if c.Sent {
				l.metrics.IncCrossSent()
			}
		} else {
			hadRescue := !c.RescueOrderID.IsZero()
			if err := l.lifecycle.ManageActiveCross(l.params.MaxOrderLifetime); err != nil {
				return err
			}
			if cur := l.lifecycle.Cross(); cur != nil && !hadRescue && !cur.RescueOrderID.IsZero() {
				l.metrics.IncRescue()
			}
		}
	}

	if !l.lifecycle.Active() {
		start := l.now()
		c := l.detector.FindBestCrossedPair(l.params.MinCrossMagnitude)
		l.metrics.ObserveScan(l.now().Sub(start))
		if c == nil {
			return nil
		}
		l.metrics.IncCrossDetected()
		if err := l.lifecycle.Adopt(c); err != nil {
			return err
		}
		if l.params.NewOrderDelay == 0 {
			if err := l.lifecycle.Send(); err != nil {
				return err
			}
			l.metrics.IncCrossSent()
		}
	}
	return nil
}
