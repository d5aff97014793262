// Package executor implements the per-worker executor loop: a FIFO
// mailbox drained by a single goroutine that routes sub-threshold buys
// into the aggregation buffer and everything else straight to
// execution, paper or live.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polycopy/pipeline/internal/aggregation"
	"github.com/polycopy/pipeline/internal/domain"
	"github.com/polycopy/pipeline/internal/papertrader"
	"github.com/polycopy/pipeline/internal/ports"
)

// idleNap is how long the dequeue loop sleeps when its mailbox is empty
// before checking again.
const idleNap = 200 * time.Millisecond

// Config bundles one worker's dependencies.
type Config struct {
	ID             string
	ProxyWallet    string
	MinTotalUSD    float64
	AggregationWin time.Duration
	AggCheckEvery  time.Duration
	Positions      ports.PositionsClient // nil disables the live path entirely
	Balance        ports.BalanceClient
	Submitter      ports.OrderSubmitter
	Paper          *papertrader.PaperTrader // nil means live trading
}

// Counters is a read-only snapshot of one worker's lifetime activity,
// used by the diagnostics reporter.
type Counters struct {
	Received     int64
	Aggregated   int64
	Executed     int64
	DroppedPaper int64
}

// Executor is one worker's mailbox and execution loop. It implements
// ports.WorkerSink so the distributor can address it directly.
type Executor struct {
	cfg    Config
	buffer *aggregation.Buffer

	mu    sync.Mutex
	queue []ports.WorkerMessage

	// paperMu serialises the dequeue loop and the aggregation flusher on
	// cfg.Paper, which is not safe for concurrent use.
	paperMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc

	received     atomic.Int64
	aggregated   atomic.Int64
	executed     atomic.Int64
	droppedPaper atomic.Int64
}

// New builds an idle Executor; call Run to start its loop.
func New(cfg Config) *Executor {
	return &Executor{
		cfg:    cfg,
		buffer: aggregation.New(cfg.MinTotalUSD, cfg.AggregationWin),
		done:   make(chan struct{}),
	}
}

// Send appends msg to the mailbox. It never blocks and never errors —
// the local queue is unbounded, so the distributor never waits on a
// worker.
func (e *Executor) Send(msg ports.WorkerMessage) error {
	e.mu.Lock()
	e.queue = append(e.queue, msg)
	e.mu.Unlock()
	return nil
}

// Close stops the aggregation flusher. It is idempotent.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
	})
	return nil
}

// Run starts the aggregation flusher and drains the mailbox until a
// shutdown message arrives or ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer close(e.done)

	checkEvery := e.cfg.AggCheckEvery
	if checkEvery <= 0 {
		checkEvery = 500 * time.Millisecond
	}
	go e.buffer.Run(runCtx, checkEvery, func(a domain.Activity) {
		e.aggregated.Add(1)
		e.execute(runCtx, domain.QueueActivity{Activity: a, DetectedAtMs: time.Now().UnixMilli()})
	})

	for {
		if runCtx.Err() != nil {
			return nil
		}

		msg, ok := e.dequeue()
		if !ok {
			select {
			case <-time.After(idleNap):
				continue
			case <-runCtx.Done():
				return nil
			}
		}

		switch msg.Kind {
		case ports.MessageShutdown:
			slog.Info("executor: shutdown received", "worker", e.cfg.ID)
			return nil
		case ports.MessageActivity:
			e.handleActivity(runCtx, msg.Payload)
		}
	}
}

func (e *Executor) dequeue() (ports.WorkerMessage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return ports.WorkerMessage{}, false
	}
	msg := e.queue[0]
	e.queue = e.queue[1:]
	return msg, true
}

func (e *Executor) handleActivity(ctx context.Context, qa domain.QueueActivity) {
	e.received.Add(1)

	if qa.Activity.IsAggregationCandidate(e.cfg.MinTotalUSD) {
		e.buffer.Add(qa.Activity, qa.DetectedAtMs)
		return
	}
	e.execute(ctx, qa)
}

// execute runs one activity to completion, paper or live, logging the
// latency breakdown: time from the leader's trade to detection, from
// detection to this worker receiving it, and the total time spent in
// execute. Fetch and order time are not logged separately; both are
// inside the total.
func (e *Executor) execute(ctx context.Context, qa domain.QueueActivity) {
	receivedAt := time.Now()

	logLatency := func(stage string, err error) {
		fields := []any{
			"worker", e.cfg.ID,
			"tx", qa.TransactionHash,
			"detection_latency_ms", qa.DetectedAtMs - qa.TimestampMs,
			"queue_latency_ms", receivedAt.UnixMilli() - qa.DetectedAtMs,
			"total_latency_ms", time.Since(receivedAt).Milliseconds(),
		}
		if err != nil {
			slog.Warn("executor: "+stage+" failed", append(fields, "err", err)...)
			return
		}
		slog.Debug("executor: "+stage, fields...)
	}

	if e.cfg.Paper != nil {
		e.paperMu.Lock()
		accepted := e.cfg.Paper.ExecuteTrade(qa.Activity)
		e.paperMu.Unlock()
		if accepted {
			e.executed.Add(1)
			logLatency("paper trade executed", nil)
		} else {
			e.droppedPaper.Add(1)
			logLatency("paper trade refused", fmt.Errorf("insufficient balance or position"))
		}
		return
	}

	if err := e.executeLive(ctx, qa); err != nil {
		logLatency("live order", err)
		return
	}
	e.executed.Add(1)
	logLatency("live order submitted", nil)
}

// executeLive fetches own positions, the leader's positions, and own
// balance in parallel, then hands the bundle to the order submitter.
// Sizing and pricing are entirely the submitter's business.
func (e *Executor) executeLive(ctx context.Context, qa domain.QueueActivity) error {
	if e.cfg.Positions == nil || e.cfg.Balance == nil || e.cfg.Submitter == nil {
		return fmt.Errorf("executor.executeLive: live trading not configured")
	}

	var ownPositions, leaderPositions []ports.Position
	var ownBalance float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ownPositions, err = e.cfg.Positions.FetchPositions(gctx, e.cfg.ProxyWallet)
		return err
	})
	g.Go(func() error {
		var err error
		leaderPositions, err = e.cfg.Positions.FetchPositions(gctx, qa.UserAddress)
		return err
	})
	g.Go(func() error {
		var err error
		ownBalance, err = e.cfg.Balance.GetBalance(gctx, e.cfg.ProxyWallet)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("executor.executeLive: fetch: %w", err)
	}

	req := ports.SubmitOrderRequest{
		Side:           strings.ToLower(string(qa.Side)),
		OwnPosition:    findPosition(ownPositions, qa.ConditionID),
		LeaderPosition: findPosition(leaderPositions, qa.ConditionID),
		Activity:       qa.Activity,
		OwnBalance:     ownBalance,
		LeaderBalance:  sumCurrentValue(leaderPositions),
		LeaderAddress:  qa.UserAddress,
	}
	if err := e.cfg.Submitter.SubmitOrder(ctx, req); err != nil {
		return fmt.Errorf("executor.executeLive: submit: %w", err)
	}
	return nil
}

func findPosition(positions []ports.Position, conditionID string) ports.Position {
	for _, p := range positions {
		if p.ConditionID == conditionID {
			return p
		}
	}
	return ports.Position{ConditionID: conditionID}
}

func sumCurrentValue(positions []ports.Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.CurrentValue
	}
	return total
}

// Counters returns a point-in-time snapshot of this worker's activity.
func (e *Executor) Counters() Counters {
	return Counters{
		Received:     e.received.Load(),
		Aggregated:   e.aggregated.Load(),
		Executed:     e.executed.Load(),
		DroppedPaper: e.droppedPaper.Load(),
	}
}

// BufferLen reports the number of in-flight aggregation groups, used by
// the diagnostics reporter.
func (e *Executor) BufferLen() int {
	return e.buffer.Len()
}

// Done is closed once Run returns.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}
