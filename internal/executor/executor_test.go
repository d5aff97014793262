package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycopy/pipeline/internal/domain"
	"github.com/polycopy/pipeline/internal/papertrader"
	"github.com/polycopy/pipeline/internal/ports"
)

// fakePositions serves canned positions keyed by address, standing in for
// the polymarket adapter's FetchPositions.
type fakePositions struct {
	byAddress map[string][]ports.Position
}

func (f *fakePositions) FetchPositions(_ context.Context, address string) ([]ports.Position, error) {
	return f.byAddress[address], nil
}

// fakeBalance returns a fixed balance regardless of address.
type fakeBalance struct {
	balance float64
}

func (f *fakeBalance) GetBalance(context.Context, string) (float64, error) {
	return f.balance, nil
}

// fakeSubmitter records the request it was handed and optionally fails.
type fakeSubmitter struct {
	mu     sync.Mutex
	called bool
	req    ports.SubmitOrderRequest
	err    error
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, req ports.SubmitOrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.req = req
	return f.err
}

func newPaperExecutor(t *testing.T) *Executor {
	t.Helper()
	return New(Config{
		ID:             "w1",
		MinTotalUSD:    1.00,
		AggregationWin: time.Second,
		AggCheckEvery:  10 * time.Millisecond,
		Paper:          papertrader.New(1000),
	})
}

// A worker told to shut down exits its loop before the next idle nap
// completes.
func TestRunExitsPromptlyOnShutdownMessage(t *testing.T) {
	e := newPaperExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- e.Run(ctx) }()

	require.NoError(t, e.Send(ports.WorkerMessage{Kind: ports.MessageShutdown}))

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(idleNap + 100*time.Millisecond):
		t.Fatal("executor did not exit promptly after shutdown")
	}
}

func TestHandleActivityRoutesSubThresholdBuyToBuffer(t *testing.T) {
	e := newPaperExecutor(t)

	e.handleActivity(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{Side: domain.Buy, USDCSize: 0.5, Price: 0.5},
	})

	assert.Equal(t, 1, e.BufferLen())
	assert.Equal(t, int64(0), e.Counters().Executed)
}

func TestHandleActivityExecutesAboveThresholdImmediately(t *testing.T) {
	e := newPaperExecutor(t)

	e.handleActivity(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{Side: domain.Buy, USDCSize: 50, Price: 0.5, Size: 100},
	})

	assert.Equal(t, 0, e.BufferLen())
	assert.Equal(t, int64(1), e.Counters().Executed)
}

func TestExecutePaperRefusalIncrementsDroppedPaper(t *testing.T) {
	e := newPaperExecutor(t)
	e.cfg.Paper = papertrader.New(1) // too little balance for the trade below

	e.execute(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{Side: domain.Buy, USDCSize: 50, Price: 0.5, Size: 100},
	})

	assert.Equal(t, int64(1), e.Counters().DroppedPaper)
	assert.Equal(t, int64(0), e.Counters().Executed)
}

// The live path fetches exactly three things in parallel (own positions,
// leader positions, own balance), computes LeaderBalance as the sum of the
// leader's position values rather than a fourth balance fetch, and matches
// positions on conditionID alone so a leader position on the same market
// but a different outcome token is still found.
func TestExecuteLiveBuildsSubmitOrderRequestFromFetchedPositionsAndBalance(t *testing.T) {
	const proxyWallet = "0xProxyWallet"
	const leaderAddress = "0xLeaderAddress"

	positions := &fakePositions{byAddress: map[string][]ports.Position{
		proxyWallet: {
			{ConditionID: "cond-1", Asset: "own-asset", Size: 10, CurrentValue: 5},
		},
		leaderAddress: {
			{ConditionID: "cond-1", Asset: "other-outcome-token", CurrentValue: 30},
			{ConditionID: "cond-2", Asset: "unrelated-asset", CurrentValue: 20},
		},
	}}
	balance := &fakeBalance{balance: 123}
	submitter := &fakeSubmitter{}

	e := New(Config{
		ID:          "w1",
		ProxyWallet: proxyWallet,
		MinTotalUSD: 1.00,
		Positions:   positions,
		Balance:     balance,
		Submitter:   submitter,
	})

	e.execute(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{
			Side: domain.Buy, USDCSize: 50, Price: 0.5, Size: 100,
			ConditionID: "cond-1", UserAddress: leaderAddress,
		},
	})

	require.True(t, submitter.called)
	assert.Equal(t, int64(1), e.Counters().Executed)
	assert.Equal(t, float64(123), submitter.req.OwnBalance)
	assert.Equal(t, float64(50), submitter.req.LeaderBalance) // 30 + 20, summed over ALL leader positions, not fetched separately
	assert.Equal(t, "own-asset", submitter.req.OwnPosition.Asset)
	assert.Equal(t, "cond-1", submitter.req.LeaderPosition.ConditionID)
	assert.Equal(t, "other-outcome-token", submitter.req.LeaderPosition.Asset) // matched on conditionID alone, despite the asset mismatch
	assert.Equal(t, leaderAddress, submitter.req.LeaderAddress)
}

// A leader position absent from the fetched set falls back to a zero-value
// Position carrying only the condition ID being traded.
func TestExecuteLiveFallsBackToZeroPositionWhenConditionIDNotFound(t *testing.T) {
	const proxyWallet = "0xProxyWallet"
	const leaderAddress = "0xLeaderAddress"

	positions := &fakePositions{byAddress: map[string][]ports.Position{}}
	balance := &fakeBalance{balance: 0}
	submitter := &fakeSubmitter{}

	e := New(Config{
		ID:          "w1",
		ProxyWallet: proxyWallet,
		MinTotalUSD: 1.00,
		Positions:   positions,
		Balance:     balance,
		Submitter:   submitter,
	})

	e.execute(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{
			Side: domain.Buy, USDCSize: 50, Price: 0.5, Size: 100,
			ConditionID: "cond-missing", UserAddress: leaderAddress,
		},
	})

	require.True(t, submitter.called)
	assert.Equal(t, "cond-missing", submitter.req.OwnPosition.ConditionID)
	assert.Equal(t, "cond-missing", submitter.req.LeaderPosition.ConditionID)
	assert.Equal(t, float64(0), submitter.req.LeaderBalance)
}

// A submitter failure is logged but does not count toward Executed.
func TestExecuteLiveSubmitterFailureDoesNotIncrementExecuted(t *testing.T) {
	const proxyWallet = "0xProxyWallet"
	const leaderAddress = "0xLeaderAddress"

	positions := &fakePositions{byAddress: map[string][]ports.Position{}}
	balance := &fakeBalance{balance: 0}
	submitter := &fakeSubmitter{err: fmt.Errorf("clob: rejected")}

	e := New(Config{
		ID:          "w1",
		ProxyWallet: proxyWallet,
		MinTotalUSD: 1.00,
		Positions:   positions,
		Balance:     balance,
		Submitter:   submitter,
	})

	e.execute(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{
			Side: domain.Buy, USDCSize: 50, Price: 0.5, Size: 100,
			ConditionID: "cond-1", UserAddress: leaderAddress,
		},
	})

	require.True(t, submitter.called)
	assert.Equal(t, int64(0), e.Counters().Executed)
}

// With no Positions/Balance/Submitter wired, the live path fails fast
// instead of silently dropping the activity.
func TestExecuteLiveWithoutConfiguredCollaboratorsReturnsError(t *testing.T) {
	e := New(Config{ID: "w1", MinTotalUSD: 1.00})

	err := e.executeLive(context.Background(), domain.QueueActivity{
		Activity: domain.Activity{Side: domain.Buy, ConditionID: "cond-1", UserAddress: "0xLeader"},
	})

	require.Error(t, err)
}
