package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three sub-threshold BUYs at $0.40/$0.30/$0.40 with prices 0.5/0.6/0.5
// coalesce into one $1.10 order at ~0.5273.
func TestAggregatedTradeCoalescesAboveMinimum(t *testing.T) {
	base := Activity{UserAddress: "0xLeader", ConditionID: "c1", Asset: "a1", Side: Buy}

	a1 := base
	a1.USDCSize, a1.Price = 0.40, 0.5
	trade := NewAggregatedTrade(base.AggregationKey(), a1, 0)

	a2 := base
	a2.USDCSize, a2.Price = 0.30, 0.6
	trade.Add(a2, 500)

	a3 := base
	a3.USDCSize, a3.Price = 0.40, 0.5
	trade.Add(a3, 1000)

	require.True(t, trade.Ready(2000, 2000))
	assert.True(t, trade.MeetsMinimum(1.00))
	assert.InDelta(t, 1.10, trade.TotalUSDCSize, 1e-9)
	assert.InDelta(t, 0.5273, trade.AveragePrice, 1e-3)

	synth := trade.Synthesize()
	assert.Equal(t, Buy, synth.Side)
	assert.InDelta(t, 1.10, synth.USDCSize, 1e-9)
}

// Only $0.30 contributed — below minimum, the record must be dropped,
// not submitted.
func TestAggregatedTradeDropsBelowMinimum(t *testing.T) {
	base := Activity{UserAddress: "0xLeader", ConditionID: "c1", Asset: "a1", Side: Buy, USDCSize: 0.30, Price: 0.6}
	trade := NewAggregatedTrade(base.AggregationKey(), base, 0)

	assert.True(t, trade.Ready(2000, 2000))
	assert.False(t, trade.MeetsMinimum(1.00))
}

func TestAggregatedTradeWindowBoundaryIsInclusive(t *testing.T) {
	base := Activity{UserAddress: "0xLeader", ConditionID: "c1", Asset: "a1", Side: Buy, USDCSize: 0.5, Price: 0.5}
	trade := NewAggregatedTrade(base.AggregationKey(), base, 0)

	assert.False(t, trade.Ready(1999, 2000))
	assert.True(t, trade.Ready(2000, 2000))
}

func TestAggregatedTradeFirstTradeTimeNeverChanges(t *testing.T) {
	base := Activity{UserAddress: "0xLeader", ConditionID: "c1", Asset: "a1", Side: Buy, USDCSize: 0.5, Price: 0.5}
	trade := NewAggregatedTrade(base.AggregationKey(), base, 100)
	trade.Add(base, 900)
	assert.Equal(t, int64(100), trade.FirstTradeTimeMs)
	assert.Equal(t, int64(900), trade.LastTradeTimeMs)
}
