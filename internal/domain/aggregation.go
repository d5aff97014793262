package domain

// AggregatedTrade coalesces small same-side trades on one market under a
// single key until the aggregation window elapses.
type AggregatedTrade struct {
	Key              string
	UserAddress      string
	ConditionID      string
	Asset            string
	Side             Side
	Contributions    []Activity
	TotalUSDCSize    float64
	AveragePrice     float64
	FirstTradeTimeMs int64
	LastTradeTimeMs  int64
}

// NewAggregatedTrade starts a new record from its first contribution.
func NewAggregatedTrade(key string, a Activity, nowMs int64) *AggregatedTrade {
	t := &AggregatedTrade{
		Key:              key,
		UserAddress:      a.UserAddress,
		ConditionID:      a.ConditionID,
		Asset:            a.Asset,
		Side:             a.Side,
		FirstTradeTimeMs: nowMs,
	}
	t.Add(a, nowMs)
	return t
}

// Add folds one more contribution into the record, recomputing the
// notional-weighted average price: Σ(usdcSize_i·price_i) / Σ(usdcSize_i).
// FirstTradeTimeMs is never touched; LastTradeTimeMs tracks the latest
// contribution.
func (t *AggregatedTrade) Add(a Activity, nowMs int64) {
	t.Contributions = append(t.Contributions, a)
	weightedSum := t.AveragePrice*t.TotalUSDCSize + a.Price*a.USDCSize
	t.TotalUSDCSize += a.USDCSize
	if t.TotalUSDCSize > 0 {
		t.AveragePrice = weightedSum / t.TotalUSDCSize
	}
	t.LastTradeTimeMs = nowMs
}

// Ready reports whether the aggregation window has elapsed. The boundary
// itself counts as elapsed.
func (t *AggregatedTrade) Ready(nowMs int64, windowMs int64) bool {
	return nowMs-t.FirstTradeTimeMs >= windowMs
}

// MeetsMinimum reports whether the accumulated notional clears the
// exchange's minimum order size.
func (t *AggregatedTrade) MeetsMinimum(minTotalUSD float64) bool {
	return t.TotalUSDCSize >= minTotalUSD
}

// Synthesize builds the synthetic activity submitted in place of the
// individual contributions: the first contributor's identifying fields,
// with usdcSize/price/side replaced by the aggregated values.
func (t *AggregatedTrade) Synthesize() Activity {
	first := t.Contributions[0]
	return Activity{
		TransactionHash: first.TransactionHash,
		UserAddress:     t.UserAddress,
		ConditionID:     t.ConditionID,
		Asset:           t.Asset,
		Side:            t.Side,
		Price:           t.AveragePrice,
		USDCSize:        t.TotalUSDCSize,
		Size:            sizeFromNotional(t.TotalUSDCSize, t.AveragePrice),
		TimestampMs:     first.TimestampMs,
		Slug:            first.Slug,
		EventSlug:       first.EventSlug,
	}
}

func sizeFromNotional(usdcSize, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return usdcSize / price
}
