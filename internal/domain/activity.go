package domain

import (
	"strconv"
	"strings"
	"time"
)

// Side is the direction of a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Activity is one trade event emitted by the leader-activity feed.
// It is immutable once built by the Monitor — every downstream component
// either reads it or builds a new one, as AggregatedTrade.Synthesize does.
type Activity struct {
	TransactionHash string
	UserAddress     string
	ConditionID     string
	Asset           string
	Side            Side
	Price           float64
	Size            float64
	USDCSize        float64
	TimestampMs     int64 // normalised to milliseconds
	Slug            string
	EventSlug       string
}

// QueueActivity is an Activity augmented with the Monitor's detection
// timestamp. It is produced once per activity and passed by value through
// the rest of the pipeline.
type QueueActivity struct {
	Activity
	DetectedAtMs int64
}

// oneTrillion is the boundary the Monitor uses to decide whether a raw
// numeric timestamp is seconds or milliseconds: values at or below it are
// seconds, values above it are milliseconds.
const oneTrillion = 1_000_000_000_000

// NormalizeTimestampNumber converts a raw numeric epoch value (as found in
// the activity feed's JSON payload) to milliseconds. Values <= 10^12 are
// treated as seconds.
func NormalizeTimestampNumber(raw int64) int64 {
	if raw > oneTrillion {
		return raw
	}
	return raw * 1000
}

// NormalizeTimestampString parses an ISO-8601 timestamp string into
// milliseconds since epoch. It returns ok=false for anything it cannot
// parse, which the Monitor treats as a dropped activity.
func NormalizeTimestampString(raw string) (ms int64, ok bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// NormalizeTimestamp normalises a raw timestamp value of unknown shape
// (number, numeric string, or ISO-8601 string) to milliseconds. ok is
// false when the value could not be parsed at all.
func NormalizeTimestamp(raw string) (ms int64, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return NormalizeTimestampNumber(n), true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return NormalizeTimestampNumber(int64(f)), true
	}
	return NormalizeTimestampString(raw)
}

// DedupKey returns the canonical identity used by the dedup cache: the
// lowercased transaction hash when present, else a composite key over
// the activity's other identifying fields.
func (a Activity) DedupKey() string {
	if a.TransactionHash != "" {
		return strings.ToLower(a.TransactionHash)
	}
	return strings.ToLower(a.UserAddress) + "|" + a.ConditionID + "|" +
		strconv.FormatInt(a.TimestampMs, 10) + "|" + string(a.Side) + "|" +
		strconv.FormatFloat(a.USDCSize, 'f', -1, 64) + "|" +
		strconv.FormatFloat(a.Price, 'f', -1, 64)
}

// AggregationKey returns the key the aggregation buffer groups
// contributions under: userAddress|conditionId|asset|side.
func (a Activity) AggregationKey() string {
	return strings.ToLower(a.UserAddress) + "|" + a.ConditionID + "|" + a.Asset + "|" + string(a.Side)
}

// IsAggregationCandidate reports whether a is small enough and on the
// right side to be coalesced rather than executed immediately: only
// BUYs below minTotalUSD qualify.
func (a Activity) IsAggregationCandidate(minTotalUSD float64) bool {
	return a.Side == Buy && a.USDCSize < minTotalUSD
}
