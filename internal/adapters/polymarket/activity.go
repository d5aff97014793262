package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/polycopy/pipeline/internal/domain"
)

// rawActivity mirrors the /activity endpoint's JSON shape. Numeric
// fields arrive as either numbers or numeric strings depending on the
// feed, hence json.Number; the timestamp may also be an ISO-8601 string,
// hence rawTimestamp.
type rawActivity struct {
	TransactionHash string       `json:"transactionHash"`
	ProxyWallet     string       `json:"proxyWallet"`
	ConditionID     string       `json:"conditionId"`
	Asset           string       `json:"asset"`
	Side            string       `json:"side"`
	Price           json.Number  `json:"price"`
	Size            json.Number  `json:"size"`
	USDCSize        json.Number  `json:"usdcSize"`
	Timestamp       rawTimestamp `json:"timestamp"`
	Slug            string       `json:"slug"`
	EventSlug       string       `json:"eventSlug"`
}

// rawTimestamp keeps the feed's timestamp as text, whether it arrived as
// a JSON number or a JSON string, so domain.NormalizeTimestamp can decide
// per activity whether it is usable.
type rawTimestamp string

func (t *rawTimestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = rawTimestamp(s)
		return nil
	}
	*t = rawTimestamp(b)
	return nil
}

// FetchActivity implements ports.ActivityFeedClient against
// /activity?user={addr}&type=TRADE. The feed is not paged in this
// contract, unlike the historical trades endpoint.
func (c *Client) FetchActivity(ctx context.Context, userAddress string) ([]domain.Activity, error) {
	url := fmt.Sprintf("%s/activity?user=%s&type=TRADE", c.base, userAddress)

	var raw []rawActivity
	if err := c.get(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("polymarket.FetchActivity: %w", err)
	}

	out := make([]domain.Activity, 0, len(raw))
	for _, r := range raw {
		price, _ := r.Price.Float64()
		size, _ := r.Size.Float64()
		usdcSize, _ := r.USDCSize.Float64()

		ms, ok := domain.NormalizeTimestamp(string(r.Timestamp))
		if !ok {
			slog.Debug("polymarket.FetchActivity: dropping activity with unparseable timestamp",
				"tx", r.TransactionHash, "raw_timestamp", string(r.Timestamp))
			continue
		}

		out = append(out, domain.Activity{
			TransactionHash: r.TransactionHash,
			UserAddress:     r.ProxyWallet,
			ConditionID:     r.ConditionID,
			Asset:           r.Asset,
			Side:            domain.Side(r.Side),
			Price:           price,
			Size:            size,
			USDCSize:        usdcSize,
			TimestampMs:     ms,
			Slug:            r.Slug,
			EventSlug:       r.EventSlug,
		})
	}
	return out, nil
}
