package polymarket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/polycopy/pipeline/internal/ports"
)

// rawPosition mirrors the /positions endpoint's JSON shape:
// {conditionId, asset, currentValue, initialValue, percentPnl, size, avgPrice}.
type rawPosition struct {
	ConditionID  string      `json:"conditionId"`
	Asset        string      `json:"asset"`
	CurrentValue json.Number `json:"currentValue"`
	InitialValue json.Number `json:"initialValue"`
	PercentPnl   json.Number `json:"percentPnl"`
	Size         json.Number `json:"size"`
	AvgPrice     json.Number `json:"avgPrice"`
}

// FetchPositions implements ports.PositionsClient against
// /positions?user={address}.
func (c *Client) FetchPositions(ctx context.Context, address string) ([]ports.Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s", c.base, address)

	var raw []rawPosition
	if err := c.get(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("polymarket.FetchPositions: %w", err)
	}

	out := make([]ports.Position, 0, len(raw))
	for _, r := range raw {
		currentValue, _ := r.CurrentValue.Float64()
		initialValue, _ := r.InitialValue.Float64()
		size, _ := r.Size.Float64()
		avgPrice, _ := r.AvgPrice.Float64()

		out = append(out, ports.Position{
			ConditionID:  r.ConditionID,
			Asset:        r.Asset,
			Size:         size,
			CurrentValue: currentValue,
			InitialValue: initialValue,
			AvgPrice:     avgPrice,
		})
	}
	return out, nil
}

// balanceResponse is the opaque balance lookup's response shape. The
// adapter only fetches and parses; sizing and order decisions stay out
// of this package entirely.
type balanceResponse struct {
	Balance json.Number `json:"balance"`
}

// GetBalance implements ports.BalanceClient against
// /balance?user={address}, returning the available USDC balance.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	url := fmt.Sprintf("%s/balance?user=%s", c.base, address)

	var raw balanceResponse
	if err := c.get(ctx, url, &raw); err != nil {
		return 0, fmt.Errorf("polymarket.GetBalance: %w", err)
	}

	balance, err := raw.Balance.Float64()
	if err != nil {
		return 0, fmt.Errorf("polymarket.GetBalance: parse balance: %w", err)
	}
	return balance, nil
}
