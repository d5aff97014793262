// Package papertrader implements the in-memory trade simulator: balance
// and position bookkeeping for a single worker's mirrored trades, with
// no real order ever leaving the process.
package papertrader

import (
	"log/slog"

	"github.com/polycopy/pipeline/internal/domain"
)

// closeEpsilon is the size below which a position is considered fully
// closed, guarding against float64 accumulation leaving a stray residue.
const closeEpsilon = 1e-9

// PaperTrader wraps one worker's domain.PaperAccount with the operations
// the executor calls on a mirrored trade. It is owned by exactly one
// worker and is not safe for concurrent use from elsewhere.
type PaperTrader struct {
	account *domain.PaperAccount
}

// New creates a PaperTrader seeded with the configured starting balance.
func New(startingBalanceUSD float64) *PaperTrader {
	return &PaperTrader{account: domain.NewPaperAccount(startingBalanceUSD)}
}

// GetBalance returns the simulated available USDC balance.
func (p *PaperTrader) GetBalance() float64 {
	return p.account.Balance
}

// GetUserPortfolioValue returns the conservative invested-capital mark
// across every open simulated position.
func (p *PaperTrader) GetUserPortfolioValue() float64 {
	return p.account.PortfolioValue()
}

// ExecuteTrade applies a mirrored trade to the simulated account. It
// returns false, refusing the trade, when a BUY would overdraw the
// balance or a SELL would exceed the held position size — the account
// never goes negative on an accepted trade.
func (p *PaperTrader) ExecuteTrade(a domain.Activity) bool {
	switch a.Side {
	case domain.Buy:
		return p.buy(a)
	case domain.Sell:
		return p.sell(a)
	default:
		slog.Warn("papertrader: unknown side", "side", a.Side)
		return false
	}
}

func (p *PaperTrader) buy(a domain.Activity) bool {
	if a.USDCSize > p.account.Balance {
		slog.Warn("papertrader: refusing buy, insufficient balance",
			"condition_id", a.ConditionID, "usdc_size", a.USDCSize, "balance", p.account.Balance)
		return false
	}

	pos, ok := p.account.Positions[a.ConditionID]
	if !ok {
		pos = &domain.Position{ConditionID: a.ConditionID, Asset: a.Asset}
		p.account.Positions[a.ConditionID] = pos
	}

	p.account.Balance -= a.USDCSize
	pos.Size += a.Size
	pos.Invested += a.USDCSize
	if pos.Size > 0 {
		pos.AvgPrice = pos.Invested / pos.Size
	}
	return true
}

func (p *PaperTrader) sell(a domain.Activity) bool {
	pos, ok := p.account.Positions[a.ConditionID]
	if !ok || pos.Size < a.Size {
		held := 0.0
		if ok {
			held = pos.Size
		}
		slog.Warn("papertrader: refusing sell, insufficient position",
			"condition_id", a.ConditionID, "requested", a.Size, "held", held)
		return false
	}

	investedRemoved := pos.AvgPrice * a.Size
	p.account.Balance += a.USDCSize
	pos.Size -= a.Size
	pos.Invested -= investedRemoved

	if pos.Size <= closeEpsilon {
		delete(p.account.Positions, a.ConditionID)
	}
	return true
}
