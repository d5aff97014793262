package domain

// Position is a simulated holding in one market, tracked by the
// paper-trading simulator.
type Position struct {
	ConditionID string
	Asset       string
	Size        float64 // outcome-token units
	Invested    float64 // USDC committed
	AvgPrice    float64 // Invested / Size when Size > 0
}

// PaperAccount is the in-memory balance and position book the paper
// trader mutates instead of submitting real orders. It is owned by
// exactly one worker and never shared across execution contexts.
type PaperAccount struct {
	Balance   float64
	Positions map[string]*Position // keyed by conditionId
}

// NewPaperAccount creates an account seeded with the configured starting
// balance.
func NewPaperAccount(startingBalanceUSD float64) *PaperAccount {
	return &PaperAccount{
		Balance:   startingBalanceUSD,
		Positions: make(map[string]*Position),
	}
}

// PortfolioValue returns the conservative mark used as the account's
// portfolio value: the sum of invested capital across positions.
func (p *PaperAccount) PortfolioValue() float64 {
	var total float64
	for _, pos := range p.Positions {
		total += pos.Invested
	}
	return total
}
