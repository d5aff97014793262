// Package ports declares the interfaces the pipeline consumes from its
// external collaborators: the CLOB order-submission client, the
// positions/balance HTTP client, and the worker control-plane transport.
// Only the contracts these collaborators must satisfy are named here —
// their concrete implementations (signing, order sizing, persistence)
// live outside this module's scope.
package ports

import (
	"context"

	"github.com/polycopy/pipeline/internal/domain"
)

// MessageKind distinguishes the two message shapes exchanged on the
// worker control plane.
type MessageKind string

const (
	MessageActivity MessageKind = "activity"
	MessageShutdown MessageKind = "shutdown"
)

// WorkerMessage is what crosses the Tier A → Tier B boundary. Payload is
// populated only for MessageActivity.
type WorkerMessage struct {
	Kind    MessageKind
	Payload domain.QueueActivity
}

// WorkerSink is the small capability a worker exposes to the distributor:
// send a message, or close the mailbox. Concrete implementations are
// in-process; the distributor dispatches to whichever sinks are
// currently registered without knowing their concrete type.
type WorkerSink interface {
	Send(msg WorkerMessage) error
	Close() error
}

// ActivityFeedClient fetches a leader's recent trade activity. The
// Monitor consumes it; polymarket.Client implements it, since the
// endpoint and response shape are fully specified.
type ActivityFeedClient interface {
	FetchActivity(ctx context.Context, userAddress string) ([]domain.Activity, error)
}

// Position is the subset of a `/positions` row the executor needs to
// size and log a mirrored trade.
type Position struct {
	ConditionID  string
	Asset        string
	Size         float64
	CurrentValue float64
	InitialValue float64
	AvgPrice     float64
}

// PositionsClient fetches an address's current positions.
type PositionsClient interface {
	FetchPositions(ctx context.Context, address string) ([]Position, error)
}

// BalanceClient fetches an address's available USDC balance.
type BalanceClient interface {
	GetBalance(ctx context.Context, address string) (float64, error)
}

// SubmitOrderRequest is the opaque argument bundle the executor hands to
// the CLOB submission collaborator. Order sizing and pricing policy are
// out of scope and live entirely behind this call.
type SubmitOrderRequest struct {
	Side           string // "buy" | "sell"
	OwnPosition    Position
	LeaderPosition Position
	Activity       domain.Activity
	OwnBalance     float64
	LeaderBalance  float64
	LeaderAddress  string
}

// OrderSubmitter places a mirrored order on the CLOB. The core never
// inspects the result beyond success/failure; sizing and pricing are the
// submitter's business.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) error
}
