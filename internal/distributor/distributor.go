package distributor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/polycopy/pipeline/internal/domain"
	"github.com/polycopy/pipeline/internal/ports"
)

// ErrBacklogFull is returned by Publish when the distributor is
// configured with a backlog cap and that cap is exceeded. By default the
// backlog is unbounded; this error path only fires when New is given a
// positive maxBacklog.
var ErrBacklogFull = fmt.Errorf("distributor: backlog full")

// Distributor fans accepted activities out to a pool of workers,
// round-robin, buffering in an unbounded FIFO backlog while no worker is
// registered. It lives entirely on Tier A and is touched only from
// there.
type Distributor struct {
	mu         sync.Mutex
	reg        *registry
	backlog    []domain.QueueActivity
	maxBacklog int // 0 = unbounded
}

// New creates an empty Distributor. maxBacklog <= 0 means unbounded,
// the default.
func New(maxBacklog int) *Distributor {
	return &Distributor{reg: newRegistry(), maxBacklog: maxBacklog}
}

// Register adds a worker to the pool. If the backlog is non-empty, it is
// drained round-robin across the current registry until empty.
func (d *Distributor) Register(id string, sink ports.WorkerSink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reg.add(id, sink)
	d.drainBacklogLocked()
}

// Unregister removes a worker. Messages already handed to it are not
// recalled — delivery is fire-and-forget at the pipeline level.
func (d *Distributor) Unregister(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reg.remove(id)
}

// Size returns the number of currently registered workers.
func (d *Distributor) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.size()
}

// BacklogLen returns the number of activities currently buffered.
func (d *Distributor) BacklogLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backlog)
}

// Publish selects the next worker by round robin and sends the activity
// to it. With no workers registered, the activity is appended to the
// FIFO backlog instead; that is not an error condition.
func (d *Distributor) Publish(a domain.QueueActivity) error {
	d.mu.Lock()

	if d.reg.size() == 0 {
		if d.maxBacklog > 0 && len(d.backlog) >= d.maxBacklog {
			d.mu.Unlock()
			return ErrBacklogFull
		}
		d.backlog = append(d.backlog, a)
		d.mu.Unlock()
		return nil
	}

	ep := d.reg.next()
	d.mu.Unlock()

	d.send(ep, a)
	return nil
}

// BroadcastShutdown sends a shutdown message to every currently
// registered sink. It does not remove them from the registry — each
// worker is responsible for exiting its own dequeue loop.
func (d *Distributor) BroadcastShutdown() {
	d.mu.Lock()
	snapshot := d.reg.snapshot()
	d.mu.Unlock()

	for _, ep := range snapshot {
		if err := ep.sink.Send(ports.WorkerMessage{Kind: ports.MessageShutdown}); err != nil {
			slog.Warn("distributor: shutdown send failed", "worker", ep.id, "err", err)
		}
	}
}

// drainBacklogLocked delivers buffered activities round-robin across the
// current registry until the backlog is empty or the registry empties.
// Must be called with d.mu held.
func (d *Distributor) drainBacklogLocked() {
	for len(d.backlog) > 0 && d.reg.size() > 0 {
		a := d.backlog[0]
		d.backlog = d.backlog[1:]
		ep := d.reg.next()
		d.send(ep, a)
	}
}

// send is fire-and-forget: neither Publish nor the backlog drain awaits
// worker acknowledgement.
func (d *Distributor) send(ep endpoint, a domain.QueueActivity) {
	if err := ep.sink.Send(ports.WorkerMessage{Kind: ports.MessageActivity, Payload: a}); err != nil {
		slog.Warn("distributor: send failed", "worker", ep.id, "err", err)
	}
}
