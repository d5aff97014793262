// Package distributor implements the Activity Distributor and Worker
// Pool Registry: round-robin fan-out of accepted activities to a pool
// of executor workers, with an unbounded backlog while no worker is
// registered.
package distributor

import "github.com/polycopy/pipeline/internal/ports"

// endpoint is a registered worker: an opaque id paired with its sink
// capability. The registry holds no back-reference into the worker —
// only the small send/close capability, avoiding a cyclic reference
// between distributor and worker.
type endpoint struct {
	id   string
	sink ports.WorkerSink
}

// registry is a mutable ordered list of worker endpoints plus the
// monotonically advancing round-robin index. It is not safe for
// concurrent use on its own — Distributor guards it with a mutex.
type registry struct {
	endpoints []endpoint
	index     uint64
}

func newRegistry() *registry {
	return &registry{}
}

func (r *registry) add(id string, sink ports.WorkerSink) {
	r.endpoints = append(r.endpoints, endpoint{id: id, sink: sink})
}

func (r *registry) remove(id string) {
	for i, e := range r.endpoints {
		if e.id == id {
			r.endpoints = append(r.endpoints[:i], r.endpoints[i+1:]...)
			return
		}
	}
}

func (r *registry) size() int {
	return len(r.endpoints)
}

// next selects the next endpoint by round robin, advancing the index
// modulo the registry size captured at call time. Callers must ensure
// size() > 0.
func (r *registry) next() endpoint {
	idx := r.index % uint64(len(r.endpoints))
	r.index++
	return r.endpoints[idx]
}

// snapshot returns a copy of the current endpoint list, safe to iterate
// after releasing the distributor's lock.
func (r *registry) snapshot() []endpoint {
	out := make([]endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}
