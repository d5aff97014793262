// Package diagnostics implements the periodic console report: a
// tablewriter dump of per-worker counters and the dedup cache size. It
// is purely observational and never touches pipeline state.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/polycopy/pipeline/internal/executor"
)

// WorkerSnapshot names one worker for reporting purposes.
type WorkerSnapshot struct {
	ID        string
	Counters  executor.Counters
	BufferLen int
}

// Reporter periodically renders a snapshot of every worker's lifetime
// counters and the dedup cache size.
type Reporter struct {
	out       io.Writer
	workers   func() []WorkerSnapshot
	cacheSize func() int
}

// NewReporter creates a Reporter writing to stderr.
func NewReporter(workers func() []WorkerSnapshot, cacheSize func() int) *Reporter {
	return &Reporter{out: os.Stderr, workers: workers, cacheSize: cacheSize}
}

// NewReporterWriter creates a Reporter for tests.
func NewReporterWriter(w io.Writer, workers func() []WorkerSnapshot, cacheSize func() int) *Reporter {
	return &Reporter{out: w, workers: workers, cacheSize: cacheSize}
}

// Run renders a report every interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Render()
		}
	}
}

// Render writes one report immediately.
func (r *Reporter) Render() {
	now := time.Now().Format("15:04:05")
	snapshots := r.workers()

	fmt.Fprintf(r.out, "\n[%s] pipeline diagnostics — dedup cache size: %d\n", now, r.cacheSize())

	table := tablewriter.NewWriter(r.out)
	table.Header("Worker", "Received", "Aggregated", "Executed", "Dropped(paper)", "Buffered")

	var totalReceived, totalExecuted int64
	for _, s := range snapshots {
		table.Append(
			s.ID,
			fmt.Sprintf("%d", s.Counters.Received),
			fmt.Sprintf("%d", s.Counters.Aggregated),
			fmt.Sprintf("%d", s.Counters.Executed),
			fmt.Sprintf("%d", s.Counters.DroppedPaper),
			fmt.Sprintf("%d", s.BufferLen),
		)
		totalReceived += s.Counters.Received
		totalExecuted += s.Counters.Executed
	}
	table.Render()

	fmt.Fprintf(r.out, "  total received: %d, total executed: %d\n", totalReceived, totalExecuted)
}
