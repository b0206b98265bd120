package progress

import (
	"context"
	"log/slog"

	"github.com/etlcore/orchestrator/internal/metadata"
)

// RunLogSink is the default Sink: it writes a snapshot's row counters to
// the run's RunLog row, per spec.md §4.9 step 3.
type RunLogSink struct {
	runLogs metadata.RunLogGateway
	logger  *slog.Logger
}

func NewRunLogSink(runLogs metadata.RunLogGateway, logger *slog.Logger) *RunLogSink {
	return &RunLogSink{runLogs: runLogs, logger: logger.With("component", "progress_sink")}
}

func (s *RunLogSink) Publish(ctx context.Context, snap Snapshot) {
	if err := s.runLogs.UpdateProgress(ctx, snap.RunID, snap.RowsProcessed, snap.RowsSucceeded, snap.RowsFailed); err != nil {
		s.logger.Error("progress publish failed", "run_id", snap.RunID, "error", err)
	}
}

// multiSink publishes to every member sink in order, letting the
// executor fan one run's publishes out to the mandatory RunLogSink plus
// any sinks registered via Executor.RegisterProgressSink.
type multiSink struct {
	sinks []Sink
}

// FanOut combines sinks into one Sink that forwards every publish to
// each of them.
func FanOut(sinks []Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) Publish(ctx context.Context, snap Snapshot) {
	for _, s := range m.sinks {
		s.Publish(ctx, snap)
	}
}
