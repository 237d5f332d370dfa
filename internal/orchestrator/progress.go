package orchestrator

import "fmt"

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Target)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s %s...", event.Target, event.Stage)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s %s complete (%s)", event.Target, event.Stage, event.Message)
		}
		return fmt.Sprintf("  ✓ %s %s complete", event.Target, event.Stage)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s %s failed: %s", event.Target, event.Stage, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Target)
	}
}

// FormatStageHeader formats a stage header for display.
// Returns: "[{target}] Stage {N}: {stage.String()}"
func FormatStageHeader(target string, stage Stage) string {
	return fmt.Sprintf("[%s] Stage %d: %s", target, int(stage), stage.String())
}
