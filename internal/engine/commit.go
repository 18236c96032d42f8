package engine

import (
	"context"

	"tablecore/pkg/tabular"
)

// CommitCoordinator applies everything in the staging buffer to the model
// store as one batch, or discards the buffer. The buffer is cleared on every
// terminal outcome — success, partial failure or hard failure — because after
// a commit attempt the store's versions have moved and stale pending edits
// must not be silently reused. Callers who want to retry re-read fresh
// snapshots and re-stage.
//
// Callers must persist the model store before Apply where the deployment
// requires it: commits are irreversible at the store level and this engine
// owns no save/undo.
type CommitCoordinator struct {
	store  tabular.ModelStore
	buffer *StagingBuffer
}

// NewCommitCoordinator wires a coordinator to its store and buffer.
func NewCommitCoordinator(store tabular.ModelStore, buffer *StagingBuffer) *CommitCoordinator {
	return &CommitCoordinator{store: store, buffer: buffer}
}

// Apply submits every pending edit as one logical operation. With an empty
// buffer it returns a zero-count success without calling the store, so
// callers need not special-case "nothing staged".
//
// Succeeded is true only when the store call itself succeeded AND the batch
// produced no fatal or non-fatal errors; the store can return a clean status
// while reporting row-level errors in the counts, and that is a failure.
func (c *CommitCoordinator) Apply(ctx context.Context, fillLog bool) (tabular.CommitResult, error) {
	edits := c.buffer.snapshotEdits()
	if len(edits) == 0 {
		return tabular.CommitResult{Succeeded: true}, nil
	}
	defer c.buffer.Clear()

	stats, err := c.store.CommitEdits(ctx, edits, fillLog)
	if err != nil {
		return tabular.CommitResult{}, tabular.StoreCommunicationError{Op: "CommitEdits", Err: err}
	}
	return tabular.CommitResult{
		FatalErrors: stats.FatalErrors,
		Errors:      stats.Errors,
		Warnings:    stats.Warnings,
		Infos:       stats.Infos,
		Log:         stats.Log,
		Succeeded:   stats.FatalErrors+stats.Errors == 0,
	}, nil
}

// Cancel discards every pending edit with no model store interaction. It
// always succeeds and is the only cancellation primitive: an in-flight Apply
// is a single blocking store call and is not interruptible.
func (c *CommitCoordinator) Cancel() {
	c.buffer.Clear()
}
