// audit/cleanup.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	logger "github.com/daaef/fainzy-cms/logging"
)

// Executor applies the retention policy against the audit store, either
// destructively (Cleanup) or as a dry run (Preview).
type Executor struct {
	store     Store
	policy    Policy
	batchSize int
}

func NewExecutor(store Store, policy Policy, batchSize int) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Executor{store: store, policy: policy, batchSize: batchSize}
}

// Cleanup deletes every DELETE-classified entry for one document.
func (e *Executor) Cleanup(ctx context.Context, container, documentID string) (CleanupResult, error) {
	return e.run(ctx, container, documentID, true)
}

// Preview classifies one document's entries without deleting anything.
func (e *Executor) Preview(ctx context.Context, container, documentID string) (CleanupResult, error) {
	return e.run(ctx, container, documentID, false)
}

// CleanupAll runs Cleanup for every document with history in the store. One
// document's failure is logged and does not abort the others.
func (e *Executor) CleanupAll(ctx context.Context) (CleanupResult, error) {
	return e.runAll(ctx, true)
}

// PreviewAll is the dry-run counterpart of CleanupAll.
func (e *Executor) PreviewAll(ctx context.Context) (CleanupResult, error) {
	return e.runAll(ctx, false)
}

func (e *Executor) run(ctx context.Context, container, documentID string, apply bool) (CleanupResult, error) {
	entries, err := e.store.ListByDocument(ctx, container, documentID, e.batchSize)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("failed to load audit entries for cleanup: %w", err)
	}

	result := CleanupResult{}
	if len(entries) == 0 {
		return result, nil
	}
	result.DocumentsProcessed = 1

	for _, decision := range Classify(entries, e.policy, time.Now()) {
		if decision.Keep {
			result.Kept++
			if decision.Reason == ReasonSnapshot {
				result.SkippedSnapshots++
			}
			continue
		}
		if !apply {
			result.Deleted++
			continue
		}
		if err := e.store.DeleteByID(ctx, decision.Entry.ID); err != nil {
			logger.Error("Failed to delete audit entry during cleanup",
				zap.Error(err),
				zap.String("entryID", decision.Entry.ID),
				zap.String("container", container),
				zap.String("documentID", documentID))
			result.Kept++
			continue
		}
		result.Deleted++
	}

	logger.Debug("Audit cleanup pass finished",
		zap.String("container", container),
		zap.String("documentID", documentID),
		zap.Bool("apply", apply),
		zap.Int("deleted", result.Deleted),
		zap.Int("kept", result.Kept))
	return result, nil
}

func (e *Executor) runAll(ctx context.Context, apply bool) (CleanupResult, error) {
	refs, err := e.store.Documents(ctx, e.batchSize)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("failed to enumerate audit documents: %w", err)
	}

	total := CleanupResult{}
	for _, ref := range refs {
		result, err := e.run(ctx, ref.Container, ref.DocumentID, apply)
		if err != nil {
			logger.Error("Audit cleanup failed for document, continuing",
				zap.Error(err),
				zap.String("container", ref.Container),
				zap.String("documentID", ref.DocumentID))
			continue
		}
		total.add(result)
	}
	return total, nil
}
