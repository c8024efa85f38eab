package collab

import (
	"context"

	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

// Bridge adapts a DocumentStore to the persistence contract the session
// hub expects: fetch on first join, store on save.
type Bridge struct {
	store DocumentStore
}

// NewBridge creates a bridge over store.
func NewBridge(store DocumentStore) *Bridge {
	return &Bridge{store: store}
}

// Fetch loads the snapshot for docName. A document that has never been
// stored is not an error: the session starts empty and (nil, nil) says so.
func (b *Bridge) Fetch(ctx context.Context, docName string) ([]byte, error) {
	data, err := b.store.Load(ctx, docName)
	if apperr.IsCode(err, apperr.CodeNotFound) {
		metrics.RecordCollabLoad(true)
		logging.Debug("document not found, session starts empty",
			zap.String("document", docName))
		return nil, nil
	}
	if err != nil {
		metrics.RecordCollabLoad(false)
		return nil, apperr.Wrap(apperr.CodeStorageFault, "fetch document state", err)
	}
	metrics.RecordCollabLoad(true)
	return data, nil
}

// Store persists the snapshot for docName. One attempt, no retry: the hub
// saves again on its next tick, so a failed save only widens the window
// of unsaved changes.
func (b *Bridge) Store(ctx context.Context, docName string, state []byte) error {
	if err := b.store.Save(ctx, docName, state); err != nil {
		metrics.RecordCollabSave(false)
		logging.Error("document save failed",
			zap.String("document", docName),
			zap.Int("bytes", len(state)),
			zap.Error(err))
		return apperr.Wrap(apperr.CodeStorageFault, "store document state", err)
	}
	metrics.RecordCollabSave(true)
	logging.Debug("document saved",
		zap.String("document", docName),
		zap.Int("bytes", len(state)))
	return nil
}
