package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/logging"
)

// writtenKey identifies one record in the undo log.
type writtenKey struct {
	nhsNumber string
	id        string
}

// BatchWriter commits document records for a single batch and keeps an
// explicit undo log so a mid-batch failure can be compensated. Create a
// fresh writer per batch: the undo log starts empty by construction, so
// rollback can never cross patient boundaries. A BatchWriter must not be
// shared across invocations.
type BatchWriter struct {
	store MetadataStore
	undo  []writtenKey
}

// NewBatchWriter begins a batch with an empty undo log.
func NewBatchWriter(store MetadataStore) *BatchWriter {
	return &BatchWriter{store: store}
}

// WriteRecord durably writes one document record and logs its inverse
// delete. On error the record is assumed not written and is not logged.
func (w *BatchWriter) WriteRecord(ctx context.Context, doc *DocumentRecord) error {
	if err := w.store.PutDocument(ctx, doc); err != nil {
		return err
	}
	w.undo = append(w.undo, writtenKey{nhsNumber: doc.NHSNumber, id: doc.ID})
	return nil
}

// Written returns how many records the batch has committed so far.
func (w *BatchWriter) Written() int {
	return len(w.undo)
}

// Rollback deletes every record in the undo log, then clears it. Deletes
// that fail leave partial state that no retry can repair, so the returned
// RollbackError is fatal and lists the surviving record IDs for operator
// intervention.
func (w *BatchWriter) Rollback(ctx context.Context) error {
	var failed []writtenKey
	for _, k := range w.undo {
		if err := w.store.DeleteDocument(ctx, k.nhsNumber, k.id); err != nil {
			log.Error().
				Err(err).
				Str("nhsNumber", logging.RedactNHSNumber(k.nhsNumber)).
				Str("docId", k.id).
				Msg("Compensating delete failed")
			failed = append(failed, k)
		}
	}
	w.undo = nil

	if len(failed) > 0 {
		ids := make([]string, 0, len(failed))
		for _, k := range failed {
			ids = append(ids, k.id)
		}
		return &RollbackError{RemainingIDs: ids}
	}
	return nil
}

// RollbackError reports a failed compensating transaction: some records
// written during the batch could not be deleted. This is an unrecoverable
// condition requiring operator intervention, never an automatic retry.
type RollbackError struct {
	RemainingIDs []string
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback left %d record(s) in the metadata store: %s",
		len(e.RemainingIDs), strings.Join(e.RemainingIDs, ", "))
}
