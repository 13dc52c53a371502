// Package orch coordinates the processing of one staging batch: filename
// validation, demographic identity matching, object relocation, durable
// recording with compensating rollback, and outcome reporting.
//
// Each batch walks the states
//
//	Pending → Parsing → Matching → Copying → Recording → Reported
//
// with Failed(reason) reachable from any non-terminal state. Permanent
// failures are reported and never retried; transient failures re-queue the
// batch until the retry budget is exhausted, then dead-letter it. Every
// failure writes one outcome row per file before the batch goes terminal.
package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/batch"
	"github.com/carerecords/lgingest/internal/filename"
	"github.com/carerecords/lgingest/internal/logging"
	"github.com/carerecords/lgingest/internal/patient"
	"github.com/carerecords/lgingest/internal/queue"
	"github.com/carerecords/lgingest/internal/storage"
	"github.com/carerecords/lgingest/internal/store"
)

// State is a stage in the batch lifecycle.
type State string

const (
	StatePending      State = "Pending"
	StateParsing      State = "Parsing"
	StateMatching     State = "Matching"
	StateCopying      State = "Copying"
	StateRecording    State = "Recording"
	StateFailed       State = "Failed"
	StateReported     State = "Reported"
	StateDeadLettered State = "DeadLettered"
)

// Failure reasons beyond the filename validation kinds.
const (
	ReasonPatientMismatch  = "PatientMismatch"
	ReasonPatientNotFound  = "PatientNotFound"
	ReasonRetriesExhausted = "RetriesExhausted"
	ReasonRollbackFailure  = "RollbackFailure"
)

// DefaultMaxRetries is the retry budget when none is configured.
const DefaultMaxRetries = 3

// Result summarises how a batch left the orchestrator.
type Result struct {
	// State is Reported, DeadLettered, or Pending (re-queued).
	State State
	// Reason is the failure reason for non-success terminals, "" on success.
	Reason string
	// FilesAccepted is the number of Success outcome rows written.
	FilesAccepted int
	// Fatal marks an irrecoverable partial state (rollback failure) that
	// needs operator intervention and must not be retried automatically.
	Fatal bool
}

// Orchestrator holds the injected, process-scoped collaborators. It carries
// no per-batch state: everything batch-scoped lives in ProcessBatch locals.
type Orchestrator struct {
	Demographics patient.Demographics
	Copier       storage.ObjectCopier
	Metadata     store.MetadataStore
	Report       store.ReportWriter
	Retry        queue.RetryQueue
	MaxRetries   int
	StrictMatch  bool
}

// ProcessBatch runs one staging batch through the state machine. The
// returned error is non-nil only when the batch could not reach any
// terminal or re-queued state (e.g. the requeue send itself failed) and the
// caller should let the platform redeliver the message.
func (o *Orchestrator) ProcessBatch(ctx context.Context, b batch.StagingBatch) (Result, error) {
	state := StatePending
	logger := log.With().
		Str("nhsNumber", logging.RedactNHSNumber(b.NHSNumber)).
		Int("files", len(b.Files)).
		Int("retryCount", b.RetryCount).
		Logger()

	// Pending → Parsing.
	state = transition(logger, state, StateParsing)
	parsed, err := filename.ValidateBatch(b.FileNames(), b.NHSNumber)
	if err != nil {
		reason := string(filename.KindOf(err))
		logger.Info().Err(err).Str("reason", reason).Msg("Batch failed validation")
		return o.failPermanent(ctx, b, reason)
	}

	// Parsing → Matching.
	state = transition(logger, state, StateMatching)
	details, err := o.Demographics.Lookup(ctx, b.NHSNumber)
	switch {
	case errors.Is(err, patient.ErrPatientNotFound):
		logger.Info().Msg("Demographics service has no record for patient")
		return o.failPermanent(ctx, b, ReasonPatientNotFound)
	case err != nil:
		// A lookup that could not complete is transient regardless of cause.
		logger.Warn().Err(err).Msg("Demographics lookup failed")
		return o.failTransient(ctx, b, "demographics lookup: "+err.Error())
	}

	score := patient.MatchName(parsed[0].Name, *details)
	if !patient.Accepted(score, o.StrictMatch) || !patient.DobMatches(parsed[0].Dob, *details) {
		logger.Info().Stringer("score", score).Msg("Patient identity rejected")
		return o.failPermanent(ctx, b, ReasonPatientMismatch)
	}
	logger.Debug().Stringer("score", score).Msg("Patient identity accepted")

	// Matching → Copying. Fresh identifiers per write attempt; the copied
	// objects are not referenced until Recording completes, so a partial
	// copy failure leaves nothing committed.
	state = transition(logger, state, StateCopying)
	destKeys := make([]string, len(b.Files))
	ids := make([]string, len(b.Files))
	for i, f := range b.Files {
		ids[i] = uuid.NewString()
		destKeys[i] = b.NHSNumber + "/" + ids[i]
		if err := o.Copier.Copy(ctx, f.SourcePath, destKeys[i]); err != nil {
			logger.Warn().Err(err).Str("sourceKey", f.SourcePath).Msg("Object copy failed")
			return o.failTransient(ctx, b, "object copy: "+err.Error())
		}
	}

	// Copying → Recording.
	state = transition(logger, state, StateRecording)
	writer := store.NewBatchWriter(o.Metadata)
	for i, p := range parsed {
		doc := &store.DocumentRecord{
			ID:              ids[i],
			NHSNumber:       b.NHSNumber,
			FileName:        p.Filename,
			StorageLocation: o.Copier.Location(destKeys[i]),
			ContentType:     contentTypeFor(p.Extension),
			Uploaded:        true,
		}
		if err := writer.WriteRecord(ctx, doc); err != nil {
			logger.Warn().Err(err).Int("written", writer.Written()).Msg("Mid-batch write failed, rolling back")
			if rbErr := writer.Rollback(ctx); rbErr != nil {
				return o.failFatal(ctx, b, rbErr)
			}
			return o.failTransient(ctx, b, "metadata write: "+err.Error())
		}
	}

	// Recording → Reported.
	state = transition(logger, state, StateReported)
	for i, p := range parsed {
		if err := o.Report.RecordSuccess(ctx, b.NHSNumber, p.Filename, o.Copier.Location(destKeys[i])); err != nil {
			logger.Error().Err(err).Str("fileName", p.Filename).Msg("Failed to record success outcome")
		}
	}

	logger.Info().Int("accepted", len(parsed)).Msg("Batch recorded and reported")
	return Result{State: StateReported, FilesAccepted: len(parsed)}, nil
}

// transition logs and performs a state transition.
func transition(logger zerolog.Logger, from, to State) State {
	logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("State transition")
	return to
}

// failPermanent writes one Failure outcome per file and reports the batch.
// Permanent failures are never retried.
func (o *Orchestrator) failPermanent(ctx context.Context, b batch.StagingBatch, reason string) (Result, error) {
	log.Debug().
		Str("nhsNumber", logging.RedactNHSNumber(b.NHSNumber)).
		Str("state", string(StateFailed)).
		Str("reason", reason).
		Msg("Batch failed permanently")
	o.writeFailureOutcomes(ctx, b, reason)
	return Result{State: StateReported, Reason: reason}, nil
}

// failTransient re-queues the batch if budget remains, otherwise writes the
// failure outcomes and dead-letters it.
func (o *Orchestrator) failTransient(ctx context.Context, b batch.StagingBatch, detail string) (Result, error) {
	maxRetries := o.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	log.Debug().
		Str("nhsNumber", logging.RedactNHSNumber(b.NHSNumber)).
		Str("state", string(StateFailed)).
		Str("detail", detail).
		Msg("Batch failed transiently")

	if b.RetryCount < maxRetries {
		if err := o.Retry.RequeueBatch(ctx, b); err != nil {
			// The batch reached no terminal state; let the platform
			// redeliver the original message.
			return Result{}, fmt.Errorf("requeue after transient failure (%s): %w", detail, err)
		}
		return Result{State: StatePending, Reason: detail}, nil
	}

	log.Error().
		Str("nhsNumber", logging.RedactNHSNumber(b.NHSNumber)).
		Int("retryCount", b.RetryCount).
		Str("detail", detail).
		Msg("Retry budget exhausted, dead-lettering batch")
	o.writeFailureOutcomes(ctx, b, ReasonRetriesExhausted)
	return Result{State: StateDeadLettered, Reason: ReasonRetriesExhausted}, nil
}

// failFatal handles a failed compensating rollback: partial state that no
// automatic retry can repair. The outcome rows and the error log carry the
// surviving record IDs for operator reconciliation.
func (o *Orchestrator) failFatal(ctx context.Context, b batch.StagingBatch, rbErr error) (Result, error) {
	log.Error().
		Err(rbErr).
		Str("nhsNumber", logging.RedactNHSNumber(b.NHSNumber)).
		Msg("Rollback failed, metadata store left in partial state; operator intervention required")

	o.writeFailureOutcomes(ctx, b, ReasonRollbackFailure)
	return Result{State: StateReported, Reason: ReasonRollbackFailure, Fatal: true}, nil
}

// writeFailureOutcomes writes one Failure row per file. A batch that
// somehow carries no files still gets a single batch-level row so the
// failure is visible in the report.
func (o *Orchestrator) writeFailureOutcomes(ctx context.Context, b batch.StagingBatch, reason string) {
	if len(b.Files) == 0 {
		if err := o.Report.RecordFailure(ctx, b.NHSNumber, "", reason, ""); err != nil {
			log.Error().Err(err).Msg("Failed to record batch-level failure outcome")
		}
		return
	}
	for _, f := range b.Files {
		if err := o.Report.RecordFailure(ctx, b.NHSNumber, f.SourcePath, reason, f.SourcePath); err != nil {
			log.Error().Err(err).Str("fileName", f.SourcePath).Msg("Failed to record failure outcome")
		}
	}
}

// contentTypeFor maps a filename extension to the stored content type.
func contentTypeFor(ext string) string {
	switch ext {
	case "pdf", "PDF":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
