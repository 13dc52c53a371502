// Package main is the bulk upload ingestion Lambda.
//
// The Lambda consumes the ingestion FIFO queue: one SQS message per patient
// batch, with the patient identifier as the message group, so batches for
// the same patient are never processed concurrently. Each message runs the
// full orchestration (validate, match, copy, record, report) and emits one
// EMF metric record per batch.
//
// A message whose body cannot even be parsed is re-queued verbatim when the
// PatientIdentifier attribute is present and retry budget remains, so a
// serialization bug upstream does not silently lose a patient's batch.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/batch"
	"github.com/carerecords/lgingest/internal/filename"
	"github.com/carerecords/lgingest/internal/lambdaboot"
	"github.com/carerecords/lgingest/internal/logging"
	"github.com/carerecords/lgingest/internal/metrics"
	"github.com/carerecords/lgingest/internal/orch"
	"github.com/carerecords/lgingest/internal/patient"
	"github.com/carerecords/lgingest/internal/queue"
	"github.com/carerecords/lgingest/internal/store"
)

var coldStart = true

// Collaborators initialized at cold start.
var (
	orchestrator *orch.Orchestrator
	retryQueue   queue.RetryQueue
	reportWriter store.ReportWriter
	maxRetries   int
)

func init() {
	initStart := time.Now()
	logging.Init()

	boot := lambdaboot.InitAWS()
	copier := lambdaboot.InitCopier(boot.Config, "STAGING_BUCKET_NAME", "REPO_BUCKET_NAME")
	metadata := lambdaboot.InitMetadataStore(boot.Config, "METADATA_TABLE_NAME")
	reportWriter = lambdaboot.InitReportWriter(boot.Config, "REPORT_TABLE_NAME")
	retryQueue = lambdaboot.InitRetryQueue(boot.Config, "INGEST_QUEUE_URL")

	pdsBaseURL := lambdaboot.RequireEnv("PDS_BASE_URL")
	demographics := patient.NewPDSClient(pdsBaseURL, lambdaboot.LoadPDSAPIKey(boot.SSM))

	maxRetries = orch.DefaultMaxRetries
	if v := os.Getenv("LG_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Fatal().Str("value", v).Msg("LG_MAX_RETRIES must be a non-negative integer")
		}
		maxRetries = n
	}
	strictMatch := os.Getenv("LG_STRICT_NAME_MATCH") == "true"

	orchestrator = &orch.Orchestrator{
		Demographics: demographics,
		Copier:       copier,
		Metadata:     metadata,
		Report:       reportWriter,
		Retry:        retryQueue,
		MaxRetries:   maxRetries,
		StrictMatch:  strictMatch,
	}

	logging.NewStartupLogger("bulk-upload-lambda").
		S3Bucket("staging", os.Getenv("STAGING_BUCKET_NAME")).
		S3Bucket("repository", os.Getenv("REPO_BUCKET_NAME")).
		DynamoTable("metadata", os.Getenv("METADATA_TABLE_NAME")).
		DynamoTable("report", os.Getenv("REPORT_TABLE_NAME")).
		SQSQueue("ingest", os.Getenv("INGEST_QUEUE_URL")).
		SSMParam("pdsApiKey", logging.EnvOrDefault("SSM_PDS_API_KEY_PARAM", "/lg-ingest/prod/pds-api-key")).
		Feature("strictNameMatch", strictMatch).
		Config("maxRetries", strconv.Itoa(maxRetries)).
		InitDuration(time.Since(initStart)).
		Log()
}

func main() {
	lambda.Start(handler)
}

// handler processes one SQS delivery. Domain failures (validation,
// mismatch, dead-letter) return nil so the platform does not redeliver a
// message the orchestrator has already reported or re-queued; only
// infrastructure failures that left the message in no terminal state
// propagate.
func handler(ctx context.Context, event events.SQSEvent) error {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "bulk-upload-lambda").Msg("Cold start, first invocation")
	}

	for _, record := range event.Records {
		if err := processRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func processRecord(ctx context.Context, record events.SQSMessage) error {
	start := time.Now()

	b, err := batch.ParseMessage([]byte(record.Body))
	if err != nil {
		handleMalformed(ctx, record, err)
		return nil
	}

	res, err := orchestrator.ProcessBatch(ctx, b)
	if err != nil {
		log.Error().Err(err).Msg("Batch reached no terminal state, leaving message for redelivery")
		return err
	}

	rec := metrics.New().
		Dimension("Outcome", string(res.State)).
		Metric("BatchDurationMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Metric("FilesAccepted", float64(res.FilesAccepted), metrics.UnitCount).
		Property("reason", res.Reason)
	if res.Reason != "" {
		rec.Metric("FilesRejected", float64(len(b.Files)), metrics.UnitCount)
	}
	switch res.State {
	case orch.StatePending:
		rec.Count("BatchesRequeued")
	case orch.StateDeadLettered:
		rec.Count("BatchesDeadLettered")
	}
	if res.Fatal {
		rec.Count("RollbackFailures")
	}
	rec.Flush()
	return nil
}

// handleMalformed routes a message body that failed to parse. The
// PatientIdentifier attribute is the fallback routing key: with it and
// remaining budget the body is re-queued verbatim, otherwise the failure is
// reported (or, with no identifier at all, only logged).
func handleMalformed(ctx context.Context, record events.SQSMessage, parseErr error) {
	nhsNumber := attributeValue(record, batch.AttrPatientIdentifier)
	retryCount := 0
	if v := attributeValue(record, batch.AttrRetryCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			retryCount = n
		}
	}

	if nhsNumber == "" {
		log.Error().Err(parseErr).Str("messageId", record.MessageId).
			Msg("Unparsable message with no patient identifier attribute, dropping")
		metrics.New().Dimension("Outcome", "Unroutable").Count("UnroutableMessages").Flush()
		return
	}

	if retryCount < maxRetries {
		if err := retryQueue.RequeueRawMessage(ctx, record.Body, nhsNumber, retryCount); err != nil {
			log.Error().Err(err).Msg("Failed to re-queue unparsable message")
		}
		return
	}

	log.Error().Err(parseErr).
		Str("nhsNumber", logging.RedactNHSNumber(nhsNumber)).
		Int("retryCount", retryCount).
		Msg("Unparsable message exhausted retry budget, reporting failure")
	reason := string(filename.KindFormat)
	if err := reportWriter.RecordFailure(ctx, nhsNumber, "", reason, ""); err != nil {
		log.Error().Err(err).Msg("Failed to record failure outcome for unparsable message")
	}
}

func attributeValue(record events.SQSMessage, name string) string {
	attr, ok := record.MessageAttributes[name]
	if !ok || attr.StringValue == nil {
		return ""
	}
	return *attr.StringValue
}
