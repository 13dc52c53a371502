// Package queue re-enqueues failed-but-retryable batches on the ingestion
// SQS FIFO queue, preserving per-patient ordering.
package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/batch"
	"github.com/carerecords/lgingest/internal/logging"
)

// RetryQueue resubmits batches to the ingestion queue.
type RetryQueue interface {
	// RequeueBatch increments the batch's retry count and resubmits it.
	// The message group key is the patient identifier, so no two in-flight
	// messages for the same patient are processed concurrently.
	RequeueBatch(ctx context.Context, b batch.StagingBatch) error

	// RequeueRawMessage resubmits an unparsable message body verbatim when
	// a patient identifier could still be extracted from its attributes.
	RequeueRawMessage(ctx context.Context, body, nhsNumber string, retryCount int) error
}

// SQSAPI is the subset of the SQS client this package uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSRetryQueue implements RetryQueue on an SQS FIFO queue.
type SQSRetryQueue struct {
	client   SQSAPI
	queueURL string
}

var _ RetryQueue = (*SQSRetryQueue)(nil)

// NewSQSRetryQueue creates a retry queue for the given FIFO queue URL.
func NewSQSRetryQueue(client SQSAPI, queueURL string) *SQSRetryQueue {
	return &SQSRetryQueue{client: client, queueURL: queueURL}
}

func (q *SQSRetryQueue) send(ctx context.Context, body, nhsNumber string, retryCount int) error {
	dedupID := uuid.NewString()

	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &q.queueURL,
		MessageBody:            &body,
		MessageGroupId:         &nhsNumber,
		MessageDeduplicationId: &dedupID,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			batch.AttrPatientIdentifier: {
				DataType:    strPtr("String"),
				StringValue: &nhsNumber,
			},
			batch.AttrRetryCount: {
				DataType:    strPtr("Number"),
				StringValue: strPtr(strconv.Itoa(retryCount)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send message for patient %s: %w", logging.RedactNHSNumber(nhsNumber), err)
	}
	return nil
}

func (q *SQSRetryQueue) RequeueBatch(ctx context.Context, b batch.StagingBatch) error {
	b.RetryCount++

	body, err := batch.Marshal(b)
	if err != nil {
		return err
	}
	if err := q.send(ctx, string(body), b.NHSNumber, b.RetryCount); err != nil {
		return fmt.Errorf("requeue batch: %w", err)
	}

	log.Info().
		Str("nhsNumber", logging.RedactNHSNumber(b.NHSNumber)).
		Int("retryCount", b.RetryCount).
		Int("files", len(b.Files)).
		Msg("Batch re-queued for retry")
	return nil
}

func (q *SQSRetryQueue) RequeueRawMessage(ctx context.Context, body, nhsNumber string, retryCount int) error {
	if err := q.send(ctx, body, nhsNumber, retryCount+1); err != nil {
		return fmt.Errorf("requeue raw message: %w", err)
	}

	log.Warn().
		Str("nhsNumber", logging.RedactNHSNumber(nhsNumber)).
		Int("retryCount", retryCount+1).
		Msg("Unparsable message re-queued verbatim")
	return nil
}

func strPtr(s string) *string { return &s }
