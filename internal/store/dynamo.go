package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/logging"
)

// DynamoDB key constants for the single-table designs.
const (
	pkPrefix  = "PATIENT#"
	skDoc     = "DOC#"
	skOutcome = "OUTCOME#"
)

// DynamoAPI is the subset of the DynamoDB client this package uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore implements MetadataStore on a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ MetadataStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given metadata table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// patientPK returns the partition key for a patient.
func patientPK(nhsNumber string) string {
	return pkPrefix + nhsNumber
}

// putItem marshals a domain object and writes it to DynamoDB with PK and SK.
// Fields derived from PK/SK use dynamodbav:"-" on the domain type.
func putItem(ctx context.Context, client DynamoAPI, table, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &table,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

func (s *DynamoStore) PutDocument(ctx context.Context, doc *DocumentRecord) error {
	if doc.CreatedAt == "" {
		doc.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := putItem(ctx, s.client, s.tableName, patientPK(doc.NHSNumber), skDoc+doc.ID, doc); err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}

	log.Debug().
		Str("nhsNumber", logging.RedactNHSNumber(doc.NHSNumber)).
		Str("docId", doc.ID).
		Str("fileName", doc.FileName).
		Msg("Document record persisted")
	return nil
}

func (s *DynamoStore) DeleteDocument(ctx context.Context, nhsNumber, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: patientPK(nhsNumber)},
			"SK": &types.AttributeValueMemberS{Value: skDoc + id},
		},
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	log.Debug().
		Str("nhsNumber", logging.RedactNHSNumber(nhsNumber)).
		Str("docId", id).
		Msg("Document record deleted")
	return nil
}

// DynamoReportWriter implements ReportWriter on the report table.
type DynamoReportWriter struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ ReportWriter = (*DynamoReportWriter)(nil)

// NewDynamoReportWriter creates a report writer for the given table.
func NewDynamoReportWriter(client DynamoAPI, tableName string) *DynamoReportWriter {
	return &DynamoReportWriter{client: client, tableName: tableName, now: time.Now}
}

func (w *DynamoReportWriter) writeOutcome(ctx context.Context, row UploadOutcome) error {
	row.ID = uuid.NewString()
	row.Timestamp = w.now().UTC().Format(time.RFC3339)

	if err := putItem(ctx, w.client, w.tableName, patientPK(row.NHSNumber), skOutcome+row.ID, row); err != nil {
		return fmt.Errorf("write %s outcome for %s: %w", row.Outcome, row.FileName, err)
	}

	log.Debug().
		Str("nhsNumber", logging.RedactNHSNumber(row.NHSNumber)).
		Str("outcome", row.Outcome).
		Str("fileName", row.FileName).
		Str("reason", row.Reason).
		Msg("Upload outcome recorded")
	return nil
}

func (w *DynamoReportWriter) RecordSuccess(ctx context.Context, nhsNumber, fileName, storagePath string) error {
	return w.writeOutcome(ctx, UploadOutcome{
		NHSNumber: nhsNumber,
		Outcome:   OutcomeSuccess,
		FileName:  fileName,
		FilePath:  storagePath,
	})
}

func (w *DynamoReportWriter) RecordFailure(ctx context.Context, nhsNumber, fileName, reason, originalPath string) error {
	return w.writeOutcome(ctx, UploadOutcome{
		NHSNumber: nhsNumber,
		Outcome:   OutcomeFailure,
		FileName:  fileName,
		FilePath:  originalPath,
		Reason:    reason,
	})
}
