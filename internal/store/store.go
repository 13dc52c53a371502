// Package store persists accepted document records and per-file upload
// outcomes in DynamoDB.
//
// Two tables back the package, each with a single-table PK/SK design:
// the metadata table holds one DocumentRecord per accepted file
// (PK=PATIENT#{nhsNumber}, SK=DOC#{id}) and the report table holds one
// immutable UploadOutcome row per processed file
// (PK=PATIENT#{nhsNumber}, SK=OUTCOME#{id}).
//
// The underlying store has no multi-key transactions at this scale, so batch
// atomicity is approximated with a compensating undo log (BatchWriter):
// every write is individually committed and individually undoable.
package store

import "context"

// DocumentRecord is the durable metadata row for one accepted file. It is
// owned exclusively by this package once written.
type DocumentRecord struct {
	ID              string `json:"id" dynamodbav:"-"`
	NHSNumber       string `json:"nhsNumber" dynamodbav:"-"`
	FileName        string `json:"fileName" dynamodbav:"fileName"`
	StorageLocation string `json:"storageLocation" dynamodbav:"storageLocation"`
	ContentType     string `json:"contentType" dynamodbav:"contentType"`
	CreatedAt       string `json:"createdAt" dynamodbav:"createdAt"`
	Uploaded        bool   `json:"uploaded" dynamodbav:"uploaded"`
	Deleted         string `json:"deleted,omitempty" dynamodbav:"deleted,omitempty"`
	ScanResult      string `json:"scanResult,omitempty" dynamodbav:"scanResult,omitempty"`
}

// MetadataStore is the durable key-value store for document records.
// Both operations are idempotent.
type MetadataStore interface {
	// PutDocument creates or replaces a document record.
	PutDocument(ctx context.Context, doc *DocumentRecord) error

	// DeleteDocument removes a document record. Deleting a record that does
	// not exist is not an error.
	DeleteDocument(ctx context.Context, nhsNumber, id string) error
}

// Outcome values for UploadOutcome rows.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// UploadOutcome is one immutable report row for one file. Success rows carry
// the permanent storage path; failure rows carry the reason and the original
// staging path.
type UploadOutcome struct {
	ID        string `json:"id" dynamodbav:"-"`
	NHSNumber string `json:"nhsNumber" dynamodbav:"-"`
	Timestamp string `json:"timestamp" dynamodbav:"timestamp"`
	Outcome   string `json:"outcome" dynamodbav:"outcome"`
	FileName  string `json:"fileName" dynamodbav:"fileName"`
	FilePath  string `json:"filePath,omitempty" dynamodbav:"filePath,omitempty"`
	Reason    string `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
}

// ReportWriter records one outcome row per file. Rows are append-only;
// aggregation is a downstream reporting concern.
type ReportWriter interface {
	RecordSuccess(ctx context.Context, nhsNumber, fileName, storagePath string) error
	RecordFailure(ctx context.Context, nhsNumber, fileName, reason, originalPath string) error
}
