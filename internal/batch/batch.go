// Package batch defines the wire types for one inbound bulk upload message.
//
// A StagingBatch is the full set of scanned Lloyd George files submitted for
// one patient in one SQS message. The message body is the JSON-serialized
// batch; the PatientIdentifier message attribute duplicates the patient
// identifier so malformed bodies can still be routed.
package batch

import (
	"encoding/json"
	"fmt"
)

// SQS message attribute names shared between the consumer and the retry queue.
const (
	AttrPatientIdentifier = "PatientIdentifier"
	AttrRetryCount        = "RetryCount"
)

// FileDescriptor describes a single scanned file within a batch.
type FileDescriptor struct {
	// SourcePath is the staging-bucket key the practice uploaded to.
	SourcePath string `json:"sourcePath"`
	// PageIndex is the 1-based page number parsed from the filename.
	PageIndex int `json:"pageIndex"`
	// PageTotal is the declared total page count parsed from the filename.
	PageTotal int `json:"pageTotal"`
	// ExtractedName is the patient name embedded in the filename.
	ExtractedName string `json:"extractedName"`
	// ExtractedDob is the date of birth embedded in the filename (dd-mm-yyyy).
	ExtractedDob string `json:"extractedDob"`
	// Extension is the filename extension without the leading dot.
	Extension string `json:"extension"`
}

// StagingBatch is one patient's complete file set for one ingestion attempt.
// All FileDescriptors in a batch share the same patient identifier.
type StagingBatch struct {
	NHSNumber  string           `json:"nhsNumber"`
	Files      []FileDescriptor `json:"files"`
	RetryCount int              `json:"retryCount"`
}

// Marshal serializes the batch to the SQS message body format.
func Marshal(b StagingBatch) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal staging batch for %s: %w", b.NHSNumber, err)
	}
	return data, nil
}

// ParseMessage deserializes an SQS message body into a StagingBatch.
// A batch with no files or no patient identifier is rejected here, before
// the orchestrator ever sees it.
func ParseMessage(body []byte) (StagingBatch, error) {
	var b StagingBatch
	if err := json.Unmarshal(body, &b); err != nil {
		return StagingBatch{}, fmt.Errorf("unmarshal staging batch: %w", err)
	}
	if b.NHSNumber == "" {
		return StagingBatch{}, fmt.Errorf("staging batch has no patient identifier")
	}
	if len(b.Files) == 0 {
		return StagingBatch{}, fmt.Errorf("staging batch for %s has no files", b.NHSNumber)
	}
	return b, nil
}

// FileNames returns the base filenames of every file in the batch, in order.
func (b StagingBatch) FileNames() []string {
	names := make([]string, 0, len(b.Files))
	for _, f := range b.Files {
		names = append(names, f.SourcePath)
	}
	return names
}
