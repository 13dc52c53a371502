// Package storage relocates accepted files from the staging bucket to the
// permanent repository bucket.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectCopier moves one object from staging to permanent storage.
// Copy failures are transient from the orchestrator's perspective: the
// copied objects are not referenced until recording completes, so a retry
// simply copies again.
type ObjectCopier interface {
	Copy(ctx context.Context, sourceKey, destKey string) error

	// Location returns the full storage location recorded for a copied
	// object (e.g. an s3:// URI).
	Location(destKey string) string
}

// S3API is the subset of the S3 client this package uses.
type S3API interface {
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// S3Copier implements ObjectCopier with S3 server-side copy between the
// staging and repository buckets.
type S3Copier struct {
	client        S3API
	stagingBucket string
	repoBucket    string
}

var _ ObjectCopier = (*S3Copier)(nil)

// NewS3Copier creates a copier between the given buckets.
func NewS3Copier(client S3API, stagingBucket, repoBucket string) *S3Copier {
	return &S3Copier{
		client:        client,
		stagingBucket: stagingBucket,
		repoBucket:    repoBucket,
	}
}

func (c *S3Copier) Copy(ctx context.Context, sourceKey, destKey string) error {
	copySource := c.stagingBucket + "/" + sourceKey

	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &c.repoBucket,
		Key:        &destKey,
		CopySource: &copySource,
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s/%s: %w", sourceKey, c.repoBucket, destKey, err)
	}

	log.Debug().
		Str("sourceKey", sourceKey).
		Str("destKey", destKey).
		Msg("Object copied to repository bucket")
	return nil
}

func (c *S3Copier) Location(destKey string) string {
	return "s3://" + c.repoBucket + "/" + destKey
}
