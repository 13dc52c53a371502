// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// The ingestion Lambda needs AWS config, S3, DynamoDB, SQS, and an SSM
// parameter fetch at init time. This package extracts the common patterns so
// each entry point's init() is a short composition of helpers, with a fatal
// log on any missing requirement.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/carerecords/lgingest/internal/queue"
	"github.com/carerecords/lgingest/internal/storage"
	"github.com/carerecords/lgingest/internal/store"
)

// AWSClients holds the core AWS SDK clients shared across entry points.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and the SSM client.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// RequireEnv reads an environment variable and fatals if it is empty.
func RequireEnv(envVar string) string {
	val := os.Getenv(envVar)
	if val == "" {
		log.Fatal().Str("envVar", envVar).Msg("Environment variable is required")
	}
	return val
}

// InitCopier creates the staging-to-repository object copier from the
// bucket name environment variables.
func InitCopier(cfg aws.Config, stagingEnvVar, repoEnvVar string) *storage.S3Copier {
	staging := RequireEnv(stagingEnvVar)
	repo := RequireEnv(repoEnvVar)
	return storage.NewS3Copier(s3.NewFromConfig(cfg), staging, repo)
}

// InitMetadataStore creates the document metadata store from the table name
// environment variable.
func InitMetadataStore(cfg aws.Config, tableEnvVar string) *store.DynamoStore {
	tableName := RequireEnv(tableEnvVar)
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// InitReportWriter creates the upload outcome writer from the table name
// environment variable.
func InitReportWriter(cfg aws.Config, tableEnvVar string) *store.DynamoReportWriter {
	tableName := RequireEnv(tableEnvVar)
	return store.NewDynamoReportWriter(dynamodb.NewFromConfig(cfg), tableName)
}

// InitRetryQueue creates the retry queue from the queue URL environment
// variable.
func InitRetryQueue(cfg aws.Config, queueURLEnvVar string) *queue.SQSRetryQueue {
	queueURL := RequireEnv(queueURLEnvVar)
	return queue.NewSQSRetryQueue(sqs.NewFromConfig(cfg), queueURL)
}

// LoadPDSAPIKey fetches the demographics service API key from SSM Parameter
// Store if not already set via PDS_API_KEY. Fatals on error: the Lambda
// cannot match patients without it.
func LoadPDSAPIKey(ssmClient *ssm.Client) string {
	if key := os.Getenv("PDS_API_KEY"); key != "" {
		return key
	}
	paramName := os.Getenv("SSM_PDS_API_KEY_PARAM")
	if paramName == "" {
		paramName = "/lg-ingest/prod/pds-api-key"
	}
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read PDS API key from SSM")
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("PDS API key loaded from SSM")
	return *result.Parameter.Value
}
