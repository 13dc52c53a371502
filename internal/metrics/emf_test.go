package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "BulkUploadFunction"

	r := New()
	if r.namespace != Namespace {
		t.Errorf("expected namespace %s, got %s", Namespace, r.namespace)
	}
	if r.dimensions["FunctionName"] != "BulkUploadFunction" {
		t.Errorf("expected FunctionName dimension BulkUploadFunction, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	functionName = "" // Clear for test isolation

	var buf bytes.Buffer
	rec := New()
	rec.out = &buf
	rec.Dimension("Outcome", "success")
	rec.Metric("BatchDurationMs", 1234.5, UnitMilliseconds)
	rec.Metric("FilesAccepted", 3, UnitCount)
	rec.Property("nhsNumberSuffix", "0009")
	rec.Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, buf.String())
	}

	awsDir, ok := doc["_aws"]
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	awsMap, ok := awsDir.(map[string]interface{})
	if !ok {
		t.Fatal("_aws directive is not a map")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}

	cwMetrics, ok := awsMap["CloudWatchMetrics"]
	if !ok {
		t.Fatal("missing CloudWatchMetrics in _aws directive")
	}
	cwArr, ok := cwMetrics.([]interface{})
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != Namespace {
		t.Errorf("expected namespace %s, got %v", Namespace, cw["Namespace"])
	}

	if doc["Outcome"] != "success" {
		t.Errorf("expected Outcome=success, got %v", doc["Outcome"])
	}
	if doc["BatchDurationMs"] != 1234.5 {
		t.Errorf("expected BatchDurationMs=1234.5, got %v", doc["BatchDurationMs"])
	}
	if doc["FilesAccepted"] != float64(3) {
		t.Errorf("expected FilesAccepted=3, got %v", doc["FilesAccepted"])
	}
	if doc["nhsNumberSuffix"] != "0009" {
		t.Errorf("expected nhsNumberSuffix=0009, got %v", doc["nhsNumberSuffix"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	rec := New()
	rec.out = &buf
	rec.Flush() // No metrics, expect no output

	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Chaining(t *testing.T) {
	functionName = ""
	rec := New().
		Dimension("Outcome", "deadlettered").
		Metric("BatchDurationMs", 100, UnitMilliseconds).
		Count("BatchesDeadLettered").
		Property("files", 2)

	if rec.dimensions["Outcome"] != "deadlettered" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["BatchDurationMs"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if rec.values["BatchesDeadLettered"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["files"] != 2 {
		t.Error("chaining Property failed")
	}
}
