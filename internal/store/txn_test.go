package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// memStore is an in-memory MetadataStore with failure injection.
type memStore struct {
	records    map[string]*DocumentRecord // key: nhsNumber/id
	failPutAt  int // fail the Nth put (1-based); 0 disables
	failDelete bool
	puts       int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*DocumentRecord)}
}

func (m *memStore) key(nhsNumber, id string) string { return nhsNumber + "/" + id }

func (m *memStore) PutDocument(_ context.Context, doc *DocumentRecord) error {
	m.puts++
	if m.failPutAt > 0 && m.puts == m.failPutAt {
		return errors.New("injected put failure")
	}
	m.records[m.key(doc.NHSNumber, doc.ID)] = doc
	return nil
}

func (m *memStore) DeleteDocument(_ context.Context, nhsNumber, id string) error {
	if m.failDelete {
		return errors.New("injected delete failure")
	}
	delete(m.records, m.key(nhsNumber, id))
	return nil
}

func (m *memStore) countFor(nhsNumber string) int {
	n := 0
	for _, r := range m.records {
		if r.NHSNumber == nhsNumber {
			n++
		}
	}
	return n
}

func doc(id string) *DocumentRecord {
	return &DocumentRecord{
		ID:        id,
		NHSNumber: "9000000009",
		FileName:  fmt.Sprintf("%sof3_Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010].pdf", id),
	}
}

func TestBatchWriter_CommitAll(t *testing.T) {
	ms := newMemStore()
	w := NewBatchWriter(ms)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := w.WriteRecord(ctx, doc(id)); err != nil {
			t.Fatalf("WriteRecord(%s) failed: %v", id, err)
		}
	}

	if w.Written() != 3 {
		t.Errorf("expected 3 written, got %d", w.Written())
	}
	if ms.countFor("9000000009") != 3 {
		t.Errorf("expected 3 stored records, got %d", ms.countFor("9000000009"))
	}
}

func TestBatchWriter_RollbackAfterMidBatchFailure(t *testing.T) {
	ms := newMemStore()
	ms.failPutAt = 2 // second write fails
	w := NewBatchWriter(ms)
	ctx := context.Background()

	if err := w.WriteRecord(ctx, doc("1")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := w.WriteRecord(ctx, doc("2")); err == nil {
		t.Fatal("expected second write to fail")
	}

	// Failed write must not enter the undo log.
	if w.Written() != 1 {
		t.Errorf("expected 1 logged write, got %d", w.Written())
	}

	if err := w.Rollback(ctx); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	// Rollback invariant: zero records remain for the batch's patient.
	if ms.countFor("9000000009") != 0 {
		t.Errorf("expected 0 records after rollback, got %d", ms.countFor("9000000009"))
	}
	if w.Written() != 0 {
		t.Errorf("undo log not cleared, %d entries remain", w.Written())
	}
}

func TestBatchWriter_RollbackFailureIsFatal(t *testing.T) {
	ms := newMemStore()
	w := NewBatchWriter(ms)
	ctx := context.Background()

	if err := w.WriteRecord(ctx, doc("1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ms.failDelete = true
	err := w.Rollback(ctx)

	var re *RollbackError
	if !errors.As(err, &re) {
		t.Fatalf("expected RollbackError, got %v", err)
	}
	if len(re.RemainingIDs) != 1 || re.RemainingIDs[0] != "1" {
		t.Errorf("expected remaining ID [1], got %v", re.RemainingIDs)
	}
}

func TestBatchWriter_FreshWriterStartsEmpty(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	first := NewBatchWriter(ms)
	if err := first.WriteRecord(ctx, doc("1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// A new batch gets a new writer; rolling it back must not touch the
	// previous batch's records.
	second := NewBatchWriter(ms)
	if second.Written() != 0 {
		t.Fatalf("new writer has %d entries", second.Written())
	}
	if err := second.Rollback(ctx); err != nil {
		t.Fatalf("empty rollback failed: %v", err)
	}
	if ms.countFor("9000000009") != 1 {
		t.Errorf("rollback of a fresh writer removed another batch's records")
	}
}
