package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func makeRecord(id, sender, recipient string, ts time.Time) Record {
	return Record{
		ID:             id,
		FileName:       "report.pdf",
		FileSize:       2048,
		FileType:       "application/pdf",
		Sender:         sender,
		Recipient:      recipient,
		ContentAddress: "cid-" + id,
		Commitment:     "cm-" + id,
		Status:         StatusCompleted,
		Timestamp:      ts,
	}
}

func TestAppendAndQuery(t *testing.T) {
	l := New()
	base := time.Now().UTC()

	r1 := makeRecord("r1", "alice", "bob", base)
	r2 := makeRecord("r2", "bob", "alice", base.Add(time.Second))
	r3 := makeRecord("r3", "alice", "carol", base.Add(2*time.Second))
	for _, r := range []Record{r1, r2, r3} {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append(%s) failed: %v", r.ID, err)
		}
	}

	bySender := l.FindBySender("alice")
	if len(bySender) != 2 || bySender[0].ID != "r3" || bySender[1].ID != "r1" {
		t.Errorf("FindBySender order wrong: %+v", ids(bySender))
	}
	byRecipient := l.FindByRecipient("alice")
	if len(byRecipient) != 1 || byRecipient[0].ID != "r2" {
		t.Errorf("FindByRecipient wrong: %+v", ids(byRecipient))
	}
	if got := l.FindBySender("nobody"); len(got) != 0 {
		t.Errorf("unknown sender should yield empty result, got %v", ids(got))
	}
	if got := l.FindBySender(""); len(got) != 0 {
		t.Errorf("empty sender should yield empty result, got %v", ids(got))
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d, want 3", l.Len())
	}
}

func TestAppendDuplicateID(t *testing.T) {
	l := New()
	r1 := makeRecord("r1", "alice", "bob", time.Now())
	if err := l.Append(r1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dup := makeRecord("r1", "mallory", "bob", time.Now())
	err := l.Append(dup)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	// Pre-state preserved exactly.
	if l.Len() != 1 {
		t.Errorf("ledger changed after failed append: len=%d", l.Len())
	}
	got, err := l.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Sender != "alice" {
		t.Errorf("existing record mutated: sender=%s", got.Sender)
	}
}

func TestSupersede(t *testing.T) {
	l := New()
	old := makeRecord("old", "alice", "bob", time.Now())
	if err := l.Append(old); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	replacement := makeRecord("new", "alice", "bob", time.Now())
	if err := l.Supersede("old", replacement); err != nil {
		t.Fatalf("Supersede failed: %v", err)
	}

	got, err := l.Get("old")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.SupersededBy != "new" {
		t.Errorf("back-reference not set: %q", got.SupersededBy)
	}
	if _, err := l.Get("new"); err != nil {
		t.Errorf("replacement record missing: %v", err)
	}

	if err := l.Supersede("missing", makeRecord("x", "a", "b", time.Now())); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	completed := makeRecord("c1", "alice", "bob", ts)
	failed := makeRecord("f1", "alice", "bob", ts.Add(time.Minute))
	failed.Status = StatusFailed
	pending := makeRecord("p1", "bob", "alice", ts.Add(2*time.Minute))
	pending.Status = StatusPending
	for _, r := range []Record{completed, failed, pending} {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := l.Supersede("c1", makeRecord("c2", "alice", "bob", ts.Add(3*time.Minute))); err != nil {
		t.Fatalf("Supersede failed: %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Len() != 4 {
		t.Fatalf("loaded %d records, want 4", loaded.Len())
	}
	for _, want := range []struct {
		id     string
		status Status
	}{
		{"c1", StatusCompleted},
		{"f1", StatusFailed},
		{"p1", StatusPending},
		{"c2", StatusCompleted},
	} {
		got, err := loaded.Get(want.id)
		if err != nil {
			t.Fatalf("Get(%s) after reload failed: %v", want.id, err)
		}
		if got.Status != want.status {
			t.Errorf("record %s: status %q, want %q", want.id, got.Status, want.status)
		}
	}
	got, _ := loaded.Get("c1")
	if got.SupersededBy != "c2" {
		t.Errorf("back-reference lost in round-trip: %q", got.SupersededBy)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp not preserved: %v != %v", got.Timestamp, ts)
	}
}

func TestSaveFailureRollsBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(dir, "ledger.json")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	base := time.Now().UTC()
	committed := makeRecord("r1", "alice", "bob", base)
	if err := l.Append(committed); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Break persistence out from under the ledger.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if err := l.Append(makeRecord("r2", "alice", "bob", base.Add(time.Second))); err == nil {
		t.Fatal("Append succeeded with persistence broken")
	}
	if l.Len() != 1 {
		t.Errorf("unpersisted record visible: Len = %d, want 1", l.Len())
	}
	if _, err := l.Get("r2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(r2) = %v, want ErrNotFound", err)
	}

	if err := l.Supersede("r1", makeRecord("r3", "alice", "bob", base.Add(2*time.Second))); err == nil {
		t.Fatal("Supersede succeeded with persistence broken")
	}
	if _, err := l.Get("r3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(r3) = %v, want ErrNotFound", err)
	}
	got, err := l.Get("r1")
	if err != nil {
		t.Fatalf("Get(r1): %v", err)
	}
	if got.SupersededBy != "" {
		t.Errorf("back-reference survived rollback: %q", got.SupersededBy)
	}

	// A repaired path accepts the retried mutation.
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := l.Append(makeRecord("r2", "alice", "bob", base.Add(time.Second))); err != nil {
		t.Fatalf("Append after repair: %v", err)
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	l := New()
	if err := l.Append(makeRecord("r1", "alice", "bob", time.Now())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	out := l.FindBySender("alice")
	out[0].Commitment = "tampered"
	got, _ := l.Get("r1")
	if got.Commitment == "tampered" {
		t.Error("query result aliases ledger-owned record")
	}
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
