// ledger.go - Persistent, idempotent ledger of transfer records.
//
// The Ledger keeps records in insertion order, indexes them by id, and serves
// sender/recipient queries in reverse-chronological order. Every successful
// mutation is immediately visible to readers and, when the ledger was opened
// with a path, durably written to a single JSON file.

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	// ErrDuplicateID indicates an append with an id already in the ledger.
	// Ids are unique by construction, so hitting this is a logic error in
	// the caller, not a recoverable condition.
	ErrDuplicateID = errors.New("ledger: duplicate record id")

	// ErrNotFound indicates a lookup or supersede against an unknown id.
	ErrNotFound = errors.New("ledger: record not found")
)

// Ledger is a single-writer/multiple-reader store of transfer records.
// Records are owned by the ledger once appended; all queries return copies.
type Ledger struct {
	mu      sync.RWMutex
	records []*Record
	index   map[string]int
	path    string // empty for an in-memory ledger
}

// New creates an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Open loads the ledger persisted at path, or creates an empty one bound to
// that path when no file exists yet. Subsequent mutations are saved there.
func Open(path string) (*Ledger, error) {
	l := New()
	l.path = path
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger open: %w", err)
	}
	defer f.Close()
	var records []*Record
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("ledger decode: %w", err)
	}
	for i, rec := range records {
		if _, dup := l.index[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %q in %s", ErrDuplicateID, rec.ID, path)
		}
		l.index[rec.ID] = i
	}
	l.records = records
	return l, nil
}

// Append inserts a new record, preserving insertion order. Fails with
// ErrDuplicateID if the id already exists, leaving the ledger unchanged.
func (l *Ledger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.index[rec.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, rec.ID)
	}
	stored := rec
	l.records = append(l.records, &stored)
	l.index[rec.ID] = len(l.records) - 1
	if err := l.save(); err != nil {
		// Keep memory and disk in agreement: an unpersisted record must
		// not be visible to readers either.
		l.records = l.records[:len(l.records)-1]
		delete(l.index, rec.ID)
		return err
	}
	return nil
}

// Supersede inserts newRec and marks the record at oldID with a
// back-reference to it. Fails with ErrNotFound when oldID is absent and
// ErrDuplicateID when newRec.ID already exists; either way nothing changes.
func (l *Ledger) Supersede(oldID string, newRec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	oldIdx, exists := l.index[oldID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, oldID)
	}
	if _, dup := l.index[newRec.ID]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateID, newRec.ID)
	}
	stored := newRec
	l.records = append(l.records, &stored)
	l.index[stored.ID] = len(l.records) - 1
	prevRef := l.records[oldIdx].SupersededBy
	l.records[oldIdx].SupersededBy = stored.ID
	if err := l.save(); err != nil {
		l.records[oldIdx].SupersededBy = prevRef
		l.records = l.records[:len(l.records)-1]
		delete(l.index, stored.ID)
		return err
	}
	return nil
}

// Get returns a copy of the record with the given id.
func (l *Ledger) Get(id string) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, exists := l.index[id]
	if !exists {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return *l.records[idx], nil
}

// FindBySender returns the records sent by the given identity, most recent
// first. Unknown or empty identities yield an empty result, never an error.
func (l *Ledger) FindBySender(sender string) []Record {
	return l.filter(func(r *Record) bool { return r.Sender == sender })
}

// FindByRecipient returns the records addressed to the given identity, most
// recent first.
func (l *Ledger) FindByRecipient(recipient string) []Record {
	return l.filter(func(r *Record) bool { return r.Recipient == recipient })
}

// All returns every record, most recent first.
func (l *Ledger) All() []Record {
	return l.filter(func(*Record) bool { return true })
}

// Len returns the number of records in the ledger.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) filter(keep func(*Record) bool) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0)
	for i := len(l.records) - 1; i >= 0; i-- {
		if keep(l.records[i]) {
			out = append(out, *l.records[i])
		}
	}
	return out
}

// save writes the full record set as an indented JSON array. Callers hold the
// write lock.
func (l *Ledger) save() error {
	if l.path == "" {
		return nil
	}
	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("ledger save: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.records); err != nil {
		return fmt.Errorf("ledger encode: %w", err)
	}
	return nil
}
