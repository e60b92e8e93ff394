// record.go - The transfer record type persisted by the ledger.

package ledger

import "time"

// Status is the lifecycle state of a transfer record. A record starts
// Pending and transitions at most once to Completed or Failed; terminal
// records are never mutated except by Supersede, which only sets the
// back-reference to the replacing record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record describes one completed or attempted transfer. All fields except
// SupersededBy are immutable once the record enters the ledger.
type Record struct {
	// ID is unique across the ledger, derived from the submission signature
	// (or, for failed attempts, from the signed-payload digest).
	ID string `json:"id"`

	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`

	// Sender and Recipient are opaque identity strings (addresses).
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`

	// ContentAddress is the content-store address of the file bytes.
	ContentAddress string `json:"contentAddress"`

	// Commitment is the hex-encoded binding of (file, sender, recipient,
	// content address).
	Commitment string `json:"commitment"`

	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	// SupersededBy holds the id of the record that replaced this one via a
	// file-update flow. Lookup only; the old record stays in the ledger.
	SupersededBy string `json:"supersededBy,omitempty"`
}
