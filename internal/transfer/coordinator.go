// coordinator.go - End-to-end orchestration of one private transfer.
//
// The Coordinator sequences: ensure a usable connection, push the content to
// the store, derive the commitment, build and sign the instruction payload,
// and record the attempt in the ledger. Every I/O-bound step honors the
// caller's context; cancellation before signing aborts with no record. An
// already-uploaded blob is left behind in that case: content stores are
// append-only and cleanup is out of scope. Cancellation after signing cannot
// unwind the submission; the record is appended regardless.

package transfer

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"veilsend/internal/commitment"
	"veilsend/internal/ledger"
	"veilsend/internal/store"
)

// File carries the source file's content and descriptive metadata.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// NewFile builds a File from raw content, deriving Size from the data.
func NewFile(name, contentType string, data []byte) File {
	return File{Name: name, Size: int64(len(data)), ContentType: contentType, Data: data}
}

// Network reports and drives endpoint usability. Satisfied by
// *connection.Manager.
type Network interface {
	EnsureConnected(ctx context.Context) error
}

// Coordinator orchestrates transfers. Construct with NewCoordinator; all
// collaborators are required except the logger.
type Coordinator struct {
	network Network
	store   store.Store
	gen     commitment.Generator
	signer  Signer
	ledger  *ledger.Ledger
	logger  *slog.Logger

	attemptSeq atomic.Uint64 // disambiguates failed-attempt ids
}

// NewCoordinator wires the engine's collaborators together.
func NewCoordinator(network Network, st store.Store, gen commitment.Generator, signer Signer, led *ledger.Ledger, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		network: network,
		store:   st,
		gen:     gen,
		signer:  signer,
		ledger:  led,
		logger:  logger,
	}
}

// Transfer runs one end-to-end transfer and returns the appended record.
// Each call is a fresh attempt: on success the record id derives from the
// new submission signature, so repeating a call never collides with an
// earlier record. Deduplication by commitment is a caller concern.
func (c *Coordinator) Transfer(ctx context.Context, file File, sender, recipient string) (ledger.Record, error) {
	if len(file.Data) == 0 || sender == "" || recipient == "" {
		return ledger.Record{}, fmt.Errorf("%w: file, sender and recipient are required", ErrInvalidInput)
	}
	return c.submit(ctx, file, sender, recipient)
}

// Update re-uploads new content for a previous transfer and supersedes its
// record. The new record keeps the old identities and gets a fresh id.
func (c *Coordinator) Update(ctx context.Context, oldID string, file File) (ledger.Record, error) {
	if len(file.Data) == 0 {
		return ledger.Record{}, fmt.Errorf("%w: file content is required", ErrInvalidInput)
	}
	old, err := c.ledger.Get(oldID)
	if err != nil {
		return ledger.Record{}, err
	}
	return c.submitUpdate(ctx, old, file)
}

// Fetch downloads the content of a recorded transfer and checks it against
// the recorded commitment.
func (c *Coordinator) Fetch(ctx context.Context, id string) (ledger.Record, []byte, error) {
	rec, err := c.ledger.Get(id)
	if err != nil {
		return ledger.Record{}, nil, err
	}
	data, err := c.store.Download(ctx, rec.ContentAddress)
	if err != nil {
		return ledger.Record{}, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	cm, _, err := c.gen.Generate(ctx, data, rec.Sender, rec.Recipient, rec.ContentAddress)
	if err != nil {
		return ledger.Record{}, nil, err
	}
	if hex.EncodeToString(cm) != rec.Commitment {
		return ledger.Record{}, nil, fmt.Errorf("%w: record %s", ErrCommitmentMismatch, id)
	}
	return rec, data, nil
}

func (c *Coordinator) submit(ctx context.Context, file File, sender, recipient string) (ledger.Record, error) {
	// Stage 1: connection. No partial record on failure.
	if err := c.network.EnsureConnected(ctx); err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	// Stage 2: content upload.
	address, err := c.store.Upload(ctx, file.Data)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Stage 3: commitment.
	cm, artifact, err := c.gen.Generate(ctx, file.Data, sender, recipient, address)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	cmHex := hex.EncodeToString(cm)
	c.logger.Debug("commitment derived",
		"commitment", cmHex, "address", address, "artifact_bytes", len(artifact))

	// Stage 4: instruction payload.
	now := time.Now()
	instr := newTransferInstruction(cmHex, address, file, now)
	payload, err := instr.Encode()
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Last cancellation point before the submission is dispatched.
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}

	rec := ledger.Record{
		FileName:       file.Name,
		FileSize:       file.Size,
		FileType:       file.ContentType,
		Sender:         sender,
		Recipient:      recipient,
		ContentAddress: address,
		Commitment:     cmHex,
		Timestamp:      now,
	}

	// Stage 5: signing/submission.
	sig, err := c.signer.Sign(ctx, payload)
	if err != nil {
		// Failed attempts are auditable: append a Failed record before
		// surfacing the error. The id digests the payload plus a nonce,
		// so repeated failures of the same payload stay distinct.
		rec.ID = c.attemptID(payload)
		rec.Status = ledger.StatusFailed
		if appendErr := c.ledger.Append(rec); appendErr != nil {
			return ledger.Record{}, fmt.Errorf("recording failed attempt: %w", appendErr)
		}
		c.logger.Warn("submission failed", "sender", sender, "recipient", recipient, "err", err)
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	// Stage 6: record.
	rec.ID = base64.StdEncoding.EncodeToString(sig)
	rec.Status = ledger.StatusCompleted
	if err := c.ledger.Append(rec); err != nil {
		// Duplicate ids indicate a broken invariant, not a retryable
		// condition; surface loudly.
		return ledger.Record{}, fmt.Errorf("recording transfer: %w", err)
	}
	c.logger.Info("transfer recorded",
		"id", rec.ID, "sender", sender, "recipient", recipient,
		"address", address, "bytes", file.Size)
	return rec, nil
}

// attemptID derives a unique ledger id for a failed submission attempt. The
// payload's timestamp has one-second resolution, so a wall-clock nanosecond
// plus a process-local sequence number is mixed in before hashing.
func (c *Coordinator) attemptID(payload []byte) string {
	nonce := binary.BigEndian.AppendUint64(nil, uint64(time.Now().UnixNano()))
	nonce = binary.BigEndian.AppendUint64(nonce, c.attemptSeq.Add(1))
	attempt := commitment.HashAttempt(append(payload, nonce...))
	return hex.EncodeToString(attempt[:])
}

func (c *Coordinator) submitUpdate(ctx context.Context, old ledger.Record, file File) (ledger.Record, error) {
	if err := c.network.EnsureConnected(ctx); err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	address, err := c.store.Upload(ctx, file.Data)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	cm, _, err := c.gen.Generate(ctx, file.Data, old.Sender, old.Recipient, address)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	cmHex := hex.EncodeToString(cm)

	now := time.Now()
	instr := newUpdateInstruction(cmHex, address, old.ContentAddress, file, now)
	payload, err := instr.Encode()
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}

	sig, err := c.signer.Sign(ctx, payload)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	rec := ledger.Record{
		ID:             base64.StdEncoding.EncodeToString(sig),
		FileName:       file.Name,
		FileSize:       file.Size,
		FileType:       file.ContentType,
		Sender:         old.Sender,
		Recipient:      old.Recipient,
		ContentAddress: address,
		Commitment:     cmHex,
		Status:         ledger.StatusCompleted,
		Timestamp:      now,
	}
	if err := c.ledger.Supersede(old.ID, rec); err != nil {
		return ledger.Record{}, fmt.Errorf("recording update: %w", err)
	}
	c.logger.Info("transfer superseded", "old", old.ID, "new", rec.ID, "address", address)
	return rec, nil
}
