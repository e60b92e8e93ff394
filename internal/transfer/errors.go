package transfer

import "errors"

// Stage-tagged failures of a single transfer attempt. Each is terminal for
// the call that produced it, and each is safe for the caller to retry; the
// coordinator never retries internally, to avoid duplicate submissions.
var (
	// ErrNetworkUnavailable: the connection manager could not reach a
	// usable endpoint. No record was created.
	ErrNetworkUnavailable = errors.New("transfer: network unavailable")

	// ErrStoreUnavailable: the content store rejected the upload or
	// download. No record was created.
	ErrStoreUnavailable = errors.New("transfer: content store unavailable")

	// ErrSubmissionFailed: signing/submission failed after a successful
	// upload and commitment. A Failed record was appended for audit.
	ErrSubmissionFailed = errors.New("transfer: submission failed")

	// ErrInvalidInput: the file or an identity was empty or malformed.
	ErrInvalidInput = errors.New("transfer: invalid input")

	// ErrCommitmentMismatch: fetched content does not reproduce the
	// commitment recorded for the transfer.
	ErrCommitmentMismatch = errors.New("transfer: commitment mismatch")
)
