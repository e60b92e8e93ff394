// payload.go - The outbound instruction payload handed to the signer.

package transfer

import (
	"encoding/json"
	"time"
)

// Instruction is the serialized object submitted on behalf of a transfer.
// The engine does not define the transport; it only guarantees the payload
// shape.
type Instruction struct {
	Action            string `json:"action"`
	CommitmentOrProof string `json:"commitment_or_proof"`
	ContentAddress    string `json:"content_address"`
	OldContentAddress string `json:"old_content_address,omitempty"`
	FileName          string `json:"file_name"`
	FileSize          int64  `json:"file_size"`
	Timestamp         string `json:"timestamp"`
}

func newTransferInstruction(commitmentHex, address string, file File, at time.Time) Instruction {
	return Instruction{
		Action:            "transfer",
		CommitmentOrProof: commitmentHex,
		ContentAddress:    address,
		FileName:          file.Name,
		FileSize:          file.Size,
		Timestamp:         at.UTC().Format(time.RFC3339),
	}
}

func newUpdateInstruction(commitmentHex, newAddress, oldAddress string, file File, at time.Time) Instruction {
	return Instruction{
		Action:            "update",
		CommitmentOrProof: commitmentHex,
		ContentAddress:    newAddress,
		OldContentAddress: oldAddress,
		FileName:          file.Name,
		FileSize:          file.Size,
		Timestamp:         at.UTC().Format(time.RFC3339),
	}
}

// Encode renders the instruction as its canonical JSON payload.
func (i Instruction) Encode() ([]byte, error) {
	return json.Marshal(i)
}
