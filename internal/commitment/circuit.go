package commitment

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// TransferCircuit proves knowledge of the four input digests behind a public
// commitment: cm = MiMC(fileDigest, senderDigest, recipientDigest,
// addressDigest). The digests stay private, so a verifier learns that a
// well-formed binding exists without learning what was bound.
type TransferCircuit struct {
	// Public inputs
	Commitment frontend.Variable `gnark:",public"`

	// Private inputs
	FileDigest      frontend.Variable
	SenderDigest    frontend.Variable
	RecipientDigest frontend.Variable
	AddressDigest   frontend.Variable
}

func (c *TransferCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.FileDigest)
	hasher.Write(c.SenderDigest)
	hasher.Write(c.RecipientDigest)
	hasher.Write(c.AddressDigest)
	api.AssertIsEqual(c.Commitment, hasher.Sum())
	return nil
}
