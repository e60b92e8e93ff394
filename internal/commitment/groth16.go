// groth16.go - Groth16 proof backend for transfer commitments.
//
// Implements a real zero-knowledge Generator on top of gnark. The commitment
// derivation is identical to MimcGenerator; the artifact is a serialized
// Groth16 proof over TransferCircuit instead of a structured placeholder.
// Groth16 proofs are randomized, so two artifacts for the same inputs differ
// while verifying against the same commitment.

package commitment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Groth16Generator produces commitments with real Groth16 proof artifacts.
// Construction compiles the circuit and performs (or loads) the trusted
// setup, which is expensive; build one instance and share it.
type Groth16Generator struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// NewGroth16Generator compiles TransferCircuit and loads the proving and
// verifying keys from keyDir, generating and saving fresh keys when none
// exist.
func NewGroth16Generator(keyDir string) (*Groth16Generator, error) {
	var circuit TransferCircuit
	ccs, err := frontend.Compile(ecc.BW6_761.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	if err := os.MkdirAll(keyDir, 0755); err != nil {
		return nil, fmt.Errorf("key directory: %w", err)
	}
	pk, vk, err := setupOrLoadKeys(ccs, keyDir+"/transfer_pk.bin", keyDir+"/transfer_vk.bin")
	if err != nil {
		return nil, err
	}
	return &Groth16Generator{ccs: ccs, pk: pk, vk: vk}, nil
}

// Generate derives the commitment and proves knowledge of its preimage
// digests. Proof generation is the costly step; the context is checked before
// it starts, and a context cancelled mid-proof is honored on completion.
func (g *Groth16Generator) Generate(ctx context.Context, fileBytes []byte, sender, recipient, contentAddress string) ([]byte, []byte, error) {
	if err := validateInputs(fileBytes, sender, recipient, contentAddress); err != nil {
		return nil, nil, err
	}

	fd := HashFile(fileBytes)
	sd := HashSender(sender)
	rd := HashRecipient(recipient)
	ad := HashAddress(contentAddress)
	cm := combine(fd, sd, rd, ad)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	witness := &TransferCircuit{
		Commitment:      new(big.Int).SetBytes(cm),
		FileDigest:      new(big.Int).SetBytes(fd[:]),
		SenderDigest:    new(big.Int).SetBytes(sd[:]),
		RecipientDigest: new(big.Int).SetBytes(rd[:]),
		AddressDigest:   new(big.Int).SetBytes(ad[:]),
	}
	w, err := frontend.NewWitness(witness, ecc.BW6_761.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("witness creation failed: %w", err)
	}
	proof, err := groth16.Prove(g.ccs, g.pk, w)
	if err != nil {
		return nil, nil, fmt.Errorf("proof generation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("proof marshaling failed: %w", err)
	}
	return cm, buf.Bytes(), nil
}

// Verify checks the Groth16 proof against the commitment. The input digests
// are recomputed only to confirm the commitment matches the claimed inputs;
// the proof itself is verified on the public commitment alone.
func (g *Groth16Generator) Verify(cm, artifact, fileBytes []byte, sender, recipient, contentAddress string) error {
	if err := validateInputs(fileBytes, sender, recipient, contentAddress); err != nil {
		return err
	}
	want := combine(HashFile(fileBytes), HashSender(sender), HashRecipient(recipient), HashAddress(contentAddress))
	if !bytes.Equal(cm, want) {
		return fmt.Errorf("commitment mismatch")
	}

	public := &TransferCircuit{Commitment: new(big.Int).SetBytes(cm)}
	w, err := frontend.NewWitness(public, ecc.BW6_761.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	proof := groth16.NewProof(ecc.BW6_761)
	if _, err := proof.ReadFrom(bytes.NewReader(artifact)); err != nil {
		return fmt.Errorf("proof unmarshaling failed: %w", err)
	}
	if err := groth16.Verify(proof, g.vk, w); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// setupOrLoadKeys loads Groth16 keys from disk, or generates and saves them.
func setupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := loadProvingKey(pkPath)
	vk, vkErr := loadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := saveKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := saveKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

func saveKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.WriteTo(f)
	return err
}

func loadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BW6_761)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func loadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BW6_761)
	_, err = vk.ReadFrom(f)
	return vk, err
}
