package commitment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func TestMimcGeneratorDeterminism(t *testing.T) {
	gen := NewMimcGenerator()
	ctx := context.Background()

	file := []byte("the quick brown fox")
	cm1, artifact1, err := gen.Generate(ctx, file, "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	cm2, artifact2, err := gen.Generate(ctx, file, "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !bytes.Equal(cm1, cm2) {
		t.Error("commitment is not deterministic")
	}
	if !bytes.Equal(artifact1, artifact2) {
		t.Error("proof artifact is not deterministic")
	}
	if len(cm1) == 0 {
		t.Error("commitment is empty")
	}
}

func TestMimcGeneratorInputSensitivity(t *testing.T) {
	gen := NewMimcGenerator()
	ctx := context.Background()
	file := []byte("payload")

	base, _, err := gen.Generate(ctx, file, "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	variants := []struct {
		name      string
		file      []byte
		sender    string
		recipient string
		address   string
	}{
		{"different file", []byte("payload2"), "alice", "bob", "cid123"},
		{"different sender", file, "carol", "bob", "cid123"},
		{"different recipient", file, "alice", "carol", "cid123"},
		{"different address", file, "alice", "bob", "cid999"},
		{"swapped identities", file, "bob", "alice", "cid123"},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			cm, _, err := gen.Generate(ctx, v.file, v.sender, v.recipient, v.address)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if bytes.Equal(cm, base) {
				t.Error("commitment collision across distinct inputs")
			}
		})
	}
}

func TestMimcGeneratorEmptyInputs(t *testing.T) {
	gen := NewMimcGenerator()
	ctx := context.Background()

	cases := []struct {
		name      string
		file      []byte
		sender    string
		recipient string
		address   string
	}{
		{"empty file", nil, "alice", "bob", "cid123"},
		{"empty sender", []byte("x"), "", "bob", "cid123"},
		{"empty recipient", []byte("x"), "alice", "", "cid123"},
		{"empty address", []byte("x"), "alice", "bob", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := gen.Generate(ctx, c.file, c.sender, c.recipient, c.address)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrEmptyInput) {
				t.Errorf("expected ErrEmptyInput, got %v", err)
			}
		})
	}
}

func TestArtifactShape(t *testing.T) {
	gen := NewMimcGenerator()
	_, raw, err := gen.Generate(context.Background(), []byte("x"), "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if len(artifact.PiA) != 2 || len(artifact.PiB) != 1 || len(artifact.PiB[0]) != 2 || len(artifact.PiC) != 1 {
		t.Errorf("unexpected artifact shape: %+v", artifact)
	}
	if len(artifact.PublicSignals) != 4 {
		t.Errorf("expected 4 public signals, got %d", len(artifact.PublicSignals))
	}
	if artifact.PublicSignals[1] != "alice" || artifact.PublicSignals[2] != "bob" || artifact.PublicSignals[3] != "cid123" {
		t.Errorf("public signals do not carry the binding inputs: %v", artifact.PublicSignals)
	}
}

func TestMimcGeneratorVerify(t *testing.T) {
	gen := NewMimcGenerator()
	file := []byte("verified content")
	cm, artifact, err := gen.Generate(context.Background(), file, "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := gen.Verify(cm, artifact, file, "alice", "bob", "cid123"); err != nil {
		t.Errorf("Verify rejected a valid commitment: %v", err)
	}
	if err := gen.Verify(cm, artifact, []byte("tampered"), "alice", "bob", "cid123"); err == nil {
		t.Error("Verify accepted tampered content")
	}
}

func TestGroth16Generator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Groth16 setup in short mode")
	}
	keyDir := t.TempDir()
	gen, err := NewGroth16Generator(keyDir)
	if err != nil {
		t.Fatalf("NewGroth16Generator failed: %v", err)
	}

	file := []byte("proved content")
	cm, proof, err := gen.Generate(context.Background(), file, "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := gen.Verify(cm, proof, file, "alice", "bob", "cid123"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// The commitment must agree with the default generator so either backend
	// can be swapped in without changing ledger contents.
	cm2, _, err := NewMimcGenerator().Generate(context.Background(), file, "alice", "bob", "cid123")
	if err != nil {
		t.Fatalf("MimcGenerator failed: %v", err)
	}
	if !bytes.Equal(cm, cm2) {
		t.Error("Groth16 and MiMC backends disagree on the commitment")
	}

	// Keys are reused across constructions.
	if _, err := os.Stat(keyDir + "/transfer_pk.bin"); err != nil {
		t.Errorf("proving key not persisted: %v", err)
	}
}
