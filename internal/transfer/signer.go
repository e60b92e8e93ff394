// signer.go - Signing capability injected into the coordinator.
//
// The engine never talks to a wallet directly; whoever hosts it supplies a
// Signer. Ed25519Signer is a file-backed implementation for daemons and
// tests.

package transfer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// Signer signs an instruction payload and returns the signature. The
// submission id of a transfer is derived from this signature.
type Signer interface {
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, payload []byte) ([]byte, error)

func (f SignerFunc) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// Ed25519Signer signs payloads with a locally held ed25519 key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signer keygen: %w", err)
	}
	return &Ed25519Signer{priv: priv}, nil
}

// LoadOrCreateEd25519Signer loads the hex-encoded key at path, generating
// and saving a fresh one when the file does not exist.
func LoadOrCreateEd25519Signer(path string) (*Ed25519Signer, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		seed, err := hex.DecodeString(string(raw))
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("signer key %s is corrupt", path)
		}
		return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("signer key: %w", err)
	}

	s, err := NewEd25519Signer()
	if err != nil {
		return nil, err
	}
	seed := s.priv.Seed()
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0600); err != nil {
		return nil, fmt.Errorf("signer key save: %w", err)
	}
	return s, nil
}

// PublicKey returns the hex-encoded public key, usable as a sender identity.
func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.priv.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) Sign(_ context.Context, payload []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, payload), nil
}
