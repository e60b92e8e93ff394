// hash.go - Digest and combiner primitives for transfer commitments.
//
// Each commitment input is digested with a domain-keyed BLAKE3 hash before
// entering the MiMC combiner. Domain separation ensures the same bytes used
// as, say, a sender identity and a content address can never collide.

package commitment

import (
	fr "github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of one commitment input.
type Digest [32]byte

// Domain separation keys for BLAKE3 keyed hashing. Fixed constants: changing
// them invalidates every commitment ever derived. The byte values are the
// ASCII domain name, zero-padded to 32 bytes.
var (
	fileDomain      = domainKey("veilsend.file")
	senderDomain    = domainKey("veilsend.sender")
	recipientDomain = domainKey("veilsend.recipient")
	addressDomain   = domainKey("veilsend.address")
	attemptDomain   = domainKey("veilsend.attempt")
)

func domainKey(name string) [32]byte {
	var key [32]byte
	copy(key[:], name)
	return key
}

// keyedDigest computes the BLAKE3 keyed hash of data under the given domain.
func keyedDigest(domain [32]byte, data []byte) Digest {
	h, err := blake3.NewKeyed(domain[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic(err)
	}
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// HashFile digests raw file content in the file domain.
func HashFile(data []byte) Digest { return keyedDigest(fileDomain, data) }

// HashSender digests a sender identity in the sender domain.
func HashSender(id string) Digest { return keyedDigest(senderDomain, []byte(id)) }

// HashRecipient digests a recipient identity in the recipient domain.
func HashRecipient(id string) Digest { return keyedDigest(recipientDomain, []byte(id)) }

// HashAddress digests a content-store address in the address domain.
func HashAddress(addr string) Digest { return keyedDigest(addressDomain, []byte(addr)) }

// HashAttempt digests a signed-payload body in the attempt domain. Used to
// derive ledger ids for failed submissions, which never obtain a signature.
func HashAttempt(payload []byte) Digest { return keyedDigest(attemptDomain, payload) }

// combine folds the four input digests into a commitment with MiMC.
// Every digest is written as one canonical BW6-761 field element so the
// native hash consumes exactly one block per input, matching the in-circuit
// MiMC of the Groth16 backend element for element.
func combine(file, sender, recipient, address Digest) []byte {
	h := mimcNative.NewMiMC()
	for _, d := range []Digest{file, sender, recipient, address} {
		var e fr.Element
		e.SetBytes(d[:])
		b := e.Bytes()
		h.Write(b[:])
	}
	return h.Sum(nil)
}
