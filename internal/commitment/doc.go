// Package commitment derives the cryptographic binding at the heart of a
// private transfer.
//
// Overview:
//   - A commitment binds (file content, sender identity, recipient identity,
//     content-store address) into a single fixed-width value
//   - Each input is first digested with a domain-keyed BLAKE3 hash, then the
//     four digests are combined with MiMC (BW6-761)
//   - Generation is deterministic: byte-identical inputs always yield the
//     byte-identical commitment, the property the ledger's deduplication and
//     external verifiers depend on
//
// Proof artifacts:
//   - MimcGenerator emits a structured, fully deterministic artifact derived
//     only from the four input digests (no real circuit is involved)
//   - Groth16Generator proves knowledge of the digests behind a commitment
//     with gnark (Groth16, BW6-761); its artifact is a serialized proof and
//     is randomized, but the commitment itself stays deterministic
//
// All randomness-free: Generate performs no I/O and has no side effects.
package commitment
