// Package crypto provides the Stark-field hash primitives used by the
// transaction execution core: Pedersen chains, Poseidon, the sn_keccak
// selector hash, transaction hashes, and contract-address derivation.
//
// The field arithmetic and the Pedersen/Poseidon permutations themselves are
// provided by Nethermind's juno implementation; this package only composes
// them into the protocol-level hash formulas.
package crypto

import (
	junocrypto "github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"golang.org/x/crypto/sha3"
)

// Pedersen returns the Pedersen hash of two field elements.
func Pedersen(a, b *felt.Felt) *felt.Felt {
	return junocrypto.Pedersen(a, b)
}

// Poseidon returns the Poseidon hash of two field elements.
func Poseidon(a, b *felt.Felt) *felt.Felt {
	return junocrypto.Poseidon(a, b)
}

// ComputeHashOnElements computes the Pedersen chain over data with the
// element count appended:
//
//	h(...h(h(0, d0), d1)..., n)
//
// This is the hash([x1..xn]) primitive used by transaction hashes and
// contract-address derivation.
func ComputeHashOnElements(data []*felt.Felt) *felt.Felt {
	return junocrypto.PedersenArray(data...)
}

// PoseidonHashMany is the Poseidon analogue of ComputeHashOnElements, used
// by the CASM compiled-class hash.
func PoseidonHashMany(data []*felt.Felt) *felt.Felt {
	return junocrypto.PoseidonArray(data...)
}

// Keccak256 returns the legacy Keccak-256 digest of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// StarknetKeccak computes sn_keccak: the Keccak-256 digest truncated to its
// low 250 bits so the result always fits in a field element.
func StarknetKeccak(data []byte) *felt.Felt {
	digest := Keccak256(data)
	digest[0] &= 0x03
	return new(felt.Felt).SetBytes(digest)
}

// GetSelectorFromName returns the entry-point selector for a function name,
// defined as sn_keccak of the ASCII name.
func GetSelectorFromName(name string) *felt.Felt {
	return StarknetKeccak([]byte(name))
}
