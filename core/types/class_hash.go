// class_hash.go defines the 32-byte class-hash form and the hash
// computations for both contract-class kinds. Class hashes are deterministic
// functions of class contents: the same class yields the same hash on every
// host.
package types

import (
	"encoding/hex"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/crypto"
)

// ClassHash is the 32-byte big-endian encoding of a class-hash field
// element.
type ClassHash [32]byte

// FeltToClassHash converts a field element to its 32-byte form.
func FeltToClassHash(f *felt.Felt) ClassHash {
	return ClassHash(f.Bytes())
}

// Felt returns the class hash as a field element.
func (h ClassHash) Felt() *felt.Felt {
	return new(felt.Felt).SetBytes(h[:])
}

// IsZero reports whether the class hash is the zero value, meaning "no class
// deployed".
func (h ClassHash) IsZero() bool {
	return h == ClassHash{}
}

// Hex returns the class hash as a 0x-prefixed hex string.
func (h ClassHash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// deprecatedClassAPIVersion is the leading element of the deprecated class
// hash chain.
var deprecatedClassAPIVersion = &felt.Zero

// compiledClassV1Prefix is the leading element of the CASM compiled-class
// hash chain.
var compiledClassV1Prefix = new(felt.Felt).SetBytes([]byte("COMPILED_CLASS_V1"))

// hashEntryPoints flattens a (selector, offset) table into a Pedersen chain.
func hashEntryPoints(entryPoints []ContractEntryPoint) *felt.Felt {
	flat := make([]*felt.Felt, 0, 2*len(entryPoints))
	for _, ep := range entryPoints {
		flat = append(flat, ep.Selector, new(felt.Felt).SetUint64(ep.Offset))
	}
	return crypto.ComputeHashOnElements(flat)
}

// ComputeDeprecatedClassHash computes the class hash of a Cairo 0 contract
// class: a Pedersen chain over the API version, the three entry-point table
// hashes, the builtin list, the hinted class hash (sn_keccak over the
// program and ABI bytes), and the program data hash.
func ComputeDeprecatedClassHash(class *DeprecatedContractClass) *felt.Felt {
	builtins := make([]*felt.Felt, 0, len(class.Builtins))
	for _, b := range class.Builtins {
		builtins = append(builtins, new(felt.Felt).SetBytes([]byte(b)))
	}

	hinted := crypto.StarknetKeccak(append(append([]byte{}, class.Program...), class.ABI...))

	return crypto.ComputeHashOnElements([]*felt.Felt{
		deprecatedClassAPIVersion,
		hashEntryPoints(class.EntryPointsByType[EntryPointTypeExternal]),
		hashEntryPoints(class.EntryPointsByType[EntryPointTypeL1Handler]),
		hashEntryPoints(class.EntryPointsByType[EntryPointTypeConstructor]),
		crypto.ComputeHashOnElements(builtins),
		hinted,
		crypto.ComputeHashOnElements(class.ProgramData),
	})
}

// poseidonEntryPoints flattens a CASM entry-point table, hashing each entry
// as (selector, offset, h(builtins)).
func poseidonEntryPoints(entryPoints []ContractEntryPoint) *felt.Felt {
	flat := make([]*felt.Felt, 0, 3*len(entryPoints))
	for _, ep := range entryPoints {
		builtins := make([]*felt.Felt, 0, len(ep.Builtins))
		for _, b := range ep.Builtins {
			builtins = append(builtins, new(felt.Felt).SetBytes([]byte(b)))
		}
		flat = append(flat,
			ep.Selector,
			new(felt.Felt).SetUint64(ep.Offset),
			crypto.PoseidonHashMany(builtins),
		)
	}
	return crypto.PoseidonHashMany(flat)
}

// ComputeCasmClassHash computes the compiled class hash of a Cairo 1 (CASM)
// class: a Poseidon chain over the COMPILED_CLASS_V1 prefix, the three
// entry-point table hashes, and the bytecode hash.
func ComputeCasmClassHash(class *CasmClass) *felt.Felt {
	return crypto.PoseidonHashMany([]*felt.Felt{
		compiledClassV1Prefix,
		poseidonEntryPoints(class.EntryPointsByType[EntryPointTypeExternal]),
		poseidonEntryPoints(class.EntryPointsByType[EntryPointTypeL1Handler]),
		poseidonEntryPoints(class.EntryPointsByType[EntryPointTypeConstructor]),
		crypto.PoseidonHashMany(class.Bytecode),
	})
}
