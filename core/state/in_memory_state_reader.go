// in_memory_state_reader.go provides a map-backed StateReader, used as the
// backing store in tests and as the commit target for state diffs.
package state

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/types"
)

// InMemoryStateReader is a StateReader over plain maps. The zero value of
// every entry is the protocol default, so lookups on absent keys return
// zero rather than failing.
type InMemoryStateReader struct {
	AddressToClassHash           map[felt.Felt]types.ClassHash
	AddressToNonce               map[felt.Felt]felt.Felt
	AddressToStorage             map[StorageEntry]felt.Felt
	ClassHashToCompiledClassHash map[felt.Felt]felt.Felt
	ClassHashToClass             map[felt.Felt]types.CompiledClass
}

// NewInMemoryStateReader returns an empty reader.
func NewInMemoryStateReader() *InMemoryStateReader {
	return &InMemoryStateReader{
		AddressToClassHash:           make(map[felt.Felt]types.ClassHash),
		AddressToNonce:               make(map[felt.Felt]felt.Felt),
		AddressToStorage:             make(map[StorageEntry]felt.Felt),
		ClassHashToCompiledClassHash: make(map[felt.Felt]felt.Felt),
		ClassHashToClass:             make(map[felt.Felt]types.CompiledClass),
	}
}

// GetClassHashAt returns the class hash at an address, or zero.
func (r *InMemoryStateReader) GetClassHashAt(address *felt.Felt) (types.ClassHash, error) {
	return r.AddressToClassHash[*address], nil
}

// GetNonceAt returns the nonce at an address, or zero.
func (r *InMemoryStateReader) GetNonceAt(address *felt.Felt) (*felt.Felt, error) {
	nonce := r.AddressToNonce[*address]
	return &nonce, nil
}

// GetStorageAt returns the value under (address, key), or zero.
func (r *InMemoryStateReader) GetStorageAt(address, key *felt.Felt) (*felt.Felt, error) {
	value := r.AddressToStorage[NewStorageEntry(address, key)]
	return &value, nil
}

// GetCompiledClassHash returns the compiled class hash for a class hash, or
// zero.
func (r *InMemoryStateReader) GetCompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	hash := r.ClassHashToCompiledClassHash[*classHash]
	return &hash, nil
}

// GetContractClass returns the class declared under a class hash, or
// ErrClassHashNotFound.
func (r *InMemoryStateReader) GetContractClass(classHash *felt.Felt) (types.CompiledClass, error) {
	class, ok := r.ClassHashToClass[*classHash]
	if !ok {
		return nil, ErrClassHashNotFound
	}
	return class, nil
}

var _ StateReader = (*InMemoryStateReader)(nil)
