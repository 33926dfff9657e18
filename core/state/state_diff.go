// state_diff.go defines the four-map state diff produced by a committed
// transaction: deployed/replaced classes, nonces, storage writes, and the
// set of newly declared classes. This core produces the diff; committing it
// into a block is the surrounding chain's concern.
package state

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/types"
)

// StateDiff captures the writes of an overlay relative to its snapshot.
type StateDiff struct {
	AddressToClassHash map[felt.Felt]types.ClassHash
	AddressToNonce     map[felt.Felt]felt.Felt
	StorageUpdates     map[StorageEntry]felt.Felt
	DeclaredClasses    map[felt.Felt]types.CompiledClass
}

// NewStateDiff returns an empty diff.
func NewStateDiff() *StateDiff {
	return &StateDiff{
		AddressToClassHash: make(map[felt.Felt]types.ClassHash),
		AddressToNonce:     make(map[felt.Felt]felt.Felt),
		StorageUpdates:     make(map[StorageEntry]felt.Felt),
		DeclaredClasses:    make(map[felt.Felt]types.CompiledClass),
	}
}

// DiffFromCachedState extracts the write layers of an overlay as a diff.
// DeclaredClasses receives every class in the overlay's class caches,
// including classes that were only loaded from the reader.
func DiffFromCachedState(s *CachedState) *StateDiff {
	diff := NewStateDiff()
	for addr, hash := range s.cache.classHashWrites {
		diff.AddressToClassHash[addr] = hash
	}
	for addr, nonce := range s.cache.nonceWrites {
		diff.AddressToNonce[addr] = nonce
	}
	for entry, value := range s.cache.storageWrites {
		diff.StorageUpdates[entry] = value
	}
	for hash, class := range s.deprecatedClasses {
		diff.DeclaredClasses[hash] = class
	}
	for hash, class := range s.casmClasses {
		diff.DeclaredClasses[hash] = class
	}
	return diff
}

// ApplyTo writes the diff into a map-backed reader, making the writes the
// new committed baseline.
func (d *StateDiff) ApplyTo(reader *InMemoryStateReader) {
	for addr, hash := range d.AddressToClassHash {
		reader.AddressToClassHash[addr] = hash
	}
	for addr, nonce := range d.AddressToNonce {
		reader.AddressToNonce[addr] = nonce
	}
	for entry, value := range d.StorageUpdates {
		reader.AddressToStorage[entry] = value
	}
	for hash, class := range d.DeclaredClasses {
		reader.ClassHashToClass[hash] = class
	}
}
