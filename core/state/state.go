// Package state implements the layered cached state that sits between
// executing code and a slow backing store. The read-only backing store is a
// StateReader; the read-write overlay handed to executing transactions is a
// CachedState, which is cheap to clone and either committed into its parent
// or discarded.
package state

import (
	"errors"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/types"
)

// State errors.
var (
	ErrContractAddressUnavailable = errors.New("contract address unavailable")
	ErrClassHashNotFound          = errors.New("class hash not found")
	ErrNoneCompiledClass          = errors.New("no compiled class registered")
)

// StorageEntry addresses one storage slot: a (contract address, key) pair.
type StorageEntry struct {
	Address felt.Felt
	Key     felt.Felt
}

// NewStorageEntry builds the map key for a contract storage slot.
func NewStorageEntry(address, key *felt.Felt) StorageEntry {
	return StorageEntry{Address: *address, Key: *key}
}

// StateReader is the read-only backing store interface. All getters except
// GetContractClass are total: absent values read as zero. Implementations must be idempotent
// under repeated calls and safe for concurrent readers.
type StateReader interface {
	// GetClassHashAt returns the class hash deployed at an address, or the
	// zero hash when the address is vacant.
	GetClassHashAt(address *felt.Felt) (types.ClassHash, error)
	// GetNonceAt returns the nonce of the contract at an address.
	GetNonceAt(address *felt.Felt) (*felt.Felt, error)
	// GetStorageAt returns the value stored under (address, key).
	GetStorageAt(address, key *felt.Felt) (*felt.Felt, error)
	// GetCompiledClassHash returns the compiled class hash registered for a
	// (sierra) class hash.
	GetCompiledClassHash(classHash *felt.Felt) (*felt.Felt, error)
	// GetContractClass returns the contract class declared under a class
	// hash, or ErrClassHashNotFound.
	GetContractClass(classHash *felt.Felt) (types.CompiledClass, error)
}

// State is the read-write interface executing code operates on. It is
// exclusively owned by one transaction at a time.
type State interface {
	StateReader

	SetStorageAt(address, key, value *felt.Felt)
	IncrementNonce(address *felt.Felt) error
	DeployContract(address *felt.Felt, classHash types.ClassHash) error
	SetClassHashAt(address *felt.Felt, classHash types.ClassHash)
	SetContractClass(classHash *felt.Felt, class *types.DeprecatedContractClass)
	SetCompiledClass(classHash *felt.Felt, class *types.CasmClass)
	SetCompiledClassHash(classHash, compiledClassHash *felt.Felt)
	ApplyStateUpdate(diff *StateDiff)
	CountActualStorageChanges() (nModifiedContracts int, nStorageUpdates int)
}
