// cached_state.go implements the read-through / write-through overlay. The
// initial layers memoize the first value observed from the reader so a read
// goes through the reader at most once per key; the write layers record
// every mutation without ever touching the initial layers.
package state

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/types"
)

// stateCache holds the four read layers and the four mirroring write
// layers.
type stateCache struct {
	classHashInitial         map[felt.Felt]types.ClassHash
	nonceInitial             map[felt.Felt]felt.Felt
	storageInitial           map[StorageEntry]felt.Felt
	compiledClassHashInitial map[felt.Felt]felt.Felt

	classHashWrites         map[felt.Felt]types.ClassHash
	nonceWrites             map[felt.Felt]felt.Felt
	storageWrites           map[StorageEntry]felt.Felt
	compiledClassHashWrites map[felt.Felt]felt.Felt
}

func newStateCache() *stateCache {
	return &stateCache{
		classHashInitial:         make(map[felt.Felt]types.ClassHash),
		nonceInitial:             make(map[felt.Felt]felt.Felt),
		storageInitial:           make(map[StorageEntry]felt.Felt),
		compiledClassHashInitial: make(map[felt.Felt]felt.Felt),
		classHashWrites:          make(map[felt.Felt]types.ClassHash),
		nonceWrites:              make(map[felt.Felt]felt.Felt),
		storageWrites:            make(map[StorageEntry]felt.Felt),
		compiledClassHashWrites:  make(map[felt.Felt]felt.Felt),
	}
}

func (c *stateCache) clone() *stateCache {
	cp := newStateCache()
	for k, v := range c.classHashInitial {
		cp.classHashInitial[k] = v
	}
	for k, v := range c.nonceInitial {
		cp.nonceInitial[k] = v
	}
	for k, v := range c.storageInitial {
		cp.storageInitial[k] = v
	}
	for k, v := range c.compiledClassHashInitial {
		cp.compiledClassHashInitial[k] = v
	}
	for k, v := range c.classHashWrites {
		cp.classHashWrites[k] = v
	}
	for k, v := range c.nonceWrites {
		cp.nonceWrites[k] = v
	}
	for k, v := range c.storageWrites {
		cp.storageWrites[k] = v
	}
	for k, v := range c.compiledClassHashWrites {
		cp.compiledClassHashWrites[k] = v
	}
	return cp
}

// CachedState is the layered overlay over a StateReader. It is created per
// transaction, mutated in place, and either committed (its diff merged into
// the parent) or discarded.
type CachedState struct {
	reader StateReader
	cache  *stateCache

	deprecatedClasses map[felt.Felt]*types.DeprecatedContractClass
	casmClasses       map[felt.Felt]*types.CasmClass
}

// NewCachedState wraps a backing reader in a fresh overlay.
func NewCachedState(reader StateReader) *CachedState {
	return &CachedState{
		reader:            reader,
		cache:             newStateCache(),
		deprecatedClasses: make(map[felt.Felt]*types.DeprecatedContractClass),
		casmClasses:       make(map[felt.Felt]*types.CasmClass),
	}
}

// Reader returns the backing reader.
func (s *CachedState) Reader() StateReader {
	return s.reader
}

// Clone produces an independent overlay sharing the backing reader. The
// clone is how speculative execution is realized: run against the clone,
// then either Apply it into the parent or drop it.
func (s *CachedState) Clone() *CachedState {
	cp := &CachedState{
		reader:            s.reader,
		cache:             s.cache.clone(),
		deprecatedClasses: make(map[felt.Felt]*types.DeprecatedContractClass, len(s.deprecatedClasses)),
		casmClasses:       make(map[felt.Felt]*types.CasmClass, len(s.casmClasses)),
	}
	// Classes are immutable after construction, so sharing pointers is safe.
	for k, v := range s.deprecatedClasses {
		cp.deprecatedClasses[k] = v
	}
	for k, v := range s.casmClasses {
		cp.casmClasses[k] = v
	}
	return cp
}

// Apply commits a child overlay's writes and class caches into s. The child
// must have been produced by Clone on s (or share its reader).
func (s *CachedState) Apply(child *CachedState) {
	for k, v := range child.cache.classHashWrites {
		s.cache.classHashWrites[k] = v
	}
	for k, v := range child.cache.nonceWrites {
		s.cache.nonceWrites[k] = v
	}
	for k, v := range child.cache.storageWrites {
		s.cache.storageWrites[k] = v
	}
	for k, v := range child.cache.compiledClassHashWrites {
		s.cache.compiledClassHashWrites[k] = v
	}
	for k, v := range child.deprecatedClasses {
		s.deprecatedClasses[k] = v
	}
	for k, v := range child.casmClasses {
		s.casmClasses[k] = v
	}
}

// GetClassHashAt returns the class hash at an address: the write layer if
// present, else the memoized reader value.
func (s *CachedState) GetClassHashAt(address *felt.Felt) (types.ClassHash, error) {
	if hash, ok := s.cache.classHashWrites[*address]; ok {
		return hash, nil
	}
	if hash, ok := s.cache.classHashInitial[*address]; ok {
		return hash, nil
	}
	hash, err := s.reader.GetClassHashAt(address)
	if err != nil {
		return types.ClassHash{}, err
	}
	s.cache.classHashInitial[*address] = hash
	return hash, nil
}

// GetNonceAt returns the nonce at an address, defaulting to zero.
func (s *CachedState) GetNonceAt(address *felt.Felt) (*felt.Felt, error) {
	if nonce, ok := s.cache.nonceWrites[*address]; ok {
		return &nonce, nil
	}
	if nonce, ok := s.cache.nonceInitial[*address]; ok {
		return &nonce, nil
	}
	nonce, err := s.reader.GetNonceAt(address)
	if err != nil {
		return nil, err
	}
	s.cache.nonceInitial[*address] = *nonce
	return nonce, nil
}

// GetStorageAt returns the value under (address, key), defaulting to zero.
// The first reader value is memoized so subsequent reads are stable even if
// the reader is slow or randomized; a later write never invalidates the
// memoized read slot.
func (s *CachedState) GetStorageAt(address, key *felt.Felt) (*felt.Felt, error) {
	entry := NewStorageEntry(address, key)
	if value, ok := s.cache.storageWrites[entry]; ok {
		return &value, nil
	}
	if value, ok := s.cache.storageInitial[entry]; ok {
		return &value, nil
	}
	value, err := s.reader.GetStorageAt(address, key)
	if err != nil {
		return nil, err
	}
	s.cache.storageInitial[entry] = *value
	return value, nil
}

// GetCompiledClassHash returns the compiled class hash for a class hash.
func (s *CachedState) GetCompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	if hash, ok := s.cache.compiledClassHashWrites[*classHash]; ok {
		return &hash, nil
	}
	if hash, ok := s.cache.compiledClassHashInitial[*classHash]; ok {
		return &hash, nil
	}
	hash, err := s.reader.GetCompiledClassHash(classHash)
	if err != nil {
		return nil, err
	}
	s.cache.compiledClassHashInitial[*classHash] = *hash
	return hash, nil
}

// GetContractClass looks up the deprecated cache, then the casm cache, then
// the reader; a reader hit is cached for subsequent lookups.
func (s *CachedState) GetContractClass(classHash *felt.Felt) (types.CompiledClass, error) {
	if class, ok := s.deprecatedClasses[*classHash]; ok {
		return class, nil
	}
	if class, ok := s.casmClasses[*classHash]; ok {
		return class, nil
	}
	class, err := s.reader.GetContractClass(classHash)
	if err != nil {
		return nil, err
	}
	switch c := class.(type) {
	case *types.DeprecatedContractClass:
		s.deprecatedClasses[*classHash] = c
	case *types.CasmClass:
		s.casmClasses[*classHash] = c
	}
	return class, nil
}

// SetStorageAt records a write in the write layer only.
func (s *CachedState) SetStorageAt(address, key, value *felt.Felt) {
	s.cache.storageWrites[NewStorageEntry(address, key)] = *value
}

// IncrementNonce bumps the nonce at an address by one.
func (s *CachedState) IncrementNonce(address *felt.Felt) error {
	current, err := s.GetNonceAt(address)
	if err != nil {
		return err
	}
	next := new(felt.Felt).Add(current, new(felt.Felt).SetUint64(1))
	s.cache.nonceWrites[*address] = *next
	return nil
}

// DeployContract binds a class hash to a previously vacant address. It
// fails with ErrContractAddressUnavailable when the address already has a
// non-zero class hash in either the cache or the reader.
func (s *CachedState) DeployContract(address *felt.Felt, classHash types.ClassHash) error {
	current, err := s.GetClassHashAt(address)
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return ErrContractAddressUnavailable
	}
	s.cache.classHashWrites[*address] = classHash
	return nil
}

// SetClassHashAt overwrites the class hash at an address unconditionally.
// This is the replace_class primitive.
func (s *CachedState) SetClassHashAt(address *felt.Felt, classHash types.ClassHash) {
	s.cache.classHashWrites[*address] = classHash
}

// SetContractClass registers a deprecated class in the class cache.
func (s *CachedState) SetContractClass(classHash *felt.Felt, class *types.DeprecatedContractClass) {
	s.deprecatedClasses[*classHash] = class
}

// SetCompiledClass registers a CASM class in the class cache.
func (s *CachedState) SetCompiledClass(classHash *felt.Felt, class *types.CasmClass) {
	s.casmClasses[*classHash] = class
}

// SetCompiledClassHash records a (class hash, compiled class hash) binding.
func (s *CachedState) SetCompiledClassHash(classHash, compiledClassHash *felt.Felt) {
	s.cache.compiledClassHashWrites[*classHash] = *compiledClassHash
}

// ApplyStateUpdate merges a diff into the write layers.
func (s *CachedState) ApplyStateUpdate(diff *StateDiff) {
	for addr, hash := range diff.AddressToClassHash {
		s.cache.classHashWrites[addr] = hash
	}
	for addr, nonce := range diff.AddressToNonce {
		s.cache.nonceWrites[addr] = nonce
	}
	for entry, value := range diff.StorageUpdates {
		s.cache.storageWrites[entry] = value
	}
	for hash, class := range diff.DeclaredClasses {
		switch c := class.(type) {
		case *types.DeprecatedContractClass:
			s.deprecatedClasses[hash] = c
		case *types.CasmClass:
			s.casmClasses[hash] = c
		}
	}
}

// CountActualStorageChanges returns (n_modified_contracts,
// n_storage_updates). A contract is modified when it received a class-hash
// update, a nonce bump, or at least one storage write; a storage update is a
// recorded write whose value differs from the reader's. The reader's value
// is taken from the memoized initial layer when present.
func (s *CachedState) CountActualStorageChanges() (int, int) {
	modified := make(map[felt.Felt]struct{})
	for addr := range s.cache.classHashWrites {
		modified[addr] = struct{}{}
	}
	for addr := range s.cache.nonceWrites {
		modified[addr] = struct{}{}
	}

	storageUpdates := 0
	for entry, value := range s.cache.storageWrites {
		modified[entry.Address] = struct{}{}
		base, ok := s.cache.storageInitial[entry]
		if !ok {
			addr, key := entry.Address, entry.Key
			fetched, err := s.reader.GetStorageAt(&addr, &key)
			if err != nil {
				storageUpdates++
				continue
			}
			base = *fetched
			s.cache.storageInitial[entry] = base
		}
		if !base.Equal(&value) {
			storageUpdates++
		}
	}
	return len(modified), storageUpdates
}

// Compile-time interface checks.
var (
	_ StateReader = (*CachedState)(nil)
	_ State       = (*CachedState)(nil)
)
