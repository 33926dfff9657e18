// contract_storage_state.go gives one running call frame its view of the
// owning contract's storage, recording read values in chronological order
// and the set of accessed keys for the frame's CallInfo.
package state

import (
	"github.com/NethermindEth/juno/core/felt"
)

// ContractStorageState scopes a State to a single contract address and
// records the frame's storage footprint.
type ContractStorageState struct {
	state           State
	contractAddress *felt.Felt

	// ReadValues holds every read result in chronological order.
	ReadValues []*felt.Felt
	// AccessedKeys is the set of keys read or written.
	AccessedKeys map[felt.Felt]struct{}
}

// NewContractStorageState scopes state to contractAddress.
func NewContractStorageState(state State, contractAddress *felt.Felt) *ContractStorageState {
	return &ContractStorageState{
		state:           state,
		contractAddress: contractAddress,
		AccessedKeys:    make(map[felt.Felt]struct{}),
	}
}

// Read returns the value under key, recording both the access and the value
// observed.
func (s *ContractStorageState) Read(key *felt.Felt) (*felt.Felt, error) {
	s.AccessedKeys[*key] = struct{}{}
	value, err := s.state.GetStorageAt(s.contractAddress, key)
	if err != nil {
		return nil, err
	}
	s.ReadValues = append(s.ReadValues, value)
	return value, nil
}

// Write stores value under key, recording the access.
func (s *ContractStorageState) Write(key, value *felt.Felt) {
	s.AccessedKeys[*key] = struct{}{}
	s.state.SetStorageAt(s.contractAddress, key, value)
}
