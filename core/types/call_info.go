// call_info.go defines the record of a single entry-point execution and the
// tree it forms through internal calls. CallInfo values are created once by
// the entry-point executor and never mutated afterwards.
package types

import (
	"github.com/NethermindEth/juno/core/felt"
)

// OrderedEvent is an event emitted during execution. Order is a
// transaction-global monotonic counter so a consumer can reconstruct the
// total emission order across the call tree.
type OrderedEvent struct {
	Order uint64
	Keys  []*felt.Felt
	Data  []*felt.Felt
}

// OrderedL2ToL1Message is a message sent to L1 during execution, ordered by
// the transaction-global message counter.
type OrderedL2ToL1Message struct {
	Order     uint64
	ToAddress *felt.Felt
	Payload   []*felt.Felt
}

// CallInfo is the output of one entry-point run. InternalCalls holds the
// direct children in execution order, forming a tree rooted at the
// transaction's top-level call.
type CallInfo struct {
	CallerAddress      *felt.Felt
	ContractAddress    *felt.Felt
	CodeAddress        *felt.Felt // class hash for library_call frames, code-holding contract address for delegate_call frames, nil otherwise
	ClassHash          *ClassHash
	EntryPointSelector *felt.Felt
	EntryPointType     EntryPointType
	CallType           CallType

	Calldata []*felt.Felt
	Retdata  []*felt.Felt

	// Failed marks a reverted frame; Retdata then carries the short-string
	// error code.
	Failed      bool
	GasConsumed uint64

	Events         []OrderedEvent
	L2ToL1Messages []OrderedL2ToL1Message

	// StorageReadValues records every storage read in chronological order;
	// AccessedStorageKeys is the set of keys read or written.
	StorageReadValues   []*felt.Felt
	AccessedStorageKeys map[felt.Felt]struct{}

	ExecutionResources ExecutionResources

	InternalCalls []*CallInfo
}

// GenCallTopology returns the call tree flattened in DFS pre-order: the
// frame itself first, then each child subtree in execution order.
func (ci *CallInfo) GenCallTopology() []*CallInfo {
	out := []*CallInfo{ci}
	for _, child := range ci.InternalCalls {
		out = append(out, child.GenCallTopology()...)
	}
	return out
}

// EmptyConstructorCall builds the CallInfo for a deployment whose class has
// no constructor: a successful constructor frame that executed nothing.
func EmptyConstructorCall(contractAddress, callerAddress *felt.Felt, classHash *ClassHash) *CallInfo {
	return &CallInfo{
		CallerAddress:       callerAddress,
		ContractAddress:     contractAddress,
		ClassHash:           classHash,
		EntryPointType:      EntryPointTypeConstructor,
		CallType:            CallTypeCall,
		AccessedStorageKeys: make(map[felt.Felt]struct{}),
	}
}
