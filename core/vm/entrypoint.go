// entrypoint.go implements the entry-point executor: it resolves the target
// class, finds the entry offset for the selector, boots a sub-VM with a
// fresh syscall handler installed, and folds the run's output into a
// CallInfo.
package vm

import (
	"errors"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/crypto"
)

// Well-known entry-point selectors.
var (
	constructorSelector = crypto.GetSelectorFromName("__constructor__")
)

// ExecutionEntryPoint describes one entry-point invocation. ClassHash and
// CodeAddress are only set for delegate frames, where the executed class is
// not the one deployed at ContractAddress.
type ExecutionEntryPoint struct {
	ContractAddress    *felt.Felt
	Calldata           []*felt.Felt
	EntryPointSelector *felt.Felt
	CallerAddress      *felt.Felt
	EntryPointType     types.EntryPointType
	CallType           types.CallType
	ClassHash          *types.ClassHash
	CodeAddress        *felt.Felt
	InitialGas         uint64
}

// resolveClassHash returns the class to execute: the forced hash for
// delegate frames, else whatever is deployed at the contract address.
func (ep *ExecutionEntryPoint) resolveClassHash(st state.State) (types.ClassHash, error) {
	if ep.ClassHash != nil {
		return *ep.ClassHash, nil
	}
	hash, err := st.GetClassHashAt(ep.ContractAddress)
	if err != nil {
		return types.ClassHash{}, err
	}
	if hash.IsZero() {
		return types.ClassHash{}, ErrClassHashNotFound
	}
	return hash, nil
}

// Execute runs the entry point against st and returns its CallInfo. When
// supportReverted is set, interpreter and syscall failures are captured as
// a failed CallInfo whose retdata carries the short-string error code;
// otherwise they propagate and the caller discards the state overlay.
// Cairo 1 (CASM) frames capture machine failures in this way regardless
// of supportReverted, except running out of steps, and a CASM frame with
// zero initial gas returns a failed "Out of gas" CallInfo without running.
func (ep *ExecutionEntryPoint) Execute(
	st state.State,
	blockContext *BlockContext,
	resources *ExecutionResourcesManager,
	txContext *types.TransactionExecutionContext,
	supportReverted bool,
) (*types.CallInfo, error) {
	classHash, err := ep.resolveClassHash(st)
	if err != nil {
		return ep.failedOrError(classHash, err, supportReverted)
	}

	class, err := st.GetContractClass(classHash.Felt())
	if err != nil {
		if errors.Is(err, state.ErrClassHashNotFound) {
			err = ErrClassHashNotFound
		}
		return ep.failedOrError(classHash, err, supportReverted)
	}

	_, isCasm := class.(*types.CasmClass)

	// A Cairo 1 frame with no gas fails before executing anything,
	// syscalls included.
	if isCasm && ep.InitialGas == 0 {
		return ep.failedCallInfo(classHash, ErrOutOfGas), nil
	}

	entry, ok := types.FindEntryPoint(class, ep.EntryPointType, ep.EntryPointSelector)
	if !ok {
		return ep.failedOrError(classHash, ErrEntryPointNotFound, supportReverted)
	}

	if blockContext.Interpreter == nil {
		return nil, ErrNoInterpreter
	}
	machine, err := blockContext.Interpreter.NewMachine(class)
	if err != nil {
		return nil, &VMError{Inner: err}
	}

	handler := NewSyscallHandler(
		st, blockContext, txContext, resources,
		ep.CallerAddress, ep.ContractAddress,
		supportReverted, isCasm, ep.InitialGas,
	)

	result, err := machine.Run(&MachineCall{
		Class:       class,
		EntryOffset: entry.Offset,
		Calldata:    ep.Calldata,
		InitialGas:  ep.InitialGas,
		MaxSteps:    txContext.MaxSteps,
		Handler:     handler,
	})
	if err != nil {
		// Cairo 1 frames report failures in-band as short-string retdata;
		// step exhaustion is the exception and always unwinds.
		if supportReverted || (isCasm && !errors.Is(err, ErrOutOfSteps)) {
			info := ep.failedCallInfo(classHash, err)
			info.Events = handler.events
			info.L2ToL1Messages = handler.messages
			info.InternalCalls = handler.internalCalls
			return info, nil
		}
		if errors.Is(err, ErrOutOfSteps) || errors.Is(err, ErrOutOfGas) {
			return nil, err
		}
		var vmErr *VMError
		if errors.As(err, &vmErr) {
			return nil, err
		}
		return nil, &VMError{Inner: err}
	}

	resources.AddVMResources(result.Resources)

	// Syscall charges (including nested frames) already left InitialGas -
	// remainingGas; the machine reports its own execution gas on top.
	gasConsumed := result.GasConsumed
	if isCasm {
		gasConsumed += ep.InitialGas - handler.remainingGas
	}

	accessed := make(map[felt.Felt]struct{}, len(handler.storage.AccessedKeys))
	for k := range handler.storage.AccessedKeys {
		accessed[k] = struct{}{}
	}

	return &types.CallInfo{
		CallerAddress:       ep.CallerAddress,
		ContractAddress:     ep.ContractAddress,
		CodeAddress:         ep.CodeAddress,
		ClassHash:           &classHash,
		EntryPointSelector:  ep.EntryPointSelector,
		EntryPointType:      ep.EntryPointType,
		CallType:            ep.CallType,
		Calldata:            ep.Calldata,
		Retdata:             result.Retdata,
		GasConsumed:         gasConsumed,
		Events:              handler.events,
		L2ToL1Messages:      handler.messages,
		StorageReadValues:   handler.storage.ReadValues,
		AccessedStorageKeys: accessed,
		ExecutionResources:  result.Resources,
		InternalCalls:       handler.internalCalls,
	}, nil
}

// failedOrError captures err as a failed CallInfo under supportReverted,
// else propagates it.
func (ep *ExecutionEntryPoint) failedOrError(classHash types.ClassHash, err error, supportReverted bool) (*types.CallInfo, error) {
	if supportReverted {
		return ep.failedCallInfo(classHash, err), nil
	}
	return nil, err
}

// failedCallInfo builds the CallInfo of a reverted frame: failure flag set,
// retdata carrying the ASCII error code.
func (ep *ExecutionEntryPoint) failedCallInfo(classHash types.ClassHash, err error) *types.CallInfo {
	var hash *types.ClassHash
	if !classHash.IsZero() {
		hash = &classHash
	}
	return &types.CallInfo{
		CallerAddress:       ep.CallerAddress,
		ContractAddress:     ep.ContractAddress,
		CodeAddress:         ep.CodeAddress,
		ClassHash:           hash,
		EntryPointSelector:  ep.EntryPointSelector,
		EntryPointType:      ep.EntryPointType,
		CallType:            ep.CallType,
		Calldata:            ep.Calldata,
		Retdata:             []*felt.Felt{ErrorCodeFelt(err)},
		Failed:              true,
		AccessedStorageKeys: make(map[felt.Felt]struct{}),
	}
}

// ErrorCodeFelt maps an execution error to the short ASCII string a Cairo 1
// frame returns in its retdata.
func ErrorCodeFelt(err error) *felt.Felt {
	var code string
	switch {
	case errors.Is(err, ErrOutOfGas):
		code = "Out of gas"
	case errors.Is(err, ErrOutOfSteps):
		code = "Out of steps"
	case errors.Is(err, ErrClassHashNotFound), errors.Is(err, state.ErrClassHashNotFound):
		code = "CLASS_HASH_NOT_FOUND"
	case errors.Is(err, ErrEntryPointNotFound):
		code = "ENTRYPOINT_NOT_FOUND"
	case errors.Is(err, ErrUnsupportedAddressDomain):
		code = "Unsupported address domain"
	case errors.Is(err, state.ErrContractAddressUnavailable):
		code = "CONTRACT_ADDRESS_UNAVAILABLE"
	default:
		code = "EXECUTION_FAILURE"
	}
	return new(felt.Felt).SetBytes([]byte(code))
}

// VerifyNoCallsToOtherContracts enforces the validation-phase constraint:
// every frame in the call tree must execute on the invoked contract's
// address. The walk is DFS pre-order over the call topology.
func VerifyNoCallsToOtherContracts(info *types.CallInfo) error {
	invoked := info.ContractAddress
	for _, frame := range info.GenCallTopology() {
		if !frame.ContractAddress.Equal(invoked) {
			return ErrUnauthorizedActionOnValidate
		}
	}
	return nil
}
