// syscall_handler.go implements the host side of every syscall. One handler
// instance serves one running call frame: it owns the frame's view of the
// cached state, the block context, and the CallInfo under construction.
// Nested calls reenter the entry-point executor, which allocates another
// handler; frames form a reentrant stack, never a shared graph.
package vm

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/crypto"
	"github.com/starkexec/starkexec/log"
)

// syscallGasCosts charges Cairo 1 frames per syscall. Cairo 0 frames run
// without gas accounting.
var syscallGasCosts = map[string]uint64{
	"storage_read":            10_000,
	"storage_write":           10_000,
	"emit_event":              10_000,
	"send_message_to_l1":      14_000,
	"call_contract":           86_000,
	"library_call":            87_000,
	"library_call_l1_handler": 87_000,
	"delegate_call":           87_000,
	"deploy":                  130_000,
	"replace_class":           10_000,
	"get_block_number":        2_000,
	"get_block_timestamp":     2_000,
	"get_sequencer_address":   2_000,
	"get_tx_info":             2_000,
	"get_tx_signature":        2_000,
	"get_caller_address":      2_000,
	"get_contract_address":    2_000,
}

var vmLog = log.Default().Module("vm")

// SyscallHandler bridges one frame's program to the host. It records the
// frame's events, messages, storage footprint and internal calls, which the
// executor folds into the frame's CallInfo.
type SyscallHandler struct {
	state        state.State
	blockContext *BlockContext
	txContext    *types.TransactionExecutionContext
	resources    *ExecutionResourcesManager

	callerAddress   *felt.Felt
	contractAddress *felt.Felt
	storage         *state.ContractStorageState

	events        []types.OrderedEvent
	messages      []types.OrderedL2ToL1Message
	internalCalls []*types.CallInfo

	supportReverted bool

	// gasAccounting is on for Cairo 1 frames; every syscall deducts from
	// remainingGas before executing.
	gasAccounting bool
	remainingGas  uint64
}

// NewSyscallHandler builds the handler for one frame.
func NewSyscallHandler(
	st state.State,
	blockContext *BlockContext,
	txContext *types.TransactionExecutionContext,
	resources *ExecutionResourcesManager,
	callerAddress, contractAddress *felt.Felt,
	supportReverted bool,
	gasAccounting bool,
	initialGas uint64,
) *SyscallHandler {
	return &SyscallHandler{
		state:           st,
		blockContext:    blockContext,
		txContext:       txContext,
		resources:       resources,
		callerAddress:   callerAddress,
		contractAddress: contractAddress,
		storage:         state.NewContractStorageState(st, contractAddress),
		supportReverted: supportReverted,
		gasAccounting:   gasAccounting,
		remainingGas:    initialGas,
	}
}

// RemainingGas returns the gas left after syscall charges.
func (h *SyscallHandler) RemainingGas() uint64 {
	return h.remainingGas
}

// Syscall is the raw entry point invoked by the sub-VM: it decodes the
// request at the syscall pointer, dispatches it, and returns the encoded
// response words together with the number of request words consumed.
func (h *SyscallHandler) Syscall(words []*felt.Felt) ([]*felt.Felt, int, error) {
	req, consumed, err := DecodeSyscallRequest(words)
	if err != nil {
		return nil, 0, err
	}
	resp, err := h.Dispatch(req)
	if err != nil {
		return nil, consumed, err
	}
	return resp.Encode(), consumed, nil
}

// Dispatch executes one typed syscall request. Counting and gas accounting
// happen here so both framings share one implementation.
func (h *SyscallHandler) Dispatch(req SyscallRequest) (SyscallResponse, error) {
	name := req.SyscallName()
	h.resources.IncrementSyscallCounter(name)

	if h.gasAccounting {
		cost := syscallGasCosts[name]
		if h.remainingGas < cost {
			h.remainingGas = 0
			return nil, ErrOutOfGas
		}
		h.remainingGas -= cost
	}

	switch r := req.(type) {
	case StorageReadRequest:
		return h.storageRead(r)
	case StorageWriteRequest:
		return h.storageWrite(r)
	case EmitEventRequest:
		return h.emitEvent(r)
	case SendMessageToL1Request:
		return h.sendMessageToL1(r)
	case CallContractRequest:
		return h.callContract(r)
	case LibraryCallRequest:
		return h.libraryCall(r)
	case DelegateCallRequest:
		return h.delegateCall(r)
	case DeployRequest:
		return h.deploy(r)
	case ReplaceClassRequest:
		return h.replaceClass(r)
	case GetBlockNumberRequest:
		return SingleFeltResponse(new(felt.Felt).SetUint64(h.blockContext.BlockNumber)), nil
	case GetBlockTimestampRequest:
		return SingleFeltResponse(new(felt.Felt).SetUint64(h.blockContext.BlockTimestamp)), nil
	case GetSequencerAddressRequest:
		return SingleFeltResponse(h.blockContext.SequencerAddress), nil
	case GetTxInfoRequest:
		return h.txInfo(), nil
	case GetTxSignatureRequest:
		return ArrayResponse(h.txContext.Signature), nil
	case GetCallerAddressRequest:
		return SingleFeltResponse(h.callerAddress), nil
	case GetContractAddressRequest:
		return SingleFeltResponse(h.contractAddress), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownSyscall, req)
	}
}

func checkAddressDomain(domain *felt.Felt) error {
	if domain != nil && !domain.IsZero() {
		return ErrUnsupportedAddressDomain
	}
	return nil
}

func (h *SyscallHandler) storageRead(r StorageReadRequest) (SyscallResponse, error) {
	if err := checkAddressDomain(r.AddressDomain); err != nil {
		return nil, err
	}
	value, err := h.storage.Read(r.Key)
	if err != nil {
		return nil, err
	}
	return SingleFeltResponse(value), nil
}

func (h *SyscallHandler) storageWrite(r StorageWriteRequest) (SyscallResponse, error) {
	if err := checkAddressDomain(r.AddressDomain); err != nil {
		return nil, err
	}
	h.storage.Write(r.Key, r.Value)
	return EmptyResponse(), nil
}

func (h *SyscallHandler) emitEvent(r EmitEventRequest) (SyscallResponse, error) {
	h.events = append(h.events, types.OrderedEvent{
		Order: h.txContext.NextEventOrder(),
		Keys:  r.Keys,
		Data:  r.Data,
	})
	return EmptyResponse(), nil
}

func (h *SyscallHandler) sendMessageToL1(r SendMessageToL1Request) (SyscallResponse, error) {
	h.messages = append(h.messages, types.OrderedL2ToL1Message{
		Order:     h.txContext.NextMessageOrder(),
		ToAddress: r.ToAddress,
		Payload:   r.Payload,
	})
	return EmptyResponse(), nil
}

// childGas is the budget handed to a nested frame: the remaining gas under
// Cairo 1 accounting, else a fresh default budget.
func (h *SyscallHandler) childGas() uint64 {
	if h.gasAccounting {
		return h.remainingGas
	}
	return DefaultInitialGas
}

// execute runs a nested entry point and appends its CallInfo to the frame's
// internal calls.
func (h *SyscallHandler) execute(ep *ExecutionEntryPoint) (*types.CallInfo, error) {
	info, err := ep.Execute(h.state, h.blockContext, h.resources, h.txContext, h.supportReverted)
	if err != nil {
		return nil, err
	}
	h.internalCalls = append(h.internalCalls, info)
	return info, nil
}

func (h *SyscallHandler) callContract(r CallContractRequest) (SyscallResponse, error) {
	info, err := h.execute(&ExecutionEntryPoint{
		ContractAddress:    r.ContractAddress,
		Calldata:           r.Calldata,
		EntryPointSelector: r.Selector,
		CallerAddress:      h.contractAddress,
		EntryPointType:     types.EntryPointTypeExternal,
		CallType:           types.CallTypeCall,
		InitialGas:         h.childGas(),
	})
	if err != nil {
		return nil, err
	}
	h.consumeChildGas(info)
	return CallResponse{Retdata: info.Retdata}, nil
}

func (h *SyscallHandler) libraryCall(r LibraryCallRequest) (SyscallResponse, error) {
	entryPointType := types.EntryPointTypeExternal
	if r.L1Handler {
		entryPointType = types.EntryPointTypeL1Handler
	}
	classHash := types.FeltToClassHash(r.ClassHash)
	info, err := h.execute(&ExecutionEntryPoint{
		ContractAddress:    h.contractAddress,
		Calldata:           r.Calldata,
		EntryPointSelector: r.Selector,
		CallerAddress:      h.callerAddress,
		EntryPointType:     entryPointType,
		CallType:           types.CallTypeDelegate,
		ClassHash:          &classHash,
		CodeAddress:        r.ClassHash,
		InitialGas:         h.childGas(),
	})
	if err != nil {
		return nil, err
	}
	h.consumeChildGas(info)
	return CallResponse{Retdata: info.Retdata}, nil
}

// delegateCall is the Cairo 0 ancestor of library_call: the code is
// resolved through another contract's address but runs in this frame's
// context.
func (h *SyscallHandler) delegateCall(r DelegateCallRequest) (SyscallResponse, error) {
	classHash, err := h.state.GetClassHashAt(r.CodeAddress)
	if err != nil {
		return nil, err
	}
	if classHash.IsZero() {
		return nil, ErrClassHashNotFound
	}
	info, err := h.execute(&ExecutionEntryPoint{
		ContractAddress:    h.contractAddress,
		Calldata:           r.Calldata,
		EntryPointSelector: r.Selector,
		CallerAddress:      h.callerAddress,
		EntryPointType:     types.EntryPointTypeExternal,
		CallType:           types.CallTypeDelegate,
		ClassHash:          &classHash,
		CodeAddress:        r.CodeAddress,
		InitialGas:         h.childGas(),
	})
	if err != nil {
		return nil, err
	}
	h.consumeChildGas(info)
	return CallResponse{Retdata: info.Retdata}, nil
}

func (h *SyscallHandler) deploy(r DeployRequest) (SyscallResponse, error) {
	deployer := h.contractAddress
	if r.DeployFromZero {
		deployer = &felt.Zero
	}
	address := crypto.CalculateContractAddress(r.Salt, r.ClassHash, r.Calldata, deployer)
	classHash := types.FeltToClassHash(r.ClassHash)

	if err := h.state.DeployContract(address, classHash); err != nil {
		return nil, err
	}

	class, err := h.state.GetContractClass(r.ClassHash)
	if err != nil {
		if errors.Is(err, state.ErrClassHashNotFound) {
			return nil, ErrClassHashNotFound
		}
		return nil, err
	}

	// Constructor-less classes short-circuit to an empty constructor frame;
	// calldata for them must be empty.
	if len(class.EntryPoints(types.EntryPointTypeConstructor)) == 0 {
		if len(r.Calldata) != 0 {
			return nil, fmt.Errorf("%w: constructor", ErrEntryPointNotFound)
		}
		h.internalCalls = append(h.internalCalls,
			types.EmptyConstructorCall(address, h.contractAddress, &classHash))
		return DeployResponse{ContractAddress: address}, nil
	}

	info, err := h.execute(&ExecutionEntryPoint{
		ContractAddress:    address,
		Calldata:           r.Calldata,
		EntryPointSelector: constructorSelector,
		CallerAddress:      h.contractAddress,
		EntryPointType:     types.EntryPointTypeConstructor,
		CallType:           types.CallTypeCall,
		InitialGas:         h.childGas(),
	})
	if err != nil {
		return nil, err
	}
	h.consumeChildGas(info)

	vmLog.Debug("deployed contract", "address", address.String(), "class", classHash.Hex())
	return DeployResponse{ContractAddress: address, Retdata: info.Retdata}, nil
}

func (h *SyscallHandler) replaceClass(r ReplaceClassRequest) (SyscallResponse, error) {
	if _, err := h.state.GetContractClass(r.ClassHash); err != nil {
		if errors.Is(err, state.ErrClassHashNotFound) {
			return nil, ErrClassHashNotFound
		}
		return nil, err
	}
	h.state.SetClassHashAt(h.contractAddress, types.FeltToClassHash(r.ClassHash))
	return EmptyResponse(), nil
}

func (h *SyscallHandler) txInfo() SyscallResponse {
	return TxInfoResponse{
		Version:         h.txContext.Version,
		AccountAddress:  h.txContext.AccountContractAddress,
		MaxFee:          h.txContext.MaxFee,
		Signature:       h.txContext.Signature,
		TransactionHash: h.txContext.TransactionHash,
		ChainID:         h.blockContext.ChainID,
		Nonce:           h.txContext.Nonce,
	}
}

// consumeChildGas deducts what a nested frame consumed from this frame's
// budget.
func (h *SyscallHandler) consumeChildGas(info *types.CallInfo) {
	if !h.gasAccounting {
		return
	}
	if info.GasConsumed >= h.remainingGas {
		h.remainingGas = 0
		return
	}
	h.remainingGas -= info.GasConsumed
}
