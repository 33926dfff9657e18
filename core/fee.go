// fee.go translates resource usage into a fee and performs the fee
// transfer. The fee is a weighted sum over the actual-resources map; weights
// come from the block context, and unknown resource names contribute zero.
package core

import (
	"fmt"
	"math"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/holiman/uint256"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/crypto"
	"github.com/starkexec/starkexec/log"
)

var transferSelector = crypto.GetSelectorFromName("transfer")

var coreLog = log.Default().Module("core")

// gasPerMemoryWord prices one 32-byte word published on L1.
const gasPerMemoryWord = 100

// Per-message overhead words on the L1 message segment: from, to,
// payload length.
const messageHeaderWords = 3

// Fixed step overhead charged per transaction type, covering the OS
// bookkeeping around the entry points.
var txTypeStepOverhead = map[types.TransactionType]uint64{
	types.TxTypeDeclare:        2703,
	types.TxTypeDeployAccount:  3612,
	types.TxTypeInvokeFunction: 3363,
	types.TxTypeL1Handler:      1068,
}

// collectL2ToL1Messages walks the call trees and gathers every sent
// message.
func collectL2ToL1Messages(callInfos []*types.CallInfo) []types.OrderedL2ToL1Message {
	var out []types.OrderedL2ToL1Message
	for _, root := range callInfos {
		if root == nil {
			continue
		}
		for _, frame := range root.GenCallTopology() {
			out = append(out, frame.L2ToL1Messages...)
		}
	}
	return out
}

// CalculateTxGasUsage converts the transaction's L1 footprint into gas: the
// message segment plus the on-chain state-diff data (two words per modified
// contract, two per storage update).
func CalculateTxGasUsage(messages []types.OrderedL2ToL1Message, nModifiedContracts, nStorageUpdates, l1HandlerPayloadSize int) uint64 {
	segment := 0
	for _, msg := range messages {
		segment += messageHeaderWords + len(msg.Payload)
	}
	if l1HandlerPayloadSize > 0 {
		segment += messageHeaderWords + l1HandlerPayloadSize
	}
	onchainData := 2*nModifiedContracts + 2*nStorageUpdates
	return uint64(segment+onchainData) * gasPerMemoryWord
}

// CalculateTxResources assembles the actual-resources map fed into fee
// computation: l1 gas usage, merged VM steps (including syscall step
// equivalents and the per-type overhead), and every builtin counter.
func CalculateTxResources(
	resources *vm.ExecutionResourcesManager,
	callInfos []*types.CallInfo,
	txType types.TransactionType,
	nModifiedContracts, nStorageUpdates int,
	l1HandlerPayloadSize int,
) (map[string]uint64, error) {
	vmResources := resources.VMResources()

	actual := make(map[string]uint64, 3+len(vmResources.BuiltinInstanceCounter))
	actual["l1_gas_usage"] = CalculateTxGasUsage(
		collectL2ToL1Messages(callInfos), nModifiedContracts, nStorageUpdates, l1HandlerPayloadSize)
	actual["n_steps"] = vmResources.NSteps + vmResources.NMemoryHoles +
		resources.TotalSyscallSteps() + txTypeStepOverhead[txType]
	for name, count := range vmResources.BuiltinInstanceCounter {
		actual[name] = count
	}
	return actual, nil
}

// CalculateTxFee prices the actual resources:
//
//	fee = ceil(sum_r weights[r] * usage[r]) * gas_price
func CalculateTxFee(actualResources map[string]uint64, gasPrice uint64, blockContext *vm.BlockContext) (uint64, error) {
	var total float64
	for name, usage := range actualResources {
		total += blockContext.CairoResourceFeeWeights[name] * float64(usage)
	}

	units := new(uint256.Int).SetUint64(uint64(math.Ceil(total)))
	fee := new(uint256.Int).Mul(units, new(uint256.Int).SetUint64(gasPrice))
	if !fee.IsUint64() {
		return 0, fmt.Errorf("%w: fee overflows", ErrResourcesCalculation)
	}
	return fee.Uint64(), nil
}

// ExecuteFeeTransfer invokes transfer(sequencer, fee) on the fee-token
// contract on behalf of the paying account. Any failure of the transfer
// call fails the transaction with ErrFeeTransferFailure.
func ExecuteFeeTransfer(
	st state.State,
	blockContext *vm.BlockContext,
	txContext *types.TransactionExecutionContext,
	actualFee uint64,
) (*types.CallInfo, error) {
	if actualFee > txContext.MaxFee {
		return nil, fmt.Errorf("%w: actual %d, max %d", ErrActualFeeExceededMaxFee, actualFee, txContext.MaxFee)
	}

	// transfer(recipient, amount_low, amount_high)
	calldata := []*felt.Felt{
		blockContext.SequencerAddress,
		new(felt.Felt).SetUint64(actualFee),
		&felt.Zero,
	}
	ep := &vm.ExecutionEntryPoint{
		ContractAddress:    blockContext.FeeTokenAddress,
		Calldata:           calldata,
		EntryPointSelector: transferSelector,
		CallerAddress:      txContext.AccountContractAddress,
		EntryPointType:     types.EntryPointTypeExternal,
		CallType:           types.CallTypeCall,
		InitialGas:         vm.DefaultInitialGas,
	}

	resources := vm.NewExecutionResourcesManager()
	info, err := ep.Execute(st, blockContext, resources, txContext, false)
	if err != nil {
		coreLog.Warn("fee transfer failed", "account", txContext.AccountContractAddress.String(), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrFeeTransferFailure, err)
	}
	if info.Failed {
		coreLog.Warn("fee transfer reverted", "account", txContext.AccountContractAddress.String())
		return nil, ErrFeeTransferFailure
	}
	return info, nil
}
