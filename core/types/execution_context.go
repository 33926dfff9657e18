// execution_context.go defines the per-transaction execution context and the
// structured execution report returned to the caller.
package types

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
)

// TransactionType enumerates the transaction kinds this core executes.
type TransactionType uint8

const (
	TxTypeDeclare TransactionType = iota
	TxTypeDeployAccount
	TxTypeInvokeFunction
	TxTypeL1Handler
)

// String returns the canonical transaction kind name.
func (t TransactionType) String() string {
	switch t {
	case TxTypeDeclare:
		return "DECLARE"
	case TxTypeDeployAccount:
		return "DEPLOY_ACCOUNT"
	case TxTypeInvokeFunction:
		return "INVOKE_FUNCTION"
	case TxTypeL1Handler:
		return "L1_HANDLER"
	default:
		return fmt.Sprintf("TX_TYPE(%d)", uint8(t))
	}
}

// TransactionExecutionContext is the immutable per-transaction record handed
// down the call stack. The event and message counters are the only mutable
// fields; they implement the transaction-global emission ordering.
type TransactionExecutionContext struct {
	AccountContractAddress *felt.Felt
	TransactionHash        *felt.Felt
	Signature              []*felt.Felt
	MaxFee                 uint64
	Nonce                  *felt.Felt
	MaxSteps               uint64
	Version                *felt.Felt

	nEmittedEvents uint64
	nSentMessages  uint64
}

// NewTransactionExecutionContext builds a context for one transaction run.
func NewTransactionExecutionContext(
	account *felt.Felt,
	txHash *felt.Felt,
	signature []*felt.Felt,
	maxFee uint64,
	nonce *felt.Felt,
	maxSteps uint64,
	version *felt.Felt,
) *TransactionExecutionContext {
	return &TransactionExecutionContext{
		AccountContractAddress: account,
		TransactionHash:        txHash,
		Signature:              signature,
		MaxFee:                 maxFee,
		Nonce:                  nonce,
		MaxSteps:               maxSteps,
		Version:                version,
	}
}

// NextEventOrder returns the next transaction-global event order value.
func (ctx *TransactionExecutionContext) NextEventOrder() uint64 {
	order := ctx.nEmittedEvents
	ctx.nEmittedEvents++
	return order
}

// NextMessageOrder returns the next transaction-global L2-to-L1 message
// order value.
func (ctx *TransactionExecutionContext) NextMessageOrder() uint64 {
	order := ctx.nSentMessages
	ctx.nSentMessages++
	return order
}

// TransactionExecutionInfo is the structured report of one transaction:
// the validate and execute (or constructor) call trees, the fee-transfer
// call, and the resource/fee accounting.
type TransactionExecutionInfo struct {
	ValidateInfo    *CallInfo
	CallInfo        *CallInfo
	FeeTransferInfo *CallInfo
	ActualFee       uint64
	ActualResources map[string]uint64
	TxType          TransactionType
}

// NewConcurrentStageExecutionInfo assembles the report of the concurrent
// (apply) stage, before any fee has been charged.
func NewConcurrentStageExecutionInfo(
	validateInfo *CallInfo,
	callInfo *CallInfo,
	actualResources map[string]uint64,
	txType TransactionType,
) *TransactionExecutionInfo {
	return &TransactionExecutionInfo{
		ValidateInfo:    validateInfo,
		CallInfo:        callInfo,
		ActualResources: actualResources,
		TxType:          txType,
	}
}

// WithFee completes a concurrent-stage report with the sequential stage's
// fee outcome.
func (info *TransactionExecutionInfo) WithFee(actualFee uint64, feeTransferInfo *CallInfo) *TransactionExecutionInfo {
	out := *info
	out.ActualFee = actualFee
	out.FeeTransferInfo = feeTransferInfo
	return &out
}

// NonOptionalCalls returns the validate, execute and fee-transfer call
// trees that are present, in execution order.
func (info *TransactionExecutionInfo) NonOptionalCalls() []*CallInfo {
	calls := make([]*CallInfo, 0, 3)
	for _, ci := range []*CallInfo{info.ValidateInfo, info.CallInfo, info.FeeTransferInfo} {
		if ci != nil {
			calls = append(calls, ci)
		}
	}
	return calls
}
