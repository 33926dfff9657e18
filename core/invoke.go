// invoke.go implements the invoke-function transaction state machine. Two
// regimes exist, keyed by version: version 0 carries a literal selector and
// no nonce; version >= 1 carries a nonce, hashes a zero selector field, and
// runs __validate__ before __execute__.
package core

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/crypto"
)

var (
	executeSelector  = crypto.GetSelectorFromName("__execute__")
	validateSelector = crypto.GetSelectorFromName("__validate__")
)

// InvokeFunction is an external function invocation on an account or plain
// contract.
type InvokeFunction struct {
	contractAddress    *felt.Felt
	entryPointSelector *felt.Felt
	calldata           []*felt.Felt
	version            *felt.Felt
	maxFee             uint64
	signature          []*felt.Felt
	nonce              *felt.Felt // nil when absent (version 0)
	hashValue          *felt.Felt
}

// NewInvokeFunction validates the version/nonce regime, derives the
// transaction hash (unless one is supplied), and returns the transaction.
func NewInvokeFunction(
	contractAddress *felt.Felt,
	entryPointSelector *felt.Felt,
	maxFee uint64,
	version *felt.Felt,
	calldata []*felt.Felt,
	signature []*felt.Felt,
	chainID *felt.Felt,
	nonce *felt.Felt,
	hashValue *felt.Felt,
) (*InvokeFunction, error) {
	selectorField, additionalData, err := preprocessInvokeFunctionFields(entryPointSelector, nonce, version)
	if err != nil {
		return nil, err
	}
	if hashValue == nil {
		hashValue = crypto.CalculateInvokeTransactionHash(
			version, contractAddress, selectorField, calldata, maxFee, chainID, additionalData)
	}
	return &InvokeFunction{
		contractAddress:    contractAddress,
		entryPointSelector: entryPointSelector,
		calldata:           calldata,
		version:            version,
		maxFee:             maxFee,
		signature:          signature,
		nonce:              nonce,
		hashValue:          hashValue,
	}, nil
}

// preprocessInvokeFunctionFields checks the version/nonce pairing and
// derives the selector field and additional hash data. Version 0 rejects a
// present nonce; version >= 1 rejects an absent one.
func preprocessInvokeFunctionFields(
	entryPointSelector *felt.Felt,
	nonce *felt.Felt,
	version *felt.Felt,
) (*felt.Felt, []*felt.Felt, error) {
	if version.IsZero() {
		if nonce != nil {
			return nil, nil, ErrInvokeFunctionZeroHasNonce
		}
		return entryPointSelector, nil, nil
	}
	if nonce == nil {
		return nil, nil, ErrInvokeFunctionNonZeroMissingNonce
	}
	return &felt.Zero, []*felt.Felt{nonce}, nil
}

// Type implements Transaction.
func (tx *InvokeFunction) Type() types.TransactionType {
	return types.TxTypeInvokeFunction
}

// Hash implements Transaction.
func (tx *InvokeFunction) Hash() *felt.Felt {
	return tx.hashValue
}

// ContractAddress returns the invoked contract.
func (tx *InvokeFunction) ContractAddress() *felt.Felt {
	return tx.contractAddress
}

// GetStateSelector names the state this transaction touches.
func (tx *InvokeFunction) GetStateSelector(_ *vm.BlockContext) StateSelector {
	return StateSelector{ContractAddresses: []*felt.Felt{tx.contractAddress}}
}

func (tx *InvokeFunction) executionContext(maxSteps uint64) *types.TransactionExecutionContext {
	nonce := tx.nonce
	if tx.version.IsZero() {
		nonce = &felt.Zero
	}
	return types.NewTransactionExecutionContext(
		tx.contractAddress, tx.hashValue, tx.signature, tx.maxFee, nonce, maxSteps, tx.version)
}

// runValidateEntrypoint runs __validate__ on the invoked account and
// enforces the validation-phase contract boundary. Version 0 invokes and
// non-standard selectors skip validation.
func (tx *InvokeFunction) runValidateEntrypoint(
	st state.State,
	resources *vm.ExecutionResourcesManager,
	blockContext *vm.BlockContext,
	txContext *types.TransactionExecutionContext,
) (*types.CallInfo, error) {
	if tx.version.IsZero() || !tx.entryPointSelector.Equal(executeSelector) {
		return nil, nil
	}

	ep := &vm.ExecutionEntryPoint{
		ContractAddress:    tx.contractAddress,
		Calldata:           tx.calldata,
		EntryPointSelector: validateSelector,
		CallerAddress:      &felt.Zero,
		EntryPointType:     types.EntryPointTypeExternal,
		CallType:           types.CallTypeCall,
		InitialGas:         vm.DefaultInitialGas,
	}
	info, err := ep.Execute(st, blockContext, resources, txContext, false)
	if err != nil {
		return nil, err
	}
	if err := vm.VerifyNoCallsToOtherContracts(info); err != nil {
		return nil, err
	}
	return info, nil
}

// runExecuteEntrypoint runs the invoked selector itself.
func (tx *InvokeFunction) runExecuteEntrypoint(
	st state.State,
	resources *vm.ExecutionResourcesManager,
	blockContext *vm.BlockContext,
	txContext *types.TransactionExecutionContext,
) (*types.CallInfo, error) {
	ep := &vm.ExecutionEntryPoint{
		ContractAddress:    tx.contractAddress,
		Calldata:           tx.calldata,
		EntryPointSelector: tx.entryPointSelector,
		CallerAddress:      &felt.Zero,
		EntryPointType:     types.EntryPointTypeExternal,
		CallType:           types.CallTypeCall,
		InitialGas:         vm.DefaultInitialGas,
	}
	return ep.Execute(st, blockContext, resources, txContext, false)
}

// Apply implements the concurrent stage: validate (when applicable), then
// execute, then account the resources. No fee is charged here.
func (tx *InvokeFunction) Apply(st state.State, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error) {
	resources := vm.NewExecutionResourcesManager()

	validateCtx := tx.executionContext(blockContext.ValidateMaxNSteps)
	validateInfo, err := tx.runValidateEntrypoint(st, resources, blockContext, validateCtx)
	if err != nil {
		return nil, err
	}

	executeCtx := tx.executionContext(blockContext.InvokeTxMaxNSteps)
	callInfo, err := tx.runExecuteEntrypoint(st, resources, blockContext, executeCtx)
	if err != nil {
		return nil, err
	}

	nModified, nUpdates := st.CountActualStorageChanges()
	actualResources, err := CalculateTxResources(
		resources, []*types.CallInfo{validateInfo, callInfo}, tx.Type(), nModified, nUpdates, 0)
	if err != nil {
		return nil, ErrResourcesCalculation
	}

	return types.NewConcurrentStageExecutionInfo(validateInfo, callInfo, actualResources, tx.Type()), nil
}

// Execute implements the full state machine.
func (tx *InvokeFunction) Execute(st *state.CachedState, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error) {
	txContext := tx.executionContext(blockContext.InvokeTxMaxNSteps)
	return executeWithFee(tx, st, blockContext, txContext, tx.version, tx.nonce, tx.contractAddress)
}

var _ Transaction = (*InvokeFunction)(nil)
