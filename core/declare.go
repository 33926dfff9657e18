// declare.go implements the declare transaction state machine: it registers
// a deprecated class under its hash and, from version 1 on, runs
// __validate_declare__ on the declaring account.
package core

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/crypto"
)

var validateDeclareSelector = crypto.GetSelectorFromName("__validate_declare__")

// Declare registers a contract class in state.
type Declare struct {
	contractClass *types.DeprecatedContractClass
	classHash     types.ClassHash
	senderAddress *felt.Felt
	version       *felt.Felt
	maxFee        uint64
	signature     []*felt.Felt
	nonce         *felt.Felt
	hashValue     *felt.Felt
}

// NewDeclare computes the class hash of the declared class, derives the
// transaction hash unless one is supplied, and returns the transaction.
func NewDeclare(
	contractClass *types.DeprecatedContractClass,
	senderAddress *felt.Felt,
	maxFee uint64,
	version *felt.Felt,
	signature []*felt.Felt,
	nonce *felt.Felt,
	chainID *felt.Felt,
	hashValue *felt.Felt,
) (*Declare, error) {
	classHashFelt := types.ComputeDeprecatedClassHash(contractClass)

	if hashValue == nil {
		hashValue = crypto.CalculateDeclareTransactionHash(
			version, senderAddress, classHashFelt, maxFee, chainID, nonce)
	}

	return &Declare{
		contractClass: contractClass,
		classHash:     types.FeltToClassHash(classHashFelt),
		senderAddress: senderAddress,
		version:       version,
		maxFee:        maxFee,
		signature:     signature,
		nonce:         nonce,
		hashValue:     hashValue,
	}, nil
}

// Type implements Transaction.
func (tx *Declare) Type() types.TransactionType {
	return types.TxTypeDeclare
}

// Hash implements Transaction.
func (tx *Declare) Hash() *felt.Felt {
	return tx.hashValue
}

// ClassHash returns the hash the class is registered under.
func (tx *Declare) ClassHash() types.ClassHash {
	return tx.classHash
}

// GetStateSelector names the state this transaction touches.
func (tx *Declare) GetStateSelector(_ *vm.BlockContext) StateSelector {
	return StateSelector{
		ContractAddresses: []*felt.Felt{tx.senderAddress},
		ClassHashes:       []types.ClassHash{tx.classHash},
	}
}

func (tx *Declare) executionContext(maxSteps uint64) *types.TransactionExecutionContext {
	nonce := tx.nonce
	if nonce == nil {
		nonce = &felt.Zero
	}
	return types.NewTransactionExecutionContext(
		tx.senderAddress, tx.hashValue, tx.signature, tx.maxFee, nonce, maxSteps, tx.version)
}

// runValidateEntrypoint runs __validate_declare__([class_hash]) on the
// declaring account. Version 0 declares execute nothing.
func (tx *Declare) runValidateEntrypoint(
	st state.State,
	resources *vm.ExecutionResourcesManager,
	blockContext *vm.BlockContext,
) (*types.CallInfo, error) {
	if tx.version.IsZero() {
		return nil, nil
	}

	ep := &vm.ExecutionEntryPoint{
		ContractAddress:    tx.senderAddress,
		Calldata:           []*felt.Felt{tx.classHash.Felt()},
		EntryPointSelector: validateDeclareSelector,
		CallerAddress:      &felt.Zero,
		EntryPointType:     types.EntryPointTypeExternal,
		CallType:           types.CallTypeCall,
		InitialGas:         vm.DefaultInitialGas,
	}
	info, err := ep.Execute(st, blockContext, resources,
		tx.executionContext(blockContext.ValidateMaxNSteps), false)
	if err != nil {
		return nil, err
	}
	if err := vm.VerifyNoCallsToOtherContracts(info); err != nil {
		return nil, err
	}
	return info, nil
}

// Apply implements the concurrent stage: register the class bytes under
// their hash, then validate.
func (tx *Declare) Apply(st state.State, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error) {
	st.SetContractClass(tx.classHash.Felt(), tx.contractClass)

	resources := vm.NewExecutionResourcesManager()
	validateInfo, err := tx.runValidateEntrypoint(st, resources, blockContext)
	if err != nil {
		return nil, err
	}

	nModified, nUpdates := st.CountActualStorageChanges()
	actualResources, err := CalculateTxResources(
		resources, []*types.CallInfo{validateInfo}, tx.Type(), nModified, nUpdates, 0)
	if err != nil {
		return nil, ErrResourcesCalculation
	}

	return types.NewConcurrentStageExecutionInfo(validateInfo, nil, actualResources, tx.Type()), nil
}

// Execute implements the full state machine.
func (tx *Declare) Execute(st *state.CachedState, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error) {
	txContext := tx.executionContext(blockContext.InvokeTxMaxNSteps)
	return executeWithFee(tx, st, blockContext, txContext, tx.version, tx.nonce, tx.senderAddress)
}

var _ Transaction = (*Declare)(nil)
