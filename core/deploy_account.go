// deploy_account.go implements the deploy-account transaction state
// machine: deterministic address derivation, constructor execution, and the
// __validate_deploy__ run on the freshly deployed account.
package core

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/crypto"
)

var (
	constructorSelector    = crypto.GetSelectorFromName("__constructor__")
	validateDeploySelector = crypto.GetSelectorFromName("__validate_deploy__")
)

// DeployAccount deploys an account contract at its deterministic address.
type DeployAccount struct {
	contractAddress     *felt.Felt
	contractAddressSalt *felt.Felt
	classHash           types.ClassHash
	constructorCalldata []*felt.Felt
	version             *felt.Felt
	nonce               *felt.Felt
	maxFee              uint64
	signature           []*felt.Felt
	hashValue           *felt.Felt
}

// NewDeployAccount derives the contract address from (salt, class hash,
// calldata, deployer = 0), derives the transaction hash unless one is
// supplied, and returns the transaction.
func NewDeployAccount(
	classHash types.ClassHash,
	maxFee uint64,
	version *felt.Felt,
	nonce *felt.Felt,
	constructorCalldata []*felt.Felt,
	signature []*felt.Felt,
	contractAddressSalt *felt.Felt,
	chainID *felt.Felt,
	hashValue *felt.Felt,
) (*DeployAccount, error) {
	classHashFelt := classHash.Felt()
	contractAddress := crypto.CalculateContractAddress(
		contractAddressSalt, classHashFelt, constructorCalldata, &felt.Zero)

	if hashValue == nil {
		hashValue = crypto.CalculateDeployAccountTransactionHash(
			version, contractAddress, classHashFelt, constructorCalldata,
			maxFee, nonce, contractAddressSalt, chainID)
	}

	return &DeployAccount{
		contractAddress:     contractAddress,
		contractAddressSalt: contractAddressSalt,
		classHash:           classHash,
		constructorCalldata: constructorCalldata,
		version:             version,
		nonce:               nonce,
		maxFee:              maxFee,
		signature:           signature,
		hashValue:           hashValue,
	}, nil
}

// Type implements Transaction.
func (tx *DeployAccount) Type() types.TransactionType {
	return types.TxTypeDeployAccount
}

// Hash implements Transaction.
func (tx *DeployAccount) Hash() *felt.Felt {
	return tx.hashValue
}

// ContractAddress returns the derived account address.
func (tx *DeployAccount) ContractAddress() *felt.Felt {
	return tx.contractAddress
}

// ClassHash returns the deployed class hash.
func (tx *DeployAccount) ClassHash() types.ClassHash {
	return tx.classHash
}

// GetStateSelector names the state this transaction touches.
func (tx *DeployAccount) GetStateSelector(_ *vm.BlockContext) StateSelector {
	return StateSelector{
		ContractAddresses: []*felt.Felt{tx.contractAddress},
		ClassHashes:       []types.ClassHash{tx.classHash},
	}
}

func (tx *DeployAccount) executionContext(maxSteps uint64) *types.TransactionExecutionContext {
	return types.NewTransactionExecutionContext(
		tx.contractAddress, tx.hashValue, tx.signature, tx.maxFee, tx.nonce, maxSteps, tx.version)
}

// constructorIsEmpty reports whether the class has no constructor entry.
func constructorIsEmpty(class types.CompiledClass) bool {
	return len(class.EntryPoints(types.EntryPointTypeConstructor)) == 0
}

// handleConstructor short-circuits constructor-less classes to an empty
// constructor frame (rejecting stray calldata) and runs __constructor__
// otherwise.
func (tx *DeployAccount) handleConstructor(
	class types.CompiledClass,
	st state.State,
	blockContext *vm.BlockContext,
	resources *vm.ExecutionResourcesManager,
) (*types.CallInfo, error) {
	if constructorIsEmpty(class) {
		if len(tx.constructorCalldata) != 0 {
			return nil, ErrEmptyConstructorCalldata
		}
		return types.EmptyConstructorCall(tx.contractAddress, &felt.Zero, &tx.classHash), nil
	}
	return tx.runConstructorEntrypoint(st, blockContext, resources)
}

func (tx *DeployAccount) runConstructorEntrypoint(
	st state.State,
	blockContext *vm.BlockContext,
	resources *vm.ExecutionResourcesManager,
) (*types.CallInfo, error) {
	ep := &vm.ExecutionEntryPoint{
		ContractAddress:    tx.contractAddress,
		Calldata:           tx.constructorCalldata,
		EntryPointSelector: constructorSelector,
		CallerAddress:      &felt.Zero,
		EntryPointType:     types.EntryPointTypeConstructor,
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

// runValidateEntrypoint runs __validate_deploy__(class_hash, salt,
// calldata...) on the deployed account. Version 0 skips it.
func (tx *DeployAccount) runValidateEntrypoint(
	st state.State,
	resources *vm.ExecutionResourcesManager,
	blockContext *vm.BlockContext,
) (*types.CallInfo, error) {
	if tx.version.IsZero() {
		return nil, nil
	}

	calldata := make([]*felt.Felt, 0, 2+len(tx.constructorCalldata))
	calldata = append(calldata, tx.classHash.Felt(), tx.contractAddressSalt)
	calldata = append(calldata, tx.constructorCalldata...)

	ep := &vm.ExecutionEntryPoint{
		ContractAddress:    tx.contractAddress,
		Calldata:           calldata,
		EntryPointSelector: validateDeploySelector,
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

// Apply implements the concurrent stage: deploy, constructor, validate,
// resource accounting.
func (tx *DeployAccount) Apply(st state.State, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error) {
	class, err := st.GetContractClass(tx.classHash.Felt())
	if err != nil {
		return nil, err
	}

	if err := st.DeployContract(tx.contractAddress, tx.classHash); err != nil {
		return nil, err
	}

	resources := vm.NewExecutionResourcesManager()
	constructorInfo, err := tx.handleConstructor(class, st, blockContext, resources)
	if err != nil {
		return nil, err
	}

	validateInfo, err := tx.runValidateEntrypoint(st, resources, blockContext)
	if err != nil {
		return nil, err
	}

	nModified, nUpdates := st.CountActualStorageChanges()
	actualResources, err := CalculateTxResources(
		resources, []*types.CallInfo{constructorInfo, validateInfo}, tx.Type(), nModified, nUpdates, 0)
	if err != nil {
		return nil, ErrResourcesCalculation
	}

	return types.NewConcurrentStageExecutionInfo(validateInfo, constructorInfo, actualResources, tx.Type()), nil
}

// Execute implements the full state machine.
func (tx *DeployAccount) Execute(st *state.CachedState, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error) {
	txContext := tx.executionContext(blockContext.InvokeTxMaxNSteps)
	return executeWithFee(tx, st, blockContext, txContext, tx.version, tx.nonce, tx.contractAddress)
}

var _ Transaction = (*DeployAccount)(nil)
