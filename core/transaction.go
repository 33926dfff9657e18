// transaction.go defines the Transaction interface the three state machines
// implement, and the shared execute skeleton:
//
//	execute := apply -> handle_nonce -> charge_fee -> assemble_info
//
// apply is the concurrent stage: it runs on a cloned overlay and never
// charges a fee, so applies of distinct transactions can be scheduled
// speculatively. The sequential stage (nonce + fee + commit) follows.
package core

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/metrics"
)

// Transaction is one executable transaction.
type Transaction interface {
	// Type returns the transaction kind.
	Type() types.TransactionType
	// Hash returns the transaction hash.
	Hash() *felt.Felt
	// Apply runs the concurrent stage against st and returns the
	// concurrent-stage execution info. It never charges a fee.
	Apply(st state.State, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error)
	// Execute runs the full state machine against the overlay: apply on a
	// clone, nonce handling, fee charge, commit. A failed apply or nonce
	// check leaves st untouched; a failed fee transfer keeps the applied
	// writes and the nonce bump in place.
	Execute(st *state.CachedState, blockContext *vm.BlockContext) (*types.TransactionExecutionInfo, error)
}

// StateSelector names the state a transaction will touch, for the
// concurrent scheduler.
type StateSelector struct {
	ContractAddresses []*felt.Felt
	ClassHashes       []types.ClassHash
}

// handleNonce is the version >= 1 nonce discipline shared by the three
// state machines: read the current nonce, reject a mismatch, then bump.
// Version 0 transactions skip it entirely.
func handleNonce(st state.State, version *felt.Felt, nonce *felt.Felt, address *felt.Felt) error {
	if version.IsZero() {
		return nil
	}
	if nonce == nil {
		return ErrMissingNonce
	}
	current, err := st.GetNonceAt(address)
	if err != nil {
		return err
	}
	if !current.Equal(nonce) {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidTransactionNonce, current, nonce)
	}
	return st.IncrementNonce(address)
}

// executeWithFee is the sequential-stage scaffolding shared by the three
// executors. It clones the overlay, runs apply and nonce handling against
// the clone, commits, then charges the fee against the committed state.
func executeWithFee(
	tx Transaction,
	st *state.CachedState,
	blockContext *vm.BlockContext,
	txContext *types.TransactionExecutionContext,
	version *felt.Felt,
	nonce *felt.Felt,
	senderAddress *felt.Felt,
) (*types.TransactionExecutionInfo, error) {
	child := st.Clone()

	concurrent, err := tx.Apply(child, blockContext)
	if err != nil {
		return nil, err
	}
	if err := handleNonce(child, version, nonce, senderAddress); err != nil {
		return nil, err
	}

	// The concurrent stage and the nonce bump are now final, whatever the
	// fee flow does.
	st.Apply(child)

	feeInfo, actualFee, err := chargeFee(tx, st, blockContext, txContext, concurrent.ActualResources)
	if err != nil {
		return concurrent.WithFee(0, nil), err
	}

	info := concurrent.WithFee(actualFee, feeInfo)
	metrics.RecordTransaction(tx.Type().String(), actualFee, info.ActualResources["n_steps"])
	return info, nil
}

// chargeFee prices the resources and performs the transfer. A zero max fee
// skips the whole flow; an actual fee above the max fails before the
// transfer runs. The transfer itself executes on its own overlay so a
// failed transfer leaves no partial writes.
func chargeFee(
	tx Transaction,
	st *state.CachedState,
	blockContext *vm.BlockContext,
	txContext *types.TransactionExecutionContext,
	actualResources map[string]uint64,
) (*types.CallInfo, uint64, error) {
	if txContext.MaxFee == 0 {
		return nil, 0, nil
	}

	actualFee, err := CalculateTxFee(actualResources, blockContext.GasPrice, blockContext)
	if err != nil {
		return nil, 0, err
	}

	feeChild := st.Clone()
	info, err := ExecuteFeeTransfer(feeChild, blockContext, txContext, actualFee)
	if err != nil {
		return nil, 0, err
	}
	st.Apply(feeChild)
	return info, actualFee, nil
}
