package core_test

import (
	"errors"
	"testing"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core"
	"github.com/starkexec/starkexec/core/state"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/core/vm/vmtest"
	"github.com/starkexec/starkexec/crypto"
)

// installAccountClass registers (but does not deploy) an account class with
// a constructor storing its single calldata word and a permissive
// __validate_deploy__.
func installAccountClass(t testing.TB, env *txEnv, ctorOffset, validateOffset uint64) (types.ClassHash, *types.DeprecatedContractClass) {
	t.Helper()
	class := vmtest.NewDeprecatedClass("account_class",
		vmtest.EntryPointSpec{Name: "__constructor__", Type: types.EntryPointTypeConstructor, Offset: ctorOffset},
		vmtest.EntryPointSpec{Name: "__validate_deploy__", Type: types.EntryPointTypeExternal, Offset: validateOffset})
	env.interp.Register(ctorOffset, func(e *vmtest.Env) ([]*felt.Felt, error) {
		if _, err := e.Syscall(vm.StorageWriteRequest{Key: fu(0), Value: e.Calldata[0]}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	env.interp.Register(validateOffset, func(e *vmtest.Env) ([]*felt.Felt, error) {
		return nil, nil
	})
	hashFelt := types.ComputeDeprecatedClassHash(class)
	env.state.SetContractClass(hashFelt, class)
	return types.FeltToClassHash(hashFelt), class
}

func TestDeployAccountDerivesAddress(t *testing.T) {
	env := newTxEnv()
	classHash, _ := installAccountClass(t, env, 200, 201)

	tx, err := core.NewDeployAccount(
		classHash, 0, fu(1), &felt.Zero, []*felt.Felt{fu(10)}, nil, &felt.Zero,
		env.block.ChainID, nil)
	if err != nil {
		t.Fatalf("new deploy account: %v", err)
	}

	want := crypto.CalculateContractAddress(&felt.Zero, classHash.Felt(), []*felt.Felt{fu(10)}, &felt.Zero)
	if !tx.ContractAddress().Equal(want) {
		t.Errorf("address = %s, want %s", tx.ContractAddress(), want)
	}

	info, err := tx.Execute(env.state, env.block)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if info.TxType != types.TxTypeDeployAccount {
		t.Errorf("tx type = %s", info.TxType)
	}
	if info.CallInfo == nil || info.CallInfo.EntryPointType != types.EntryPointTypeConstructor {
		t.Errorf("call info = %+v, want constructor frame", info.CallInfo)
	}
	if info.ValidateInfo == nil {
		t.Error("validate info missing")
	}
	if len(info.ValidateInfo.Calldata) != 3 {
		// [class_hash, salt, calldata...]
		t.Errorf("validate calldata = %v", info.ValidateInfo.Calldata)
	}

	// The constructor wrote its calldata word.
	slot, _ := env.state.GetStorageAt(tx.ContractAddress(), fu(0))
	if !slot.Equal(fu(10)) {
		t.Errorf("constructor slot = %s, want 10", slot)
	}
	// The account holds the class and its nonce advanced.
	hash, _ := env.state.GetClassHashAt(tx.ContractAddress())
	if hash != tx.ClassHash() {
		t.Errorf("class hash = %s", hash.Hex())
	}
	nonce, _ := env.state.GetNonceAt(tx.ContractAddress())
	if !nonce.Equal(fu(1)) {
		t.Errorf("nonce = %s, want 1", nonce)
	}
}

func TestDeployAccountTwiceFails(t *testing.T) {
	env := newTxEnv()
	classHash, _ := installAccountClass(t, env, 210, 211)

	newTx := func() *core.DeployAccount {
		tx, err := core.NewDeployAccount(
			classHash, 0, &felt.Zero, &felt.Zero, []*felt.Felt{fu(10)}, nil, &felt.Zero,
			env.block.ChainID, nil)
		if err != nil {
			t.Fatalf("new deploy account: %v", err)
		}
		return tx
	}

	if _, err := newTx().Execute(env.state, env.block); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	_, err := newTx().Execute(env.state, env.block)
	if !errors.Is(err, state.ErrContractAddressUnavailable) {
		t.Errorf("second deploy err = %v, want ErrContractAddressUnavailable", err)
	}
}

func TestDeployAccountEmptyConstructorShortCircuit(t *testing.T) {
	env := newTxEnv()

	plain := vmtest.NewDeprecatedClass("plain_account",
		vmtest.EntryPointSpec{Name: "__validate_deploy__", Type: types.EntryPointTypeExternal, Offset: 220})
	env.interp.Register(220, func(e *vmtest.Env) ([]*felt.Felt, error) { return nil, nil })
	hashFelt := types.ComputeDeprecatedClassHash(plain)
	env.state.SetContractClass(hashFelt, plain)
	classHash := types.FeltToClassHash(hashFelt)

	tx, err := core.NewDeployAccount(
		classHash, 0, &felt.Zero, &felt.Zero, nil, nil, fu(3), env.block.ChainID, nil)
	if err != nil {
		t.Fatal(err)
	}
	info, err := tx.Execute(env.state, env.block)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if info.CallInfo == nil || info.CallInfo.Failed {
		t.Fatal("empty constructor frame missing or failed")
	}
	if len(info.CallInfo.Retdata) != 0 || len(info.CallInfo.InternalCalls) != 0 {
		t.Error("empty constructor frame carries execution output")
	}
}

func TestDeployAccountCalldataWithoutConstructorFails(t *testing.T) {
	env := newTxEnv()

	plain := vmtest.NewDeprecatedClass("bare_account")
	hashFelt := types.ComputeDeprecatedClassHash(plain)
	env.state.SetContractClass(hashFelt, plain)

	tx, err := core.NewDeployAccount(
		types.FeltToClassHash(hashFelt), 0, &felt.Zero, &felt.Zero,
		[]*felt.Felt{fu(10)}, nil, &felt.Zero, env.block.ChainID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Execute(env.state, env.block); !errors.Is(err, core.ErrEmptyConstructorCalldata) {
		t.Errorf("err = %v, want ErrEmptyConstructorCalldata", err)
	}
}

func TestDeployAccountHashFollowsFormula(t *testing.T) {
	env := newTxEnv()
	classHash, _ := installAccountClass(t, env, 230, 231)

	salt := fu(9)
	calldata := []*felt.Felt{fu(10)}
	tx, err := core.NewDeployAccount(
		classHash, 77, fu(1), &felt.Zero, calldata, nil, salt, env.block.ChainID, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := crypto.CalculateDeployAccountTransactionHash(
		fu(1), tx.ContractAddress(), classHash.Felt(), calldata, 77, &felt.Zero, salt, env.block.ChainID)
	if !tx.Hash().Equal(want) {
		t.Errorf("hash = %s, want %s", tx.Hash(), want)
	}
}

func TestDeployAccountStateSelector(t *testing.T) {
	env := newTxEnv()
	classHash, _ := installAccountClass(t, env, 240, 241)

	tx, err := core.NewDeployAccount(
		classHash, 0, &felt.Zero, &felt.Zero, nil, nil, &felt.Zero, env.block.ChainID, nil)
	if err != nil {
		t.Fatal(err)
	}
	sel := tx.GetStateSelector(env.block)
	if len(sel.ContractAddresses) != 1 || !sel.ContractAddresses[0].Equal(tx.ContractAddress()) {
		t.Errorf("selector addresses = %v", sel.ContractAddresses)
	}
	if len(sel.ClassHashes) != 1 || sel.ClassHashes[0] != classHash {
		t.Errorf("selector class hashes = %v", sel.ClassHashes)
	}
}
