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

func fu(v uint64) *felt.Felt { return new(felt.Felt).SetUint64(v) }

func feltStr(t testing.TB, s string) *felt.Felt {
	t.Helper()
	f, err := new(felt.Felt).SetString(s)
	if err != nil {
		t.Fatalf("SetString(%q): %v", s, err)
	}
	return f
}

type txEnv struct {
	state  *state.CachedState
	block  *vm.BlockContext
	interp *vmtest.Interpreter
}

func newTxEnv() *txEnv {
	interp := vmtest.NewInterpreter()
	block := vm.DefaultBlockContext()
	block.Interpreter = interp
	return &txEnv{
		state:  state.NewCachedState(state.NewInMemoryStateReader()),
		block:  block,
		interp: interp,
	}
}

func (e *txEnv) install(t testing.TB, class *types.DeprecatedContractClass, addr *felt.Felt) *felt.Felt {
	t.Helper()
	hashFelt := types.ComputeDeprecatedClassHash(class)
	e.state.SetContractClass(hashFelt, class)
	if err := e.state.DeployContract(addr, types.FeltToClassHash(hashFelt)); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return hashFelt
}

// fibonacciSelector is sn_keccak("fib") as carried by the reference
// fibonacci contract.
const fibonacciSelector = "0x112e35f48499939272000bd72eb840e502ca4c3aefa8800992e8defb746e0c9"

// installFibonacci wires a contract at address 0 whose entry point computes
// the Fibonacci recurrence over its three calldata words.
func (e *txEnv) installFibonacci(t testing.TB) *felt.Felt {
	t.Helper()
	class := &types.DeprecatedContractClass{
		Program: []byte(`{"tag":"fibonacci"}`),
		EntryPointsByType: map[types.EntryPointType][]types.ContractEntryPoint{
			types.EntryPointTypeExternal: {
				{Selector: feltStr(t, fibonacciSelector), Offset: 10},
			},
		},
	}
	e.interp.Register(10, func(env *vmtest.Env) ([]*felt.Felt, error) {
		a, b := env.Calldata[0], env.Calldata[1]
		n := new(felt.Felt).Set(env.Calldata[2])
		for !n.IsZero() {
			a, b = b, new(felt.Felt).Add(a, b)
			n = new(felt.Felt).Sub(n, fu(1))
		}
		env.Steps = 500
		return []*felt.Felt{b}, nil
	})
	hashFelt := types.ComputeDeprecatedClassHash(class)
	e.state.SetContractClass(hashFelt, class)
	if err := e.state.DeployContract(&felt.Zero, types.FeltToClassHash(hashFelt)); err != nil {
		t.Fatal(err)
	}
	return hashFelt
}

func TestInvokeFibonacciV0(t *testing.T) {
	env := newTxEnv()
	classHash := env.installFibonacci(t)

	tx, err := core.NewInvokeFunction(
		&felt.Zero,
		feltStr(t, fibonacciSelector),
		0,
		&felt.Zero,
		[]*felt.Felt{fu(1), fu(1), fu(10)},
		nil,
		env.block.ChainID,
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("new invoke: %v", err)
	}

	info, err := tx.Execute(env.state, env.block)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if info.TxType != types.TxTypeInvokeFunction {
		t.Errorf("tx type = %s", info.TxType)
	}
	if len(info.CallInfo.Retdata) != 1 || !info.CallInfo.Retdata[0].Equal(fu(144)) {
		t.Errorf("retdata = %v, want [144]", info.CallInfo.Retdata)
	}
	if !info.CallInfo.ClassHash.Felt().Equal(classHash) {
		t.Errorf("class hash = %s", info.CallInfo.ClassHash.Felt())
	}
	if info.ValidateInfo != nil {
		t.Error("version 0 invoke ran validate")
	}
	// Version 0: nonce untouched.
	nonce, _ := env.state.GetNonceAt(&felt.Zero)
	if !nonce.IsZero() {
		t.Errorf("nonce = %s, want 0", nonce)
	}
}

func TestInvokePreprocessRegimes(t *testing.T) {
	env := newTxEnv()
	selector := crypto.GetSelectorFromName("__execute__")

	// Version 0 with a nonce is rejected.
	_, err := core.NewInvokeFunction(fu(1), selector, 0, &felt.Zero, nil, nil,
		env.block.ChainID, &felt.Zero, nil)
	if !errors.Is(err, core.ErrInvokeFunctionZeroHasNonce) {
		t.Errorf("v0+nonce err = %v", err)
	}

	// Version 1 without a nonce is rejected.
	_, err = core.NewInvokeFunction(fu(1), selector, 0, fu(1), nil, nil,
		env.block.ChainID, nil, nil)
	if !errors.Is(err, core.ErrInvokeFunctionNonZeroMissingNonce) {
		t.Errorf("v1-nonce err = %v", err)
	}
}

// installAccount wires an account class whose __validate__ accepts
// everything and whose __execute__ runs the given program.
func installAccount(t testing.TB, env *txEnv, addr *felt.Felt, validateOffset, executeOffset uint64,
	execute vmtest.Program) *felt.Felt {
	t.Helper()
	class := vmtest.NewDeprecatedClass("account",
		vmtest.EntryPointSpec{Name: "__validate__", Type: types.EntryPointTypeExternal, Offset: validateOffset},
		vmtest.EntryPointSpec{Name: "__execute__", Type: types.EntryPointTypeExternal, Offset: executeOffset})
	env.interp.Register(validateOffset, func(e *vmtest.Env) ([]*felt.Felt, error) {
		return nil, nil
	})
	env.interp.Register(executeOffset, execute)
	return env.install(t, class, addr)
}

func newInvokeV1(t testing.TB, env *txEnv, addr *felt.Felt, maxFee uint64, nonce *felt.Felt, calldata []*felt.Felt) *core.InvokeFunction {
	t.Helper()
	tx, err := core.NewInvokeFunction(
		addr, crypto.GetSelectorFromName("__execute__"), maxFee, fu(1),
		calldata, nil, env.block.ChainID, nonce, nil)
	if err != nil {
		t.Fatalf("new invoke v1: %v", err)
	}
	return tx
}

func TestInvokeV1RunsValidateAndBumpsNonce(t *testing.T) {
	env := newTxEnv()
	addr := fu(0x111)
	installAccount(t, env, addr, 20, 21, func(e *vmtest.Env) ([]*felt.Felt, error) {
		return []*felt.Felt{fu(1)}, nil
	})

	tx := newInvokeV1(t, env, addr, 0, &felt.Zero, nil)
	info, err := tx.Execute(env.state, env.block)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if info.ValidateInfo == nil {
		t.Fatal("validate info missing")
	}
	if !info.ValidateInfo.EntryPointSelector.Equal(crypto.GetSelectorFromName("__validate__")) {
		t.Errorf("validate selector = %s", info.ValidateInfo.EntryPointSelector)
	}

	nonce, _ := env.state.GetNonceAt(addr)
	if !nonce.Equal(fu(1)) {
		t.Errorf("nonce = %s, want 1", nonce)
	}
}

func TestInvokeNonceMismatch(t *testing.T) {
	env := newTxEnv()
	addr := fu(0x111)
	installAccount(t, env, addr, 30, 31, func(e *vmtest.Env) ([]*felt.Felt, error) {
		return nil, nil
	})

	first := newInvokeV1(t, env, addr, 0, &felt.Zero, nil)
	if _, err := first.Execute(env.state, env.block); err != nil {
		t.Fatalf("first execute: %v", err)
	}

	// Same nonce again: the state advanced to 1.
	second := newInvokeV1(t, env, addr, 0, &felt.Zero, nil)
	_, err := second.Execute(env.state, env.block)
	if !errors.Is(err, core.ErrInvalidTransactionNonce) {
		t.Fatalf("err = %v, want ErrInvalidTransactionNonce", err)
	}

	// The failed transaction left the nonce alone.
	nonce, _ := env.state.GetNonceAt(addr)
	if !nonce.Equal(fu(1)) {
		t.Errorf("nonce = %s, want 1", nonce)
	}
}

func TestInvokeValidateCallingOtherContractFails(t *testing.T) {
	env := newTxEnv()

	other := vmtest.NewDeprecatedClass("other",
		vmtest.EntryPointSpec{Name: "noop", Type: types.EntryPointTypeExternal, Offset: 40})
	env.interp.Register(40, func(e *vmtest.Env) ([]*felt.Felt, error) { return nil, nil })
	env.install(t, other, fu(0x222))

	addr := fu(0x111)
	class := vmtest.NewDeprecatedClass("rogue_account",
		vmtest.EntryPointSpec{Name: "__validate__", Type: types.EntryPointTypeExternal, Offset: 41},
		vmtest.EntryPointSpec{Name: "__execute__", Type: types.EntryPointTypeExternal, Offset: 42})
	env.interp.Register(41, func(e *vmtest.Env) ([]*felt.Felt, error) {
		_, err := e.Syscall(vm.CallContractRequest{
			ContractAddress: fu(0x222),
			Selector:        crypto.GetSelectorFromName("noop"),
		})
		return nil, err
	})
	env.interp.Register(42, func(e *vmtest.Env) ([]*felt.Felt, error) { return nil, nil })
	env.install(t, class, addr)

	before := state.DiffFromCachedState(env.state)

	tx := newInvokeV1(t, env, addr, 0, &felt.Zero, nil)
	_, err := tx.Execute(env.state, env.block)
	if !errors.Is(err, vm.ErrUnauthorizedActionOnValidate) {
		t.Fatalf("err = %v, want ErrUnauthorizedActionOnValidate", err)
	}

	// Failed apply: the overlay was discarded, nonce included.
	after := state.DiffFromCachedState(env.state)
	if len(after.AddressToNonce) != len(before.AddressToNonce) ||
		len(after.StorageUpdates) != len(before.StorageUpdates) {
		t.Error("failed apply leaked writes")
	}
}

func TestInvokeDeterministicReExecution(t *testing.T) {
	runOnce := func(t *testing.T) (*felt.Felt, *types.TransactionExecutionInfo) {
		env := newTxEnv()
		env.installFibonacci(t)
		tx, err := core.NewInvokeFunction(
			&felt.Zero, feltStr(t, fibonacciSelector), 0, &felt.Zero,
			[]*felt.Felt{fu(1), fu(1), fu(10)}, nil, env.block.ChainID, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		info, err := tx.Execute(env.state, env.block)
		if err != nil {
			t.Fatal(err)
		}
		return tx.Hash(), info
	}

	hash1, info1 := runOnce(t)
	hash2, info2 := runOnce(t)

	if !hash1.Equal(hash2) {
		t.Errorf("hashes differ: %s != %s", hash1, hash2)
	}
	if info1.ActualFee != info2.ActualFee {
		t.Errorf("fees differ: %d != %d", info1.ActualFee, info2.ActualFee)
	}
	if len(info1.ActualResources) != len(info2.ActualResources) {
		t.Fatalf("resource maps differ in size")
	}
	for name, usage := range info1.ActualResources {
		if info2.ActualResources[name] != usage {
			t.Errorf("resource %s: %d != %d", name, usage, info2.ActualResources[name])
		}
	}
	if len(info1.CallInfo.Retdata) != len(info2.CallInfo.Retdata) {
		t.Error("call tree shapes differ")
	}
}

func TestInvokeUnknownContractLeavesStateIntact(t *testing.T) {
	env := newTxEnv()
	before := state.DiffFromCachedState(env.state)

	tx, err := core.NewInvokeFunction(
		fu(0x404), crypto.GetSelectorFromName("whatever"), 0, &felt.Zero,
		nil, nil, env.block.ChainID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Execute(env.state, env.block); err == nil {
		t.Fatal("execute against vacant address should fail")
	}

	after := state.DiffFromCachedState(env.state)
	if len(after.AddressToClassHash) != len(before.AddressToClassHash) ||
		len(after.StorageUpdates) != len(before.StorageUpdates) ||
		len(after.AddressToNonce) != len(before.AddressToNonce) {
		t.Error("failed transaction touched state")
	}
}
