package core_test

import (
	"testing"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core"
	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm/vmtest"
)

func BenchmarkInvokeExecute(b *testing.B) {
	env := newTxEnv()
	class := vmtest.NewDeprecatedClass("bench_target",
		vmtest.EntryPointSpec{Name: "__execute__", Type: types.EntryPointTypeExternal, Offset: 900},
		vmtest.EntryPointSpec{Name: "__validate__", Type: types.EntryPointTypeExternal, Offset: 901})
	env.interp.Register(900, func(e *vmtest.Env) ([]*felt.Felt, error) {
		return []*felt.Felt{new(felt.Felt).SetUint64(1)}, nil
	})
	env.interp.Register(901, func(e *vmtest.Env) ([]*felt.Felt, error) { return nil, nil })
	env.install(b, class, new(felt.Felt).SetUint64(0x111))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		nonce := new(felt.Felt).SetUint64(uint64(i))
		tx := newInvokeV1(b, env, new(felt.Felt).SetUint64(0x111), 0, nonce, nil)
		if _, err := tx.Execute(env.state, env.block); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDeployAccountExecute(b *testing.B) {
	env := newTxEnv()
	classHash, _ := installAccountClass(b, env, 910, 911)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		salt := new(felt.Felt).SetUint64(uint64(i))
		tx, err := core.NewDeployAccount(
			classHash, 0, &felt.Zero, &felt.Zero, []*felt.Felt{new(felt.Felt).SetUint64(10)},
			nil, salt, env.block.ChainID, nil)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := tx.Execute(env.state, env.block); err != nil {
			b.Fatal(err)
		}
	}
}
