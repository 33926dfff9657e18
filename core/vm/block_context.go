// block_context.go carries the per-block configuration every frame can
// observe: chain identity, block fields, fee parameters, and step budgets.
// Resource fee weights are configuration, not code; unknown resource names
// contribute zero to the fee.
package vm

import (
	"github.com/NethermindEth/juno/core/felt"
)

// Step budgets and gas defaults.
const (
	// DefaultValidateMaxNSteps bounds a validate-phase run.
	DefaultValidateMaxNSteps = 1_000_000
	// DefaultInvokeTxMaxNSteps bounds an execute-phase run.
	DefaultInvokeTxMaxNSteps = 3_000_000
	// DefaultInitialGas is the gas budget handed to a top-level Cairo 1
	// frame.
	DefaultInitialGas = 100_000_000
)

// BlockContext is the immutable per-block environment.
type BlockContext struct {
	ChainID          *felt.Felt
	BlockNumber      uint64
	BlockTimestamp   uint64
	SequencerAddress *felt.Felt
	FeeTokenAddress  *felt.Felt
	GasPrice         uint64

	ValidateMaxNSteps uint64
	InvokeTxMaxNSteps uint64

	// CairoResourceFeeWeights maps resource names (l1_gas_usage, n_steps,
	// pedersen_builtin, ...) to their fee weights.
	CairoResourceFeeWeights map[string]float64

	// Interpreter produces sub-VM instances for compiled classes.
	Interpreter InterpreterFactory
}

// DefaultResourceFeeWeights returns the standard weight table.
func DefaultResourceFeeWeights() map[string]float64 {
	return map[string]float64{
		"l1_gas_usage":        1.0,
		"n_steps":             0.01,
		"pedersen_builtin":    0.32,
		"range_check_builtin": 0.16,
		"ecdsa_builtin":       20.48,
		"bitwise_builtin":     0.64,
		"output_builtin":      0.0,
		"ec_op_builtin":       10.24,
		"keccak_builtin":      20.48,
		"poseidon_builtin":    0.32,
	}
}

// DefaultBlockContext returns a context suitable for tests and local
// execution: test chain id, zero sequencer, default budgets and weights.
func DefaultBlockContext() *BlockContext {
	return &BlockContext{
		ChainID:                 new(felt.Felt).SetBytes([]byte("SN_GOERLI")),
		SequencerAddress:        &felt.Zero,
		FeeTokenAddress:         &felt.Zero,
		GasPrice:                0,
		ValidateMaxNSteps:       DefaultValidateMaxNSteps,
		InvokeTxMaxNSteps:       DefaultInvokeTxMaxNSteps,
		CairoResourceFeeWeights: DefaultResourceFeeWeights(),
	}
}
