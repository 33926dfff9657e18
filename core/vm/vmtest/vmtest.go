// Package vmtest provides a scripted interpreter for exercising the
// executor, the syscall handler, and the transaction state machines without
// a real Cairo interpreter. A "program" is a Go closure registered under an
// entry offset; running it stands in for the sub-VM, and its syscalls go
// through the production handler.
package vmtest

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/types"
	"github.com/starkexec/starkexec/core/vm"
	"github.com/starkexec/starkexec/crypto"
)

// Env is what a scripted program sees during its run.
type Env struct {
	Calldata   []*felt.Felt
	InitialGas uint64
	MaxSteps   uint64

	handler *vm.SyscallHandler

	// Steps and GasConsumed let a program report simulated resource usage.
	Steps       uint64
	GasConsumed uint64
	Builtins    map[string]uint64
}

// Syscall dispatches a typed request through the frame's handler, exactly
// as a hint would.
func (e *Env) Syscall(req vm.SyscallRequest) (vm.SyscallResponse, error) {
	return e.handler.Dispatch(req)
}

// Program is a scripted entry point: it receives the environment and
// returns the frame's retdata.
type Program func(e *Env) ([]*felt.Felt, error)

// Interpreter is an vm.InterpreterFactory backed by programs registered per
// entry offset. Offsets must be unique across the classes of one test.
type Interpreter struct {
	Programs map[uint64]Program
}

// NewInterpreter returns an empty scripted interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{Programs: make(map[uint64]Program)}
}

// Register binds a program to an entry offset.
func (i *Interpreter) Register(offset uint64, p Program) {
	i.Programs[offset] = p
}

// NewMachine implements vm.InterpreterFactory.
func (i *Interpreter) NewMachine(class types.CompiledClass) (vm.Machine, error) {
	return &machine{interp: i}, nil
}

type machine struct {
	interp *Interpreter
}

// Run implements vm.Machine by invoking the registered program.
func (m *machine) Run(call *vm.MachineCall) (*vm.RunResult, error) {
	program, ok := m.interp.Programs[call.EntryOffset]
	if !ok {
		return nil, fmt.Errorf("no scripted program at offset %d", call.EntryOffset)
	}

	env := &Env{
		Calldata:   call.Calldata,
		InitialGas: call.InitialGas,
		MaxSteps:   call.MaxSteps,
		handler:    call.Handler,
	}
	retdata, err := program(env)
	if err != nil {
		return nil, err
	}
	if call.MaxSteps > 0 && env.Steps > call.MaxSteps {
		return nil, vm.ErrOutOfSteps
	}

	builtins := env.Builtins
	if builtins == nil {
		builtins = map[string]uint64{}
	}
	return &vm.RunResult{
		Retdata:     retdata,
		GasConsumed: env.GasConsumed,
		Resources: types.ExecutionResources{
			NSteps:                 env.Steps,
			BuiltinInstanceCounter: builtins,
		},
	}, nil
}

var _ vm.InterpreterFactory = (*Interpreter)(nil)

// EntryPointSpec names one entry point of a scripted class.
type EntryPointSpec struct {
	Name   string
	Type   types.EntryPointType
	Offset uint64
}

// NewDeprecatedClass builds a deprecated class whose entry-point table binds
// the given function names (hashed with sn_keccak) to offsets.
func NewDeprecatedClass(tag string, entries ...EntryPointSpec) *types.DeprecatedContractClass {
	class := &types.DeprecatedContractClass{
		Program:           []byte(`{"tag":"` + tag + `"}`),
		EntryPointsByType: make(map[types.EntryPointType][]types.ContractEntryPoint, 3),
	}
	for _, e := range entries {
		class.EntryPointsByType[e.Type] = append(class.EntryPointsByType[e.Type],
			types.ContractEntryPoint{
				Selector: crypto.GetSelectorFromName(e.Name),
				Offset:   e.Offset,
			})
	}
	return class
}

// NewCasmClass builds a CASM class analogous to NewDeprecatedClass. The
// bytecode is synthesized long enough to keep every offset valid.
func NewCasmClass(tag string, entries ...EntryPointSpec) *types.CasmClass {
	maxOffset := uint64(0)
	for _, e := range entries {
		if e.Offset > maxOffset {
			maxOffset = e.Offset
		}
	}
	bytecode := make([]*felt.Felt, maxOffset+1)
	for i := range bytecode {
		bytecode[i] = new(felt.Felt).SetBytes([]byte(tag))
	}

	class := &types.CasmClass{
		Bytecode:          bytecode,
		CompilerVersion:   "2.0.0",
		EntryPointsByType: make(map[types.EntryPointType][]types.ContractEntryPoint, 3),
	}
	for _, e := range entries {
		class.EntryPointsByType[e.Type] = append(class.EntryPointsByType[e.Type],
			types.ContractEntryPoint{
				Selector: crypto.GetSelectorFromName(e.Name),
				Offset:   e.Offset,
			})
	}
	return class
}
