// machine.go defines the boundary to the opaque Cairo interpreter. The
// executor hands the machine a program, an entry offset, arguments and a
// syscall handler; every syscall hint the program executes yields control
// back into the handler, which may reenter the executor for nested calls.
package vm

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/starkexec/starkexec/core/types"
)

// MachineCall describes one sub-VM run from an entry point.
type MachineCall struct {
	Class       types.CompiledClass
	EntryOffset uint64
	Calldata    []*felt.Felt
	InitialGas  uint64
	MaxSteps    uint64

	// Handler receives every syscall the program executes.
	Handler *SyscallHandler
}

// RunResult is what a completed sub-VM run reports back.
type RunResult struct {
	Retdata     []*felt.Felt
	GasConsumed uint64
	Resources   types.ExecutionResources
}

// Machine is one interpreter instance, good for a single call frame. A run
// that exhausts MaxSteps must fail with ErrOutOfSteps; other interpreter
// failures are reported as *VMError.
type Machine interface {
	Run(call *MachineCall) (*RunResult, error)
}

// InterpreterFactory builds machines for compiled classes. It is the
// external-collaborator seam: production wires a Cairo interpreter here,
// tests wire scripted machines.
type InterpreterFactory interface {
	NewMachine(class types.CompiledClass) (Machine, error)
}
