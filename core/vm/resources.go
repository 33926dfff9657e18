// resources.go implements the per-transaction resource manager: merged VM
// step/builtin counters plus syscall invocation counts. One manager spans
// all of a transaction's frames (validate, execute, constructor, nested
// calls) so the totals feed fee computation directly.
package vm

import (
	"github.com/starkexec/starkexec/core/types"
)

// syscallStepEquivalents translates one invocation of each syscall into the
// VM steps its host-side handling is accounted as.
var syscallStepEquivalents = map[string]uint64{
	"call_contract":           690,
	"delegate_call":           713,
	"deploy":                  936,
	"emit_event":              19,
	"get_block_number":        40,
	"get_block_timestamp":     38,
	"get_caller_address":      32,
	"get_contract_address":    36,
	"get_sequencer_address":   34,
	"get_tx_info":             29,
	"get_tx_signature":        44,
	"library_call":            680,
	"library_call_l1_handler": 659,
	"replace_class":           73,
	"send_message_to_l1":      84,
	"storage_read":            44,
	"storage_write":           46,
}

// ExecutionResourcesManager accumulates resource usage across every frame
// of one transaction.
type ExecutionResourcesManager struct {
	syscallCounter map[string]uint64
	vmResources    types.ExecutionResources
}

// NewExecutionResourcesManager returns a zeroed manager.
func NewExecutionResourcesManager() *ExecutionResourcesManager {
	return &ExecutionResourcesManager{
		syscallCounter: make(map[string]uint64),
	}
}

// IncrementSyscallCounter counts one invocation of the named syscall.
func (m *ExecutionResourcesManager) IncrementSyscallCounter(name string) {
	m.syscallCounter[name]++
}

// SyscallCount returns how often the named syscall ran.
func (m *ExecutionResourcesManager) SyscallCount(name string) uint64 {
	return m.syscallCounter[name]
}

// AddVMResources merges one frame's VM counters into the totals.
func (m *ExecutionResourcesManager) AddVMResources(r types.ExecutionResources) {
	m.vmResources.Add(r)
}

// VMResources returns the accumulated VM counters.
func (m *ExecutionResourcesManager) VMResources() types.ExecutionResources {
	return m.vmResources.Clone()
}

// SyscallStepEquivalent returns the weighted step cost of all recorded
// invocations of the named syscall.
func SyscallStepEquivalent(name string, count uint64) uint64 {
	return syscallStepEquivalents[name] * count
}

// TotalSyscallSteps folds every recorded syscall into its step equivalent.
func (m *ExecutionResourcesManager) TotalSyscallSteps() uint64 {
	var total uint64
	for name, count := range m.syscallCounter {
		total += SyscallStepEquivalent(name, count)
	}
	return total
}
