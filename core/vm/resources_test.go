package vm

import (
	"testing"

	"github.com/starkexec/starkexec/core/types"
)

func TestResourcesManagerSyscallCounter(t *testing.T) {
	m := NewExecutionResourcesManager()
	if got := m.SyscallCount("storage_read"); got != 0 {
		t.Errorf("fresh counter = %d", got)
	}
	m.IncrementSyscallCounter("storage_read")
	m.IncrementSyscallCounter("storage_read")
	m.IncrementSyscallCounter("deploy")
	if got := m.SyscallCount("storage_read"); got != 2 {
		t.Errorf("storage_read = %d, want 2", got)
	}
	if got := m.SyscallCount("deploy"); got != 1 {
		t.Errorf("deploy = %d, want 1", got)
	}
}

func TestResourcesManagerVMResources(t *testing.T) {
	m := NewExecutionResourcesManager()
	m.AddVMResources(types.ExecutionResources{
		NSteps:                 100,
		BuiltinInstanceCounter: map[string]uint64{"pedersen_builtin": 2},
	})
	m.AddVMResources(types.ExecutionResources{
		NSteps:                 50,
		BuiltinInstanceCounter: map[string]uint64{"pedersen_builtin": 1, "range_check_builtin": 5},
	})

	r := m.VMResources()
	if r.NSteps != 150 {
		t.Errorf("steps = %d, want 150", r.NSteps)
	}
	if r.BuiltinInstanceCounter["pedersen_builtin"] != 3 {
		t.Errorf("pedersen = %d", r.BuiltinInstanceCounter["pedersen_builtin"])
	}

	// The returned value is a snapshot, not a live view.
	r.NSteps = 0
	if m.VMResources().NSteps != 150 {
		t.Error("VMResources exposed internal state")
	}
}

func TestTotalSyscallSteps(t *testing.T) {
	m := NewExecutionResourcesManager()
	m.IncrementSyscallCounter("storage_read")
	m.IncrementSyscallCounter("storage_read")
	m.IncrementSyscallCounter("deploy")

	want := SyscallStepEquivalent("storage_read", 2) + SyscallStepEquivalent("deploy", 1)
	if got := m.TotalSyscallSteps(); got != want {
		t.Errorf("total = %d, want %d", got, want)
	}
}

func TestSyscallStepEquivalentUnknownName(t *testing.T) {
	if got := SyscallStepEquivalent("no_such_syscall", 10); got != 0 {
		t.Errorf("unknown syscall steps = %d, want 0", got)
	}
}
