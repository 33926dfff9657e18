// contract_class.go defines the two compiled contract-class kinds and their
// JSON loaders. A class is immutable after construction; both loaders reject
// duplicate selectors, and the CASM loader also rejects entry offsets beyond
// the bytecode. Deprecated-class offsets are not checked against the opaque
// program.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
)

// EntryPointType partitions a class's entry-point table.
type EntryPointType uint8

const (
	EntryPointTypeExternal EntryPointType = iota
	EntryPointTypeL1Handler
	EntryPointTypeConstructor
)

// String returns the canonical table key for the entry-point type.
func (t EntryPointType) String() string {
	switch t {
	case EntryPointTypeExternal:
		return "EXTERNAL"
	case EntryPointTypeL1Handler:
		return "L1_HANDLER"
	case EntryPointTypeConstructor:
		return "CONSTRUCTOR"
	default:
		return fmt.Sprintf("ENTRY_POINT_TYPE(%d)", uint8(t))
	}
}

// CallType distinguishes how a frame resolved its code.
type CallType uint8

const (
	// CallTypeCall executes the callee's class in the callee's context.
	CallTypeCall CallType = iota
	// CallTypeDelegate executes a foreign class in the caller's context
	// (library_call and the legacy delegate_call).
	CallTypeDelegate
)

// String returns the human-readable name of the call type.
func (t CallType) String() string {
	switch t {
	case CallTypeCall:
		return "CALL"
	case CallTypeDelegate:
		return "DELEGATE"
	default:
		return fmt.Sprintf("CALL_TYPE(%d)", uint8(t))
	}
}

// ContractEntryPoint binds a selector to a program offset. Builtins is only
// populated for CASM entries.
type ContractEntryPoint struct {
	Selector *felt.Felt
	Offset   uint64
	Builtins []string
}

// Class loading errors.
var (
	ErrDuplicateEntryPoint = errors.New("duplicate entry-point selector")
	ErrMissingProgram      = errors.New("contract class has no program")
	ErrBadSelector         = errors.New("malformed entry-point selector")
	ErrBadOffset           = errors.New("malformed entry-point offset")
)

// DeprecatedContractClass is a compiled Cairo 0 class: an opaque program
// blob plus an entry-point table per kind.
type DeprecatedContractClass struct {
	Program           json.RawMessage
	ABI               json.RawMessage
	Builtins          []string
	ProgramData       []*felt.Felt
	EntryPointsByType map[EntryPointType][]ContractEntryPoint
}

// CasmClass is a compiled Cairo 1 class: bytecode felts, the same
// entry-point table shape, and a hint list indexed by instruction offset.
type CasmClass struct {
	Bytecode          []*felt.Felt
	Hints             map[uint64][]string
	CompilerVersion   string
	EntryPointsByType map[EntryPointType][]ContractEntryPoint
}

// CompiledClass is the two-variant tagged union over the class kinds.
// Dispatch is by type switch; there is no third variant.
type CompiledClass interface {
	// EntryPoints returns the (selector, offset) table for the given kind,
	// in insertion order.
	EntryPoints(t EntryPointType) []ContractEntryPoint
}

// EntryPoints returns the deprecated class's table for the given kind.
func (c *DeprecatedContractClass) EntryPoints(t EntryPointType) []ContractEntryPoint {
	return c.EntryPointsByType[t]
}

// EntryPoints returns the CASM class's table for the given kind.
func (c *CasmClass) EntryPoints(t EntryPointType) []ContractEntryPoint {
	return c.EntryPointsByType[t]
}

var (
	_ CompiledClass = (*DeprecatedContractClass)(nil)
	_ CompiledClass = (*CasmClass)(nil)
)

// FindEntryPoint returns the entry offset for a selector within a kind
// table, resolving overloads by insertion order. The second return is false
// when the selector is absent.
func FindEntryPoint(class CompiledClass, t EntryPointType, selector *felt.Felt) (ContractEntryPoint, bool) {
	for _, ep := range class.EntryPoints(t) {
		if ep.Selector.Equal(selector) {
			return ep, true
		}
	}
	return ContractEntryPoint{}, false
}

// flexibleUint accepts both JSON numbers and 0x-prefixed hex strings, the
// two offset encodings found in the wild.
type flexibleUint uint64

func (u *flexibleUint) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrBadOffset, s)
		}
		*u = flexibleUint(v)
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadOffset, s)
	}
	*u = flexibleUint(v)
	return nil
}

type jsonEntryPoint struct {
	Selector string       `json:"selector"`
	Offset   flexibleUint `json:"offset"`
	Builtins []string     `json:"builtins,omitempty"`
}

func parseEntryPoints(raw []jsonEntryPoint) ([]ContractEntryPoint, error) {
	out := make([]ContractEntryPoint, 0, len(raw))
	seen := make(map[felt.Felt]struct{}, len(raw))
	for _, e := range raw {
		sel, err := new(felt.Felt).SetString(e.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadSelector, e.Selector)
		}
		if _, dup := seen[*sel]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntryPoint, sel)
		}
		seen[*sel] = struct{}{}
		out = append(out, ContractEntryPoint{
			Selector: sel,
			Offset:   uint64(e.Offset),
			Builtins: e.Builtins,
		})
	}
	return out, nil
}

type jsonDeprecatedClass struct {
	Program           json.RawMessage             `json:"program"`
	ABI               json.RawMessage             `json:"abi"`
	EntryPointsByType map[string][]jsonEntryPoint `json:"entry_points_by_type"`
}

// ParseDeprecatedContractClass loads a deprecated (Cairo 0) class from its
// JSON form. The program blob is kept opaque except for its builtin list and
// data section, which feed the class hash.
func ParseDeprecatedContractClass(data []byte) (*DeprecatedContractClass, error) {
	var raw jsonDeprecatedClass
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("deprecated class: %w", err)
	}
	if len(raw.Program) == 0 {
		return nil, ErrMissingProgram
	}

	class := &DeprecatedContractClass{
		Program:           raw.Program,
		ABI:               raw.ABI,
		EntryPointsByType: make(map[EntryPointType][]ContractEntryPoint, 3),
	}

	for key, t := range map[string]EntryPointType{
		"EXTERNAL":    EntryPointTypeExternal,
		"L1_HANDLER":  EntryPointTypeL1Handler,
		"CONSTRUCTOR": EntryPointTypeConstructor,
	} {
		eps, err := parseEntryPoints(raw.EntryPointsByType[key])
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", key, err)
		}
		class.EntryPointsByType[t] = eps
	}

	// The program's builtin list and data section participate in the class
	// hash; absence of either is tolerated for hand-built test programs.
	var programFields struct {
		Builtins []string `json:"builtins"`
		Data     []string `json:"data"`
	}
	if err := json.Unmarshal(raw.Program, &programFields); err == nil {
		class.Builtins = programFields.Builtins
		for _, d := range programFields.Data {
			f, err := new(felt.Felt).SetString(d)
			if err != nil {
				return nil, fmt.Errorf("program data: %w", err)
			}
			class.ProgramData = append(class.ProgramData, f)
		}
	}

	return class, nil
}

type jsonCasmClass struct {
	Bytecode          []string                    `json:"bytecode"`
	CompilerVersion   string                      `json:"compiler_version"`
	Hints             [][]json.RawMessage         `json:"hints"`
	EntryPointsByType map[string][]jsonEntryPoint `json:"entry_points_by_type"`
}

// ParseCasmClass loads a CASM (Cairo 1) class from its JSON form. Hints are
// kept as raw strings keyed by instruction offset; interpreting them is the
// sub-VM's concern.
func ParseCasmClass(data []byte) (*CasmClass, error) {
	var raw jsonCasmClass
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("casm class: %w", err)
	}
	if len(raw.Bytecode) == 0 {
		return nil, ErrMissingProgram
	}

	class := &CasmClass{
		CompilerVersion:   raw.CompilerVersion,
		Hints:             make(map[uint64][]string),
		EntryPointsByType: make(map[EntryPointType][]ContractEntryPoint, 3),
	}

	for _, b := range raw.Bytecode {
		f, err := new(felt.Felt).SetString(b)
		if err != nil {
			return nil, fmt.Errorf("bytecode word: %w", err)
		}
		class.Bytecode = append(class.Bytecode, f)
	}

	// Each hint entry is a pair [offset, [hint...]].
	for _, pair := range raw.Hints {
		if len(pair) != 2 {
			return nil, fmt.Errorf("casm class: malformed hint entry")
		}
		var offset uint64
		if err := json.Unmarshal(pair[0], &offset); err != nil {
			return nil, fmt.Errorf("hint offset: %w", err)
		}
		var hints []json.RawMessage
		if err := json.Unmarshal(pair[1], &hints); err != nil {
			return nil, fmt.Errorf("hint body: %w", err)
		}
		for _, h := range hints {
			class.Hints[offset] = append(class.Hints[offset], string(h))
		}
	}

	for key, t := range map[string]EntryPointType{
		"external":    EntryPointTypeExternal,
		"l1_handler":  EntryPointTypeL1Handler,
		"constructor": EntryPointTypeConstructor,
	} {
		eps, err := parseEntryPoints(raw.EntryPointsByType[key])
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", key, err)
		}
		for _, ep := range eps {
			if ep.Offset >= uint64(len(class.Bytecode)) {
				return nil, fmt.Errorf("%w: offset %d beyond bytecode end %d",
					ErrBadOffset, ep.Offset, len(class.Bytecode))
			}
		}
		class.EntryPointsByType[t] = eps
	}

	return class, nil
}
