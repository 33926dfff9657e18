// syscall.go defines the typed syscall requests and responses, the selector
// words that identify them, and the felt-framed codec the sub-VM uses: a
// request is a run of words starting with the selector, and the handler
// writes the response words back after it.
package vm

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
)

// SyscallRequest is one decoded syscall invocation.
type SyscallRequest interface {
	// SyscallName returns the canonical snake_case name used for resource
	// accounting.
	SyscallName() string
}

// SyscallResponse is the host's answer, encodable back into VM memory.
type SyscallResponse interface {
	// Encode renders the response as the words written after the request.
	Encode() []*felt.Felt
}

// Request types. Calldata-bearing requests keep their arrays as decoded.

type StorageReadRequest struct {
	AddressDomain *felt.Felt
	Key           *felt.Felt
}

type StorageWriteRequest struct {
	AddressDomain *felt.Felt
	Key           *felt.Felt
	Value         *felt.Felt
}

type EmitEventRequest struct {
	Keys []*felt.Felt
	Data []*felt.Felt
}

type SendMessageToL1Request struct {
	ToAddress *felt.Felt
	Payload   []*felt.Felt
}

type CallContractRequest struct {
	ContractAddress *felt.Felt
	Selector        *felt.Felt
	Calldata        []*felt.Felt
}

type LibraryCallRequest struct {
	ClassHash *felt.Felt
	Selector  *felt.Felt
	Calldata  []*felt.Felt
	L1Handler bool
}

type DelegateCallRequest struct {
	CodeAddress *felt.Felt
	Selector    *felt.Felt
	Calldata    []*felt.Felt
}

type DeployRequest struct {
	ClassHash      *felt.Felt
	Salt           *felt.Felt
	Calldata       []*felt.Felt
	DeployFromZero bool
}

type ReplaceClassRequest struct {
	ClassHash *felt.Felt
}

type GetBlockNumberRequest struct{}
type GetBlockTimestampRequest struct{}
type GetSequencerAddressRequest struct{}
type GetTxInfoRequest struct{}
type GetTxSignatureRequest struct{}
type GetCallerAddressRequest struct{}
type GetContractAddressRequest struct{}

func (StorageReadRequest) SyscallName() string     { return "storage_read" }
func (StorageWriteRequest) SyscallName() string    { return "storage_write" }
func (EmitEventRequest) SyscallName() string       { return "emit_event" }
func (SendMessageToL1Request) SyscallName() string { return "send_message_to_l1" }
func (CallContractRequest) SyscallName() string    { return "call_contract" }
func (r LibraryCallRequest) SyscallName() string {
	if r.L1Handler {
		return "library_call_l1_handler"
	}
	return "library_call"
}
func (DelegateCallRequest) SyscallName() string        { return "delegate_call" }
func (DeployRequest) SyscallName() string              { return "deploy" }
func (ReplaceClassRequest) SyscallName() string        { return "replace_class" }
func (GetBlockNumberRequest) SyscallName() string      { return "get_block_number" }
func (GetBlockTimestampRequest) SyscallName() string   { return "get_block_timestamp" }
func (GetSequencerAddressRequest) SyscallName() string { return "get_sequencer_address" }
func (GetTxInfoRequest) SyscallName() string           { return "get_tx_info" }
func (GetTxSignatureRequest) SyscallName() string      { return "get_tx_signature" }
func (GetCallerAddressRequest) SyscallName() string    { return "get_caller_address" }
func (GetContractAddressRequest) SyscallName() string  { return "get_contract_address" }

// Response types.

// FeltsResponse is a plain run of words: single values and arrays with
// their length prefix.
type FeltsResponse struct {
	Words []*felt.Felt
}

func (r FeltsResponse) Encode() []*felt.Felt { return r.Words }

// SingleFeltResponse answers with one word.
func SingleFeltResponse(v *felt.Felt) FeltsResponse {
	return FeltsResponse{Words: []*felt.Felt{v}}
}

// EmptyResponse answers with no words.
func EmptyResponse() FeltsResponse { return FeltsResponse{} }

// ArrayResponse answers with a length-prefixed array.
func ArrayResponse(values []*felt.Felt) FeltsResponse {
	words := make([]*felt.Felt, 0, 1+len(values))
	words = append(words, new(felt.Felt).SetUint64(uint64(len(values))))
	words = append(words, values...)
	return FeltsResponse{Words: words}
}

// CallResponse is the retdata of a nested call.
type CallResponse struct {
	Retdata []*felt.Felt
}

func (r CallResponse) Encode() []*felt.Felt { return ArrayResponse(r.Retdata).Words }

// DeployResponse carries the deployed address and the constructor retdata.
type DeployResponse struct {
	ContractAddress *felt.Felt
	Retdata         []*felt.Felt
}

func (r DeployResponse) Encode() []*felt.Felt {
	words := []*felt.Felt{r.ContractAddress}
	return append(words, ArrayResponse(r.Retdata).Words...)
}

// TxInfoResponse projects the transaction fields a contract may observe.
type TxInfoResponse struct {
	Version         *felt.Felt
	AccountAddress  *felt.Felt
	MaxFee          uint64
	Signature       []*felt.Felt
	TransactionHash *felt.Felt
	ChainID         *felt.Felt
	Nonce           *felt.Felt
}

func (r TxInfoResponse) Encode() []*felt.Felt {
	words := []*felt.Felt{
		r.Version,
		r.AccountAddress,
		new(felt.Felt).SetUint64(r.MaxFee),
	}
	words = append(words, ArrayResponse(r.Signature).Words...)
	return append(words, r.TransactionHash, r.ChainID, r.Nonce)
}

// Deprecated syscall selector words: the ASCII syscall name as a field
// element, as emitted by Cairo 0 programs.
var syscallSelectorNames = map[string]string{
	"StorageRead":          "storage_read",
	"StorageWrite":         "storage_write",
	"EmitEvent":            "emit_event",
	"SendMessageToL1":      "send_message_to_l1",
	"CallContract":         "call_contract",
	"LibraryCall":          "library_call",
	"LibraryCallL1Handler": "library_call_l1_handler",
	"DelegateCall":         "delegate_call",
	"Deploy":               "deploy",
	"ReplaceClass":         "replace_class",
	"GetBlockNumber":       "get_block_number",
	"GetBlockTimestamp":    "get_block_timestamp",
	"GetSequencerAddress":  "get_sequencer_address",
	"GetTxInfo":            "get_tx_info",
	"GetTxSignature":       "get_tx_signature",
	"GetCallerAddress":     "get_caller_address",
	"GetContractAddress":   "get_contract_address",
}

var selectorToSyscall = func() map[felt.Felt]string {
	m := make(map[felt.Felt]string, len(syscallSelectorNames))
	for word, name := range syscallSelectorNames {
		m[*new(felt.Felt).SetBytes([]byte(word))] = name
	}
	return m
}()

// frameReader walks a request's words with bounds checking.
type frameReader struct {
	words []*felt.Felt
	pos   int
}

func (r *frameReader) next() (*felt.Felt, error) {
	if r.pos >= len(r.words) {
		return nil, ErrMalformedSyscall
	}
	w := r.words[r.pos]
	r.pos++
	return w, nil
}

func (r *frameReader) nextUint() (uint64, error) {
	w, err := r.next()
	if err != nil {
		return 0, err
	}
	return feltToUint64(w)
}

func (r *frameReader) nextArray() ([]*felt.Felt, error) {
	n, err := r.nextUint()
	if err != nil {
		return nil, err
	}
	out := make([]*felt.Felt, 0, n)
	for i := uint64(0); i < n; i++ {
		w, err := r.next()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// feltToUint64 converts a small felt (length or flag) to a uint64.
func feltToUint64(f *felt.Felt) (uint64, error) {
	b := f.Bytes()
	for _, hi := range b[:24] {
		if hi != 0 {
			return 0, fmt.Errorf("%w: word does not fit uint64", ErrMalformedSyscall)
		}
	}
	var v uint64
	for _, lo := range b[24:] {
		v = v<<8 | uint64(lo)
	}
	return v, nil
}

// DecodeSyscallRequest reads one request from the words at the syscall
// pointer, returning the typed request and how many words it consumed.
func DecodeSyscallRequest(words []*felt.Felt) (SyscallRequest, int, error) {
	r := &frameReader{words: words}
	selector, err := r.next()
	if err != nil {
		return nil, 0, err
	}
	name, ok := selectorToSyscall[*selector]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownSyscall, selector)
	}

	var req SyscallRequest
	switch name {
	case "storage_read":
		key, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		req = StorageReadRequest{AddressDomain: &felt.Zero, Key: key}
	case "storage_write":
		key, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		value, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		req = StorageWriteRequest{AddressDomain: &felt.Zero, Key: key, Value: value}
	case "emit_event":
		keys, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		data, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		req = EmitEventRequest{Keys: keys, Data: data}
	case "send_message_to_l1":
		to, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		payload, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		req = SendMessageToL1Request{ToAddress: to, Payload: payload}
	case "call_contract":
		addr, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		sel, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		calldata, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		req = CallContractRequest{ContractAddress: addr, Selector: sel, Calldata: calldata}
	case "library_call", "library_call_l1_handler":
		classHash, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		sel, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		calldata, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		req = LibraryCallRequest{
			ClassHash: classHash,
			Selector:  sel,
			Calldata:  calldata,
			L1Handler: name == "library_call_l1_handler",
		}
	case "delegate_call":
		addr, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		sel, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		calldata, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		req = DelegateCallRequest{CodeAddress: addr, Selector: sel, Calldata: calldata}
	case "deploy":
		classHash, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		salt, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		calldata, err := r.nextArray()
		if err != nil {
			return nil, 0, err
		}
		fromZero, err := r.nextUint()
		if err != nil {
			return nil, 0, err
		}
		req = DeployRequest{
			ClassHash:      classHash,
			Salt:           salt,
			Calldata:       calldata,
			DeployFromZero: fromZero != 0,
		}
	case "replace_class":
		classHash, err := r.next()
		if err != nil {
			return nil, 0, err
		}
		req = ReplaceClassRequest{ClassHash: classHash}
	case "get_block_number":
		req = GetBlockNumberRequest{}
	case "get_block_timestamp":
		req = GetBlockTimestampRequest{}
	case "get_sequencer_address":
		req = GetSequencerAddressRequest{}
	case "get_tx_info":
		req = GetTxInfoRequest{}
	case "get_tx_signature":
		req = GetTxSignatureRequest{}
	case "get_caller_address":
		req = GetCallerAddressRequest{}
	case "get_contract_address":
		req = GetContractAddressRequest{}
	}
	return req, r.pos, nil
}
