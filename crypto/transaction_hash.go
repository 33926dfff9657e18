// transaction_hash.go implements the transaction hash formulas: a Pedersen
// chain over [prefix, version, sender, selector_field, h(calldata), max_fee,
// chain_id, additional_data...], with per-kind prefixes.
package crypto

import (
	"github.com/NethermindEth/juno/core/felt"
)

// Transaction hash prefixes: the ASCII transaction kind name as a field
// element (e.g. "invoke" = 0x696e766f6b65).
var (
	DeclarePrefix       = new(felt.Felt).SetBytes([]byte("declare"))
	DeployPrefix        = new(felt.Felt).SetBytes([]byte("deploy"))
	DeployAccountPrefix = new(felt.Felt).SetBytes([]byte("deploy_account"))
	InvokePrefix        = new(felt.Felt).SetBytes([]byte("invoke"))
	L1HandlerPrefix     = new(felt.Felt).SetBytes([]byte("l1_handler"))
)

// CalculateTransactionHashCommon computes the hash shared by every
// transaction kind. additionalData carries version-specific trailing fields
// (the nonce for version >= 1 transactions).
func CalculateTransactionHashCommon(
	prefix *felt.Felt,
	version *felt.Felt,
	senderAddress *felt.Felt,
	entryPointSelectorField *felt.Felt,
	calldata []*felt.Felt,
	maxFee uint64,
	chainID *felt.Felt,
	additionalData []*felt.Felt,
) *felt.Felt {
	elems := make([]*felt.Felt, 0, 7+len(additionalData))
	elems = append(elems,
		prefix,
		version,
		senderAddress,
		entryPointSelectorField,
		ComputeHashOnElements(calldata),
		new(felt.Felt).SetUint64(maxFee),
		chainID,
	)
	elems = append(elems, additionalData...)
	return ComputeHashOnElements(elems)
}

// CalculateInvokeTransactionHash computes the hash of an invoke transaction.
// The selector field and additional data must already have been derived from
// the version/nonce regime by the caller.
func CalculateInvokeTransactionHash(
	version *felt.Felt,
	contractAddress *felt.Felt,
	entryPointSelectorField *felt.Felt,
	calldata []*felt.Felt,
	maxFee uint64,
	chainID *felt.Felt,
	additionalData []*felt.Felt,
) *felt.Felt {
	return CalculateTransactionHashCommon(
		InvokePrefix, version, contractAddress, entryPointSelectorField,
		calldata, maxFee, chainID, additionalData)
}

// CalculateDeployAccountTransactionHash computes the hash of a
// deploy-account transaction. The calldata hashed is
// [class_hash, salt, constructor_calldata...] and the selector field is zero.
func CalculateDeployAccountTransactionHash(
	version *felt.Felt,
	contractAddress *felt.Felt,
	classHash *felt.Felt,
	constructorCalldata []*felt.Felt,
	maxFee uint64,
	nonce *felt.Felt,
	salt *felt.Felt,
	chainID *felt.Felt,
) *felt.Felt {
	calldata := make([]*felt.Felt, 0, 2+len(constructorCalldata))
	calldata = append(calldata, classHash, salt)
	calldata = append(calldata, constructorCalldata...)

	return CalculateTransactionHashCommon(
		DeployAccountPrefix, version, contractAddress, &felt.Zero,
		calldata, maxFee, chainID, []*felt.Felt{nonce})
}

// CalculateDeclareTransactionHash computes the hash of a declare
// transaction. Version 0 declares carry no nonce; version >= 1 append it as
// additional data.
func CalculateDeclareTransactionHash(
	version *felt.Felt,
	senderAddress *felt.Felt,
	classHash *felt.Felt,
	maxFee uint64,
	chainID *felt.Felt,
	nonce *felt.Felt,
) *felt.Felt {
	var additionalData []*felt.Felt
	if !version.IsZero() {
		additionalData = []*felt.Felt{nonce}
	}
	return CalculateTransactionHashCommon(
		DeclarePrefix, version, senderAddress, &felt.Zero,
		[]*felt.Felt{classHash}, maxFee, chainID, additionalData)
}
