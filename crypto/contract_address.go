// contract_address.go implements the deterministic contract-address
// derivation used by deploy-account transactions and the deploy syscall.
package crypto

import (
	"github.com/NethermindEth/juno/core/felt"
)

// ContractAddressPrefix is the ASCII string "STARKNET_CONTRACT_ADDRESS" as a
// field element, the first link of the address Pedersen chain.
var ContractAddressPrefix = new(felt.Felt).SetBytes([]byte("STARKNET_CONTRACT_ADDRESS"))

// L2AddressUpperBound bounds the L2 address space: 2^251 - 256. Derived
// addresses are reduced modulo this value.
var L2AddressUpperBound = func() *felt.Felt {
	bound, err := new(felt.Felt).SetString("0x7ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff00")
	if err != nil {
		panic(err)
	}
	return bound
}()

// CalculateContractAddress derives the address of a contract deployed with
// the given salt, class hash and constructor calldata by a deployer:
//
//	pedersen_chain(PREFIX, deployer, salt, class_hash, h(calldata)) mod 2^251-256
//
// The address is a pure function of its inputs; a deployer of zero is used
// for deploy-account transactions and deploy_from_zero syscalls.
func CalculateContractAddress(
	salt *felt.Felt,
	classHash *felt.Felt,
	constructorCalldata []*felt.Felt,
	deployerAddress *felt.Felt,
) *felt.Felt {
	raw := ComputeHashOnElements([]*felt.Felt{
		ContractAddressPrefix,
		deployerAddress,
		salt,
		classHash,
		ComputeHashOnElements(constructorCalldata),
	})
	// The Pedersen output is < P < 2 * L2AddressUpperBound, so a single
	// conditional subtraction implements the reduction.
	if raw.Cmp(L2AddressUpperBound) >= 0 {
		raw = new(felt.Felt).Sub(raw, L2AddressUpperBound)
	}
	return raw
}
