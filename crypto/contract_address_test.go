package crypto

import (
	"testing"

	"github.com/NethermindEth/juno/core/felt"
)

func TestCalculateContractAddressPure(t *testing.T) {
	salt := new(felt.Felt).SetUint64(0)
	classHash := new(felt.Felt).SetUint64(0x1111)
	calldata := []*felt.Felt{new(felt.Felt).SetUint64(10)}

	a1 := CalculateContractAddress(salt, classHash, calldata, &felt.Zero)
	a2 := CalculateContractAddress(salt, classHash, calldata, &felt.Zero)
	if !a1.Equal(a2) {
		t.Fatalf("address not deterministic: %s != %s", a1, a2)
	}

	// Matches the spelled-out chain.
	want := ComputeHashOnElements([]*felt.Felt{
		ContractAddressPrefix,
		&felt.Zero,
		salt,
		classHash,
		ComputeHashOnElements(calldata),
	})
	if want.Cmp(L2AddressUpperBound) >= 0 {
		want = new(felt.Felt).Sub(want, L2AddressUpperBound)
	}
	if !a1.Equal(want) {
		t.Errorf("address = %s, want %s", a1, want)
	}
}

func TestCalculateContractAddressInputsMatter(t *testing.T) {
	salt := new(felt.Felt).SetUint64(1)
	classHash := new(felt.Felt).SetUint64(0x2222)
	deployer := new(felt.Felt).SetUint64(0x99)
	base := CalculateContractAddress(salt, classHash, nil, deployer)

	variants := []*felt.Felt{
		CalculateContractAddress(new(felt.Felt).SetUint64(2), classHash, nil, deployer),
		CalculateContractAddress(salt, new(felt.Felt).SetUint64(0x2223), nil, deployer),
		CalculateContractAddress(salt, classHash, []*felt.Felt{new(felt.Felt).SetUint64(1)}, deployer),
		CalculateContractAddress(salt, classHash, nil, &felt.Zero),
	}
	for i, v := range variants {
		if base.Equal(v) {
			t.Errorf("variant %d collided with base address %s", i, base)
		}
	}
}

func TestCalculateContractAddressBelowBound(t *testing.T) {
	for i := uint64(0); i < 64; i++ {
		addr := CalculateContractAddress(
			new(felt.Felt).SetUint64(i),
			new(felt.Felt).SetUint64(0xdead),
			nil,
			&felt.Zero,
		)
		if addr.Cmp(L2AddressUpperBound) >= 0 {
			t.Fatalf("address %s not reduced below 2^251-256", addr)
		}
	}
}
