package state

import (
	"testing"

	"github.com/starkexec/starkexec/core/types"
)

func TestStateDiffRoundTrip(t *testing.T) {
	// Build an overlay with writes of all four kinds.
	s := NewCachedState(NewInMemoryStateReader())
	s.SetStorageAt(fu(1), fu(10), fu(100))
	s.SetStorageAt(fu(1), fu(11), fu(101))
	s.SetStorageAt(fu(2), fu(10), fu(200))
	if err := s.DeployContract(fu(3), types.FeltToClassHash(fu(0xaa))); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrementNonce(fu(3)); err != nil {
		t.Fatal(err)
	}
	s.SetContractClass(fu(0xaa), &types.DeprecatedContractClass{})

	diff := DiffFromCachedState(s)

	// Apply to a clean reader and compare reads.
	clean := NewInMemoryStateReader()
	diff.ApplyTo(clean)

	fresh := NewCachedState(clean)
	for _, tc := range []struct {
		addr, key, want uint64
	}{
		{1, 10, 100},
		{1, 11, 101},
		{2, 10, 200},
	} {
		got, err := fresh.GetStorageAt(fu(tc.addr), fu(tc.key))
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(fu(tc.want)) {
			t.Errorf("slot (%d,%d) = %s, want %d", tc.addr, tc.key, got, tc.want)
		}
	}

	// Unwritten keys read zero.
	got, _ := fresh.GetStorageAt(fu(1), fu(12))
	if !got.IsZero() {
		t.Errorf("unwritten slot = %s, want 0", got)
	}

	hash, _ := fresh.GetClassHashAt(fu(3))
	if !hash.Felt().Equal(fu(0xaa)) {
		t.Errorf("class hash = %s", hash.Hex())
	}
	nonce, _ := fresh.GetNonceAt(fu(3))
	if !nonce.Equal(fu(1)) {
		t.Errorf("nonce = %s, want 1", nonce)
	}
	if _, err := fresh.GetContractClass(fu(0xaa)); err != nil {
		t.Errorf("declared class missing after round trip: %v", err)
	}
}

func TestDiffReflectsApplyStateUpdate(t *testing.T) {
	src := NewCachedState(NewInMemoryStateReader())
	src.SetStorageAt(fu(9), fu(1), fu(42))
	diff := DiffFromCachedState(src)

	dst := NewCachedState(NewInMemoryStateReader())
	dst.ApplyStateUpdate(diff)

	got, err := dst.GetStorageAt(fu(9), fu(1))
	if err != nil || !got.Equal(fu(42)) {
		t.Errorf("after ApplyStateUpdate, slot = %s, err %v", got, err)
	}
}
