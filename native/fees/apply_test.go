package fees

import (
	"math/big"
	"testing"

	"estatechain/native/params"
)

func TestApplySplitsByBasisPoints(t *testing.T) {
	policy := params.FeePolicy{TreasuryBps: 500, DevBps: 200}
	split := Apply(big.NewInt(10_000), policy)
	if split.Treasury.Int64() != 500 {
		t.Fatalf("treasury: got %s, want 500", split.Treasury)
	}
	if split.Dev.Int64() != 200 {
		t.Fatalf("dev: got %s, want 200", split.Dev)
	}
	if split.Remainder.Int64() != 9_300 {
		t.Fatalf("remainder: got %s, want 9300", split.Remainder)
	}
}

func TestApplyTruncatesShares(t *testing.T) {
	policy := params.FeePolicy{TreasuryBps: 333, DevBps: 167}
	amount := big.NewInt(999)
	split := Apply(amount, policy)
	// 999*333/10000 = 33.2667 -> 33; 999*167/10000 = 16.68 -> 16.
	if split.Treasury.Int64() != 33 {
		t.Fatalf("treasury: got %s, want 33", split.Treasury)
	}
	if split.Dev.Int64() != 16 {
		t.Fatalf("dev: got %s, want 16", split.Dev)
	}
	sum := new(big.Int).Add(split.Treasury, split.Dev)
	sum = sum.Add(sum, split.Remainder)
	if sum.Cmp(amount) != 0 {
		t.Fatalf("shares do not sum to input: %s != %s", sum, amount)
	}
}

func TestApplyZeroPolicy(t *testing.T) {
	split := Apply(big.NewInt(500), params.FeePolicy{})
	if split.Treasury.Sign() != 0 || split.Dev.Sign() != 0 {
		t.Fatalf("expected zero fees, got treasury=%s dev=%s", split.Treasury, split.Dev)
	}
	if split.Remainder.Int64() != 500 {
		t.Fatalf("remainder: got %s, want 500", split.Remainder)
	}
}

func TestApplyNonPositiveAmount(t *testing.T) {
	policy := params.FeePolicy{TreasuryBps: 500, DevBps: 200}
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		split := Apply(amount, policy)
		if split.Treasury.Sign() != 0 || split.Dev.Sign() != 0 || split.Remainder.Sign() != 0 {
			t.Fatalf("amount %v: expected all-zero split", amount)
		}
	}
}
