package fees

import (
	"math/big"

	"estatechain/native/params"
)

// Split summarises how a purchase amount divides between the treasury, the
// dev wallet, and the remainder retained by the module vault.
type Split struct {
	Treasury  *big.Int
	Dev       *big.Int
	Remainder *big.Int
}

// Clone returns a copy of the split with duplicated big.Int values.
func (s Split) Clone() Split {
	clone := Split{}
	if s.Treasury != nil {
		clone.Treasury = new(big.Int).Set(s.Treasury)
	}
	if s.Dev != nil {
		clone.Dev = new(big.Int).Set(s.Dev)
	}
	if s.Remainder != nil {
		clone.Remainder = new(big.Int).Set(s.Remainder)
	}
	return clone
}

// Apply evaluates the fee policy against a gross purchase amount. Shares are
// computed over 10_000 basis points with truncating division; the remainder
// absorbs any rounding dust so the three parts always sum to the input.
func Apply(amount *big.Int, policy params.FeePolicy) Split {
	split := Split{Treasury: big.NewInt(0), Dev: big.NewInt(0), Remainder: big.NewInt(0)}
	if amount == nil || amount.Sign() <= 0 {
		return split
	}
	split.Remainder = new(big.Int).Set(amount)
	if policy.TreasuryBps > 0 {
		treasury := new(big.Int).Mul(amount, big.NewInt(int64(policy.TreasuryBps)))
		treasury = treasury.Div(treasury, big.NewInt(10_000))
		split.Treasury = treasury
		split.Remainder = new(big.Int).Sub(split.Remainder, treasury)
	}
	if policy.DevBps > 0 {
		dev := new(big.Int).Mul(amount, big.NewInt(int64(policy.DevBps)))
		dev = dev.Div(dev, big.NewInt(10_000))
		split.Dev = dev
		split.Remainder = new(big.Int).Sub(split.Remainder, dev)
	}
	return split
}
