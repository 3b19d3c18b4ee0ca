package params

import "math/big"

// PriceConfig describes a purchasable property type: its base prices in both
// currencies, the derived-attribute bases used at mint time, and whether the
// type is currently purchasable.
type PriceConfig struct {
	PropertyType         string   `json:"propertyType"`
	BasePriceEST         *big.Int `json:"basePriceEST"`
	BasePriceZEST        *big.Int `json:"basePriceZEST"`
	BaseStatusPoints     uint64   `json:"baseStatusPoints"`
	BaseYieldRate        uint64   `json:"baseYieldRate"`
	Active               bool     `json:"active"`
	VerificationRequired bool     `json:"verificationRequired"`
}

// Clone returns a deep copy of the price configuration.
func (c *PriceConfig) Clone() *PriceConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.BasePriceEST != nil {
		clone.BasePriceEST = new(big.Int).Set(c.BasePriceEST)
	}
	if c.BasePriceZEST != nil {
		clone.BasePriceZEST = new(big.Int).Set(c.BasePriceZEST)
	}
	return &clone
}

// FeePolicy carries the purchase fee split. Basis points are applied over
// 10_000; the treasury and dev wallets receive their share on every purchase.
type FeePolicy struct {
	TreasuryBps uint32   `json:"treasuryBps"`
	DevBps      uint32   `json:"devBps"`
	Treasury    [20]byte `json:"treasury"`
	Dev         [20]byte `json:"dev"`
}

// IncomePolicy parameterises daily income accrual.
type IncomePolicy struct {
	// BaseRatePerDay is the EST amount accrued per asset per full elapsed day
	// before level and holding multipliers.
	BaseRatePerDay *big.Int `json:"baseRatePerDay"`
	// HoldingBonusBps accrues per day of asset age, applied over 10_000.
	HoldingBonusBps uint32 `json:"holdingBonusBps"`
	// MaxHoldingBonusBps caps the holding bonus, applied over 10_000.
	MaxHoldingBonusBps uint32 `json:"maxHoldingBonusBps"`
}

// Clone returns a deep copy of the income policy.
func (p *IncomePolicy) Clone() *IncomePolicy {
	if p == nil {
		return nil
	}
	clone := *p
	if p.BaseRatePerDay != nil {
		clone.BaseRatePerDay = new(big.Int).Set(p.BaseRatePerDay)
	}
	return &clone
}
