package registry

import (
	"math/big"

	"estatechain/native/pricing"
)

// Asset is a unique, ownable property record. StatusPoints and YieldRate are
// derived from the property type config and the level; they are recomputed on
// every upgrade with the same formulas used at mint.
type Asset struct {
	ID               uint64           `json:"id"`
	Owner            [20]byte         `json:"owner"`
	OriginalOwner    [20]byte         `json:"originalOwner"`
	Name             string           `json:"name"`
	PropertyType     string           `json:"propertyType"`
	Location         string           `json:"location"`
	Level            uint8            `json:"level"`
	StatusPoints     uint64           `json:"statusPoints"`
	YieldRate        uint64           `json:"yieldRate"`
	PurchasePrice    *big.Int         `json:"purchasePrice"`
	PurchaseCurrency pricing.Currency `json:"purchaseCurrency"`
	MetadataRef      string           `json:"metadataRef"`
	CreatedAt        int64            `json:"createdAt"`
	LastTransferAt   int64            `json:"lastTransferAt"`
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.PurchasePrice != nil {
		clone.PurchasePrice = new(big.Int).Set(a.PurchasePrice)
	}
	return &clone
}

// ExtendedAsset augments the base record with derived holding data.
type ExtendedAsset struct {
	Asset           *Asset `json:"asset"`
	AgeDays         uint64 `json:"ageDays"`
	LastIncomeClaim int64  `json:"lastIncomeClaim"`
}

// OwnerStats aggregates an owner's holdings. AverageLevel truncates toward
// zero.
type OwnerStats struct {
	Count             uint64   `json:"count"`
	TotalStatusPoints uint64   `json:"totalStatusPoints"`
	AverageLevel      uint64   `json:"averageLevel"`
	TotalValue        *big.Int `json:"totalValue"`
}
