package payments

import (
	"math/big"

	"estatechain/native/pricing"
)

// PendingPayment is an in-flight two-phase payment awaiting external
// confirmation. Exactly one of {Completed=true, record deleted} ever holds: a
// completed payment is never re-completed and an expired payment can only be
// cancelled.
type PendingPayment struct {
	ID           [32]byte         `json:"id"`
	Buyer        [20]byte         `json:"buyer"`
	PropertyType string           `json:"propertyType"`
	Name         string           `json:"name"`
	Location     string           `json:"location"`
	Level        uint8            `json:"level"`
	MetadataRef  string           `json:"metadataRef"`
	Amount       *big.Int         `json:"amount"`
	Currency     pricing.Currency `json:"currency"`
	CreatedAt    int64            `json:"createdAt"`
	Completed    bool             `json:"completed"`
}

// Clone returns a deep copy of the pending payment.
func (p *PendingPayment) Clone() *PendingPayment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	}
	return &clone
}

// Deadline returns the instant after which the payment can no longer settle.
func (p *PendingPayment) Deadline() int64 {
	return p.CreatedAt + paymentWindowSeconds
}

// UserStats aggregates a buyer's lifetime activity. Every counter is
// monotonically non-decreasing.
type UserStats struct {
	TotalPurchases    uint64   `json:"totalPurchases"`
	TotalSpentEST     *big.Int `json:"totalSpentEST"`
	TotalSpentZEST    *big.Int `json:"totalSpentZEST"`
	TotalIncomeEarned *big.Int `json:"totalIncomeEarned"`
}

// Clone returns a deep copy of the stats record.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}
	clone := *s
	if s.TotalSpentEST != nil {
		clone.TotalSpentEST = new(big.Int).Set(s.TotalSpentEST)
	}
	if s.TotalSpentZEST != nil {
		clone.TotalSpentZEST = new(big.Int).Set(s.TotalSpentZEST)
	}
	if s.TotalIncomeEarned != nil {
		clone.TotalIncomeEarned = new(big.Int).Set(s.TotalIncomeEarned)
	}
	return &clone
}

// EnsureUserStats zero-fills nil fields so callers can mutate freely.
func EnsureUserStats(s *UserStats) *UserStats {
	if s == nil {
		s = &UserStats{}
	}
	if s.TotalSpentEST == nil {
		s.TotalSpentEST = big.NewInt(0)
	}
	if s.TotalSpentZEST == nil {
		s.TotalSpentZEST = big.NewInt(0)
	}
	if s.TotalIncomeEarned == nil {
		s.TotalIncomeEarned = big.NewInt(0)
	}
	return s
}
