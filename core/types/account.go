package types

import "math/big"

// Account holds the balances tracked for a single address. EST is the primary
// settlement currency; ZEST is the secondary reward currency. Nonce counts the
// payments a buyer has initiated and seeds pending-payment identifiers.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalanceEST  *big.Int `json:"balanceEST"`
	BalanceZEST *big.Int `json:"balanceZEST"`
}

// Clone returns a deep copy of the account so callers can mutate it without
// aliasing stored balances.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalanceEST != nil {
		clone.BalanceEST = new(big.Int).Set(a.BalanceEST)
	}
	if a.BalanceZEST != nil {
		clone.BalanceZEST = new(big.Int).Set(a.BalanceZEST)
	}
	return &clone
}
