package income

import (
	"errors"
	"math/big"
	"testing"

	"estatechain/core/types"
	"estatechain/native/params"
	"estatechain/native/registry"
)

type mockState struct {
	assets   map[uint64]*registry.Asset
	claims   map[uint64]int64
	policy   *params.IncomePolicy
	accounts map[[20]byte]*types.Account
	earned   map[[20]byte]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		assets:   make(map[uint64]*registry.Asset),
		claims:   make(map[uint64]int64),
		accounts: make(map[[20]byte]*types.Account),
		earned:   make(map[[20]byte]*big.Int),
	}
}

func (m *mockState) AssetGet(id uint64) (*registry.Asset, bool, error) {
	asset, ok := m.assets[id]
	if !ok {
		return nil, false, nil
	}
	return asset.Clone(), true, nil
}
func (m *mockState) IncomeLastClaim(assetID uint64) (int64, error) { return m.claims[assetID], nil }
func (m *mockState) SetIncomeLastClaim(assetID uint64, ts int64) error {
	m.claims[assetID] = ts
	return nil
}
func (m *mockState) IncomePolicy() (*params.IncomePolicy, error) { return m.policy.Clone(), nil }
func (m *mockState) AddIncomeEarned(addr [20]byte, amount *big.Int) error {
	total, ok := m.earned[addr]
	if !ok {
		total = big.NewInt(0)
	}
	m.earned[addr] = new(big.Int).Add(total, amount)
	return nil
}
func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{}, nil
	}
	return acc.Clone(), nil
}
func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) balance(addr [20]byte) int64 {
	acc, ok := m.accounts[addr]
	if !ok || acc.BalanceEST == nil {
		return 0
	}
	return acc.BalanceEST.Int64()
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

const epoch = 1_700_000_000

func newTestEngine(policy *params.IncomePolicy) (*Engine, *mockState, *int64) {
	state := newMockState()
	state.policy = policy
	now := int64(epoch)
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return now })
	return engine, state, &now
}

func flatPolicy(ratePerDay int64) *params.IncomePolicy {
	return &params.IncomePolicy{BaseRatePerDay: big.NewInt(ratePerDay)}
}

func seedAsset(state *mockState, id uint64, owner [20]byte, level uint8, createdAt, lastClaim int64) {
	state.assets[id] = &registry.Asset{
		ID:        id,
		Owner:     owner,
		Level:     level,
		CreatedAt: createdAt,
	}
	state.claims[id] = lastClaim
}

func TestClaimOneDay(t *testing.T) {
	engine, state, now := newTestEngine(flatPolicy(100))
	owner := addr(1)
	seedAsset(state, 1, owner, 1, epoch, epoch)
	*now = epoch + daySeconds

	got, err := engine.Claim(1, owner)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.Int64() != 100 {
		t.Fatalf("claim amount: got %s, want 100", got)
	}
	if state.balance(owner) != 100 {
		t.Fatalf("balance: got %d, want 100", state.balance(owner))
	}
	if state.earned[owner].Int64() != 100 {
		t.Fatalf("earned stat: got %s", state.earned[owner])
	}
	if state.claims[1] != *now {
		t.Fatalf("last claim not advanced")
	}
}

func TestClaimRequirements(t *testing.T) {
	engine, state, now := newTestEngine(flatPolicy(100))
	owner := addr(1)
	seedAsset(state, 1, owner, 1, epoch, epoch)

	if _, err := engine.Claim(99, owner); !errors.Is(err, registry.ErrAssetNotFound) {
		t.Fatalf("missing asset: got %v", err)
	}
	if _, err := engine.Claim(1, addr(9)); !errors.Is(err, registry.ErrNotOwner) {
		t.Fatalf("non-owner: got %v", err)
	}
	*now = epoch + daySeconds - 1
	if _, err := engine.Claim(1, owner); !errors.Is(err, ErrNotYetAvailable) {
		t.Fatalf("partial day: got %v", err)
	}
	state.claims[1] = 0
	*now = epoch + daySeconds
	if _, err := engine.Claim(1, owner); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("zero last claim: got %v", err)
	}
}

func TestClaimLevelMultiplier(t *testing.T) {
	engine, state, now := newTestEngine(flatPolicy(100))
	owner := addr(1)
	seedAsset(state, 1, owner, 5, epoch, epoch)
	*now = epoch + daySeconds

	got, err := engine.Claim(1, owner)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Level 5 multiplies by 140%.
	if got.Int64() != 140 {
		t.Fatalf("claim amount: got %s, want 140", got)
	}
}

func TestLateClaimMatchesDailyClaims(t *testing.T) {
	// With no holding bonus, one claim after N days must equal N one-day claims.
	const days = 5
	daily, dailyState, dailyNow := newTestEngine(flatPolicy(100))
	owner := addr(1)
	seedAsset(dailyState, 1, owner, 3, epoch, epoch)
	dailyTotal := big.NewInt(0)
	for i := 1; i <= days; i++ {
		*dailyNow = epoch + int64(i)*daySeconds
		got, err := daily.Claim(1, owner)
		if err != nil {
			t.Fatalf("daily claim %d: %v", i, err)
		}
		dailyTotal.Add(dailyTotal, got)
	}

	late, lateState, lateNow := newTestEngine(flatPolicy(100))
	seedAsset(lateState, 1, owner, 3, epoch, epoch)
	*lateNow = epoch + days*daySeconds
	lateTotal, err := late.Claim(1, owner)
	if err != nil {
		t.Fatalf("late claim: %v", err)
	}
	if lateTotal.Cmp(dailyTotal) != 0 {
		t.Fatalf("late claim %s != daily total %s", lateTotal, dailyTotal)
	}
}

func TestHoldingBonusAccruesWithAge(t *testing.T) {
	policy := &params.IncomePolicy{
		BaseRatePerDay:     big.NewInt(1_000),
		HoldingBonusBps:    10,
		MaxHoldingBonusBps: 500,
	}
	engine, state, now := newTestEngine(policy)
	owner := addr(1)
	// Asset is 30 days old; the last claim was one day ago.
	created := int64(epoch)
	seedAsset(state, 1, owner, 1, created, created+29*daySeconds)
	*now = created + 30*daySeconds

	got, err := engine.Claim(1, owner)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// base 1000, bonus 1000*10*30/10000 = 30.
	if got.Int64() != 1_030 {
		t.Fatalf("claim amount: got %s, want 1030", got)
	}
}

func TestHoldingBonusIsCapped(t *testing.T) {
	policy := &params.IncomePolicy{
		BaseRatePerDay:     big.NewInt(1_000),
		HoldingBonusBps:    10,
		MaxHoldingBonusBps: 500,
	}
	engine, state, now := newTestEngine(policy)
	owner := addr(1)
	// 1000 age days would earn 1000 bps of bonus; the cap holds it at 500.
	created := int64(epoch)
	seedAsset(state, 1, owner, 1, created, created+999*daySeconds)
	*now = created + 1_000*daySeconds

	got, err := engine.Claim(1, owner)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// base 1000, capped bonus 1000*500/10000 = 50.
	if got.Int64() != 1_050 {
		t.Fatalf("claim amount: got %s, want 1050", got)
	}
}

func TestPreviewAvailableDoesNotMutate(t *testing.T) {
	engine, state, now := newTestEngine(flatPolicy(100))
	owner := addr(1)
	seedAsset(state, 1, owner, 1, epoch, epoch)
	*now = epoch + 2*daySeconds

	preview, err := engine.PreviewAvailable(1)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Int64() != 200 {
		t.Fatalf("preview: got %s, want 200", preview)
	}
	if state.claims[1] != epoch {
		t.Fatalf("preview advanced the claim timestamp")
	}
	if state.balance(owner) != 0 {
		t.Fatalf("preview credited funds")
	}
	// A real claim afterwards pays the same amount.
	got, err := engine.Claim(1, owner)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.Cmp(preview) != 0 {
		t.Fatalf("claim %s != preview %s", got, preview)
	}
}

func TestPreviewZeroWhenIneligible(t *testing.T) {
	engine, state, now := newTestEngine(flatPolicy(100))
	owner := addr(1)
	seedAsset(state, 1, owner, 1, epoch, 0)
	*now = epoch + daySeconds

	preview, err := engine.PreviewAvailable(1)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Sign() != 0 {
		t.Fatalf("ineligible preview: got %s, want 0", preview)
	}
	state.claims[1] = *now
	preview, err = engine.PreviewAvailable(1)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Sign() != 0 {
		t.Fatalf("same-day preview: got %s, want 0", preview)
	}
}
