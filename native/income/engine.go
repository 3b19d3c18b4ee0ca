package income

import (
	"errors"
	"math/big"
	"time"

	"estatechain/core/events"
	"estatechain/core/types"
	"estatechain/native/params"
	"estatechain/native/registry"
)

const daySeconds = 86_400

var (
	errNilState = errors.New("income: state not configured")

	// ErrNotEligible is returned when the asset has no recorded last-claim
	// time; a zero timestamp means the asset never entered income accrual.
	ErrNotEligible = errors.New("income: asset not income-eligible")
	// ErrNotYetAvailable is returned when less than one full day has elapsed
	// since the last claim.
	ErrNotYetAvailable = errors.New("income: no full day elapsed since last claim")
)

type engineState interface {
	AssetGet(id uint64) (*registry.Asset, bool, error)
	IncomeLastClaim(assetID uint64) (int64, error)
	SetIncomeLastClaim(assetID uint64, ts int64) error
	IncomePolicy() (*params.IncomePolicy, error)
	AddIncomeEarned(addr [20]byte, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine computes and disburses time-based income per asset. Claims advance
// the asset's last-claim timestamp before any balance is credited.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an income engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// LevelMultiplier returns the income percentage multiplier for a level: 100%
// at level 1, +10 points per level above it.
func LevelMultiplier(level uint8) uint64 {
	return 100 + uint64(level-1)*10
}

// compute evaluates the accrual formula against the policy. All divisions
// truncate toward zero.
func compute(policy *params.IncomePolicy, level uint8, daysElapsed, ageDays uint64) *big.Int {
	if policy == nil || policy.BaseRatePerDay == nil || policy.BaseRatePerDay.Sign() <= 0 || daysElapsed == 0 {
		return big.NewInt(0)
	}
	base := new(big.Int).Mul(policy.BaseRatePerDay, new(big.Int).SetUint64(daysElapsed))
	bonus := new(big.Int).Mul(base, new(big.Int).SetUint64(uint64(policy.HoldingBonusBps)))
	bonus = bonus.Mul(bonus, new(big.Int).SetUint64(ageDays))
	bonus = bonus.Div(bonus, big.NewInt(10_000))
	bonusCap := new(big.Int).Mul(base, new(big.Int).SetUint64(uint64(policy.MaxHoldingBonusBps)))
	bonusCap = bonusCap.Div(bonusCap, big.NewInt(10_000))
	if bonus.Cmp(bonusCap) > 0 {
		bonus = bonusCap
	}
	total := new(big.Int).Add(base, bonus)
	total = total.Mul(total, new(big.Int).SetUint64(LevelMultiplier(level)))
	return total.Div(total, big.NewInt(100))
}

func elapsedDays(from, to int64) uint64 {
	if to <= from {
		return 0
	}
	return uint64(to-from) / daySeconds
}

// Claim disburses accrued income for the asset to its current owner. The
// claimant must own the asset, the asset must be income-eligible, and at
// least one full day must have elapsed since the last claim.
func (e *Engine) Claim(assetID uint64, claimant [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	asset, ok, err := e.state.AssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, registry.ErrAssetNotFound
	}
	if asset.Owner != claimant {
		return nil, registry.ErrNotOwner
	}
	lastClaim, err := e.state.IncomeLastClaim(assetID)
	if err != nil {
		return nil, err
	}
	if lastClaim == 0 {
		return nil, ErrNotEligible
	}
	now := e.now()
	days := elapsedDays(lastClaim, now)
	if days == 0 {
		return nil, ErrNotYetAvailable
	}
	policy, err := e.state.IncomePolicy()
	if err != nil {
		return nil, err
	}
	total := compute(policy, asset.Level, days, elapsedDays(asset.CreatedAt, now))
	// Advance the claim timestamp before crediting so a reentrant call sees
	// zero elapsed days.
	if err := e.state.SetIncomeLastClaim(assetID, now); err != nil {
		return nil, err
	}
	if total.Sign() > 0 {
		acc, err := e.state.GetAccount(claimant[:])
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = &types.Account{BalanceEST: big.NewInt(0), BalanceZEST: big.NewInt(0)}
		}
		if acc.BalanceEST == nil {
			acc.BalanceEST = big.NewInt(0)
		}
		acc.BalanceEST = new(big.Int).Add(acc.BalanceEST, total)
		if err := e.state.PutAccount(claimant[:], acc); err != nil {
			return nil, err
		}
		if err := e.state.AddIncomeEarned(claimant, total); err != nil {
			return nil, err
		}
	}
	if e.emitter != nil {
		e.emitter.Emit(events.IncomeClaimed{
			AssetID:  assetID,
			Claimant: claimant,
			Amount:   new(big.Int).Set(total),
			Days:     days,
		})
	}
	return total, nil
}

// PreviewAvailable runs the claim computation without mutating state. It
// returns zero when the asset is ineligible or no full day has elapsed.
func (e *Engine) PreviewAvailable(assetID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	asset, ok, err := e.state.AssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, registry.ErrAssetNotFound
	}
	lastClaim, err := e.state.IncomeLastClaim(assetID)
	if err != nil {
		return nil, err
	}
	if lastClaim == 0 {
		return big.NewInt(0), nil
	}
	now := e.now()
	days := elapsedDays(lastClaim, now)
	if days == 0 {
		return big.NewInt(0), nil
	}
	policy, err := e.state.IncomePolicy()
	if err != nil {
		return nil, err
	}
	return compute(policy, asset.Level, days, elapsedDays(asset.CreatedAt, now)), nil
}
