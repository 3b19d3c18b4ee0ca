package params

import (
	"errors"
	"fmt"
	"strconv"

	"estatechain/core/events"
)

var (
	// ErrUnauthorized is returned when the caller lacks the admin role.
	ErrUnauthorized = errors.New("params: caller is not a property admin")
	// ErrInvalidFeePolicy is returned when the fee split violates its bounds.
	ErrInvalidFeePolicy = errors.New("params: invalid fee policy")
	// ErrInvalidBuyback is returned when the buyback percentage exceeds 100%.
	ErrInvalidBuyback = errors.New("params: buyback bps out of range")
	// ErrInvalidIncomePolicy is returned when income parameters are malformed.
	ErrInvalidIncomePolicy = errors.New("params: invalid income policy")
	// ErrInvalidPriceConfig is returned when a price config is malformed.
	ErrInvalidPriceConfig = errors.New("params: invalid price config")
)

// RoleChecker answers capability queries against the role registry.
type RoleChecker interface {
	HasRole(role string, addr [20]byte) bool
}

// RoleAdmin mutates role membership. The state manager satisfies it.
type RoleAdmin interface {
	SetRole(role string, addr [20]byte) error
	RevokeRole(role string, addr [20]byte) error
}

// Admin exposes the role-gated mutators over the parameter store. Every
// successful mutation emits a config-updated event so external indexers can
// track policy changes.
type Admin struct {
	store     *Store
	roles     RoleChecker
	roleAdmin RoleAdmin
	emitter   events.Emitter
}

// NewAdmin wires an admin facade over the supplied store and role registry.
func NewAdmin(store *Store, roles RoleChecker) *Admin {
	return &Admin{store: store, roles: roles, emitter: events.NoopEmitter{}}
}

// SetRoleAdmin configures the backend used for role grants and revocations.
func (a *Admin) SetRoleAdmin(roleAdmin RoleAdmin) { a.roleAdmin = roleAdmin }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (a *Admin) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

func (a *Admin) authorize(caller [20]byte) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("params: admin not configured")
	}
	if a.roles == nil || !a.roles.HasRole(RolePropertyAdmin, caller) {
		return ErrUnauthorized
	}
	return nil
}

func (a *Admin) emitUpdated(key, value string) {
	if a == nil || a.emitter == nil {
		return
	}
	a.emitter.Emit(events.ConfigUpdated{Key: key, Value: value})
}

// SetPriceConfig validates and persists a property type configuration.
func (a *Admin) SetPriceConfig(caller [20]byte, cfg *PriceConfig) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if cfg == nil || NormalizePropertyType(cfg.PropertyType) == "" {
		return ErrInvalidPriceConfig
	}
	if cfg.BasePriceEST != nil && cfg.BasePriceEST.Sign() < 0 {
		return ErrInvalidPriceConfig
	}
	if cfg.BasePriceZEST != nil && cfg.BasePriceZEST.Sign() < 0 {
		return ErrInvalidPriceConfig
	}
	if err := a.store.SetPriceConfig(cfg); err != nil {
		return err
	}
	a.emitUpdated("priceConfig", NormalizePropertyType(cfg.PropertyType))
	return nil
}

// SetFeePolicy validates and persists the purchase fee split. The combined
// rate must not exceed MaxTotalFeeBps and both recipients must be non-zero.
func (a *Admin) SetFeePolicy(caller [20]byte, policy FeePolicy) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if policy.TreasuryBps+policy.DevBps > MaxTotalFeeBps {
		return ErrInvalidFeePolicy
	}
	var zero [20]byte
	if policy.Treasury == zero || policy.Dev == zero {
		return ErrInvalidFeePolicy
	}
	if err := a.store.SetFeePolicy(policy); err != nil {
		return err
	}
	a.emitUpdated("feePolicy", fmt.Sprintf("treasury=%d dev=%d", policy.TreasuryBps, policy.DevBps))
	return nil
}

// SetIncomePolicy validates and persists the income accrual parameters.
func (a *Admin) SetIncomePolicy(caller [20]byte, policy *IncomePolicy) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if policy == nil || policy.BaseRatePerDay == nil || policy.BaseRatePerDay.Sign() < 0 {
		return ErrInvalidIncomePolicy
	}
	if err := a.store.SetIncomePolicy(policy); err != nil {
		return err
	}
	a.emitUpdated("incomePolicy", policy.BaseRatePerDay.String())
	return nil
}

// GrantRole assigns a capability role to an address. Only admins may grant
// roles; this is how additional minters or admins are authorised after
// genesis.
func (a *Admin) GrantRole(caller [20]byte, role string, addr [20]byte) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if a.roleAdmin == nil {
		return fmt.Errorf("params: role backend not configured")
	}
	if err := a.roleAdmin.SetRole(role, addr); err != nil {
		return err
	}
	a.emitUpdated("roleGranted", role)
	return nil
}

// RevokeRole removes a capability role from an address.
func (a *Admin) RevokeRole(caller [20]byte, role string, addr [20]byte) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if a.roleAdmin == nil {
		return fmt.Errorf("params: role backend not configured")
	}
	if err := a.roleAdmin.RevokeRole(role, addr); err != nil {
		return err
	}
	a.emitUpdated("roleRevoked", role)
	return nil
}

// SetBuybackBps validates and persists the buyback percentage.
func (a *Admin) SetBuybackBps(caller [20]byte, bps uint32) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if bps > MaxBuybackBps {
		return ErrInvalidBuyback
	}
	if err := a.store.SetBuybackBps(bps); err != nil {
		return err
	}
	a.emitUpdated("buybackBps", strconv.FormatUint(uint64(bps), 10))
	return nil
}
