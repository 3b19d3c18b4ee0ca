// Package core wires the native engines, state manager, and configuration
// into a runnable property ledger node.
package core

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"estatechain/config"
	"estatechain/core/events"
	"estatechain/crypto"
	"estatechain/native/income"
	"estatechain/native/params"
	"estatechain/native/payments"
	"estatechain/native/pricing"
	"estatechain/native/registry"
	"estatechain/state"
	"estatechain/storage"
)

// PaymentsModuleAddress is the deterministic module account that acts as the
// purchase vault and the registry's minter principal.
var PaymentsModuleAddress = moduleAddress("module/property-payments")

func moduleAddress(name string) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte(name))[:20])
	return addr
}

// Node is the composition root for the property economy: one state manager
// and one instance of each engine, sharing a single event emitter.
type Node struct {
	manager  *state.Manager
	admin    *params.Admin
	pricing  *pricing.Engine
	registry *registry.Engine
	payments *payments.Engine
	income   *income.Engine
}

// NewNode opens the ledger over the supplied database, runs schema migration,
// wires every engine, and seeds genesis parameters from the configuration on
// first start.
func NewNode(cfg *config.Config, db storage.Database, emitter events.Emitter) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("core: config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	manager, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	priceEngine := pricing.NewEngine(manager)

	regEngine := registry.NewEngine()
	regEngine.SetState(manager)
	regEngine.SetEmitter(emitter)

	payEngine := payments.NewEngine()
	payEngine.SetState(manager)
	payEngine.SetRegistry(regEngine)
	payEngine.SetPricing(priceEngine)
	payEngine.SetPolicies(manager)
	payEngine.SetVerifier(manager)
	payEngine.SetEmitter(emitter)
	payEngine.SetModuleAddress(PaymentsModuleAddress)

	incomeEngine := income.NewEngine()
	incomeEngine.SetState(manager)
	incomeEngine.SetEmitter(emitter)

	admin := params.NewAdmin(manager.Params(), manager)
	admin.SetRoleAdmin(manager)
	admin.SetEmitter(emitter)

	node := &Node{
		manager:  manager,
		admin:    admin,
		pricing:  priceEngine,
		registry: regEngine,
		payments: payEngine,
		income:   incomeEngine,
	}
	if err := node.seedGenesis(cfg); err != nil {
		return nil, err
	}
	return node, nil
}

// seedGenesis installs configuration-supplied parameters on first start. A
// database that already carries price configs is left untouched.
func (n *Node) seedGenesis(cfg *config.Config) error {
	if err := n.manager.SetRole(registry.RolePropertyMinter, PaymentsModuleAddress); err != nil {
		return err
	}
	if admin := cfg.AdminAddress; admin != "" {
		addr, err := decodeConfigAddress(admin)
		if err != nil {
			return err
		}
		if err := n.manager.SetRole(params.RolePropertyAdmin, addr); err != nil {
			return err
		}
	}
	existing, err := n.manager.Params().PropertyTypes()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	store := n.manager.Params()
	for _, pt := range cfg.PropertyTypes {
		priceEST, err := config.ParseAmount(pt.BasePriceEST)
		if err != nil {
			return err
		}
		priceZEST, err := config.ParseAmount(pt.BasePriceZEST)
		if err != nil {
			return err
		}
		if err := store.SetPriceConfig(&params.PriceConfig{
			PropertyType:         pt.Name,
			BasePriceEST:         priceEST,
			BasePriceZEST:        priceZEST,
			BaseStatusPoints:     pt.BaseStatusPoints,
			BaseYieldRate:        pt.BaseYieldRate,
			Active:               pt.Active,
			VerificationRequired: pt.VerificationRequired,
		}); err != nil {
			return err
		}
	}
	baseRate, err := config.ParseAmount(cfg.IncomeBaseRate)
	if err != nil {
		return err
	}
	if err := store.SetIncomePolicy(&params.IncomePolicy{
		BaseRatePerDay:     baseRate,
		HoldingBonusBps:    cfg.HoldingBonusBps,
		MaxHoldingBonusBps: cfg.MaxHoldingBonusBps,
	}); err != nil {
		return err
	}
	if err := store.SetBuybackBps(cfg.BuybackBps); err != nil {
		return err
	}
	if cfg.TreasuryAddress != "" && cfg.DevAddress != "" {
		treasury, err := decodeConfigAddress(cfg.TreasuryAddress)
		if err != nil {
			return err
		}
		dev, err := decodeConfigAddress(cfg.DevAddress)
		if err != nil {
			return err
		}
		if err := store.SetFeePolicy(params.FeePolicy{
			TreasuryBps: cfg.TreasuryFeeBps,
			DevBps:      cfg.DevFeeBps,
			Treasury:    treasury,
			Dev:         dev,
		}); err != nil {
			return err
		}
	}
	return nil
}

func decodeConfigAddress(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

// State exposes the underlying manager for tooling and queries.
func (n *Node) State() *state.Manager { return n.manager }

// Admin exposes the role-gated parameter mutators.
func (n *Node) Admin() *params.Admin { return n.admin }

// Pricing exposes the pricing engine.
func (n *Node) Pricing() *pricing.Engine { return n.pricing }

// Registry exposes the asset registry engine.
func (n *Node) Registry() *registry.Engine { return n.registry }

// Payments exposes the payment ledger engine.
func (n *Node) Payments() *payments.Engine { return n.payments }

// Income exposes the income accrual engine.
func (n *Node) Income() *income.Engine { return n.income }
