package pricing

import (
	"errors"
	"math/big"

	"estatechain/native/params"
)

// Currency identifies which balance a price is denominated in.
type Currency string

const (
	// CurrencyEST is the primary settlement currency.
	CurrencyEST Currency = "EST"
	// CurrencyZEST is the secondary reward currency.
	CurrencyZEST Currency = "ZEST"
)

// Valid reports whether the currency is one of the two supported symbols.
func (c Currency) Valid() bool {
	return c == CurrencyEST || c == CurrencyZEST
}

const (
	// MinLevel and MaxLevel bound asset levels everywhere in the module.
	MinLevel uint8 = 1
	MaxLevel uint8 = 10
)

var (
	// ErrUnknownOrInactiveType is returned when no active price config exists
	// for the requested property type, or the requested currency has no base
	// price configured.
	ErrUnknownOrInactiveType = errors.New("pricing: unknown or inactive property type")
	// ErrInvalidLevel is returned for levels outside [MinLevel, MaxLevel].
	ErrInvalidLevel = errors.New("pricing: level out of range")
	// ErrInvalidCurrency is returned for unsupported currency symbols.
	ErrInvalidCurrency = errors.New("pricing: unsupported currency")
)

// LevelMultiplier returns the percentage multiplier applied to the base price
// for the supplied level: 100% at level 1, +20 points per level above it.
func LevelMultiplier(level uint8) uint64 {
	return 100 + uint64(level-1)*20
}

// Quote computes the purchase price for a property type config at the given
// level and currency. The division truncates toward zero; downstream ledgers
// depend on the exact truncated value, so no rounding may be introduced.
func Quote(cfg *params.PriceConfig, level uint8, currency Currency) (*big.Int, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, ErrInvalidLevel
	}
	if !currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if cfg == nil || !cfg.Active {
		return nil, ErrUnknownOrInactiveType
	}
	var base *big.Int
	switch currency {
	case CurrencyEST:
		base = cfg.BasePriceEST
	case CurrencyZEST:
		base = cfg.BasePriceZEST
	}
	if base == nil || base.Sign() == 0 {
		return nil, ErrUnknownOrInactiveType
	}
	price := new(big.Int).Mul(base, new(big.Int).SetUint64(LevelMultiplier(level)))
	return price.Div(price, big.NewInt(100)), nil
}

// ConfigSource resolves price configurations by property type.
type ConfigSource interface {
	PriceConfig(propertyType string) (*params.PriceConfig, bool, error)
}

// Engine resolves property type configs from a backing store and quotes
// purchase prices. It holds no mutable state of its own.
type Engine struct {
	configs ConfigSource
}

// NewEngine constructs a pricing engine over the supplied config source.
func NewEngine(configs ConfigSource) *Engine {
	return &Engine{configs: configs}
}

// Quote resolves the config for propertyType and prices it at level/currency.
func (e *Engine) Quote(propertyType string, level uint8, currency Currency) (*big.Int, error) {
	if e == nil || e.configs == nil {
		return nil, errors.New("pricing: config source not configured")
	}
	cfg, ok, err := e.configs.PriceConfig(propertyType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownOrInactiveType
	}
	return Quote(cfg, level, currency)
}
