package registry

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"estatechain/core/events"
	"estatechain/native/params"
	"estatechain/native/pricing"
)

// RolePropertyMinter gates mint and burn. The payment ledger module address is
// granted this role at genesis; nothing else mints assets.
const RolePropertyMinter = "ROLE_PROPERTY_MINTER"

const (
	minFieldLength = 1
	maxFieldLength = 50
)

const daySeconds = 86_400

var (
	errNilState = errors.New("registry: state not configured")

	// ErrUnauthorized is returned when the caller lacks the minter role.
	ErrUnauthorized = errors.New("registry: caller lacks minter role")
	// ErrAssetNotFound is returned when no asset exists for the id.
	ErrAssetNotFound = errors.New("registry: asset not found")
	// ErrNotOwner is returned when the acting address does not own the asset.
	ErrNotOwner = errors.New("registry: caller does not own asset")
	// ErrInvalidName is returned when the name is empty or over length.
	ErrInvalidName = errors.New("registry: name must be 1..50 characters")
	// ErrInvalidLocation is returned when the location is empty or over length.
	ErrInvalidLocation = errors.New("registry: location must be 1..50 characters")
	// ErrMaxLevel is returned when an upgrade would exceed the level cap.
	ErrMaxLevel = errors.New("registry: asset already at max level")
	// ErrIndexCorrupted signals that the owner index and asset records
	// disagree; state repair is required before further mutation.
	ErrIndexCorrupted = errors.New("registry: owner index corrupted")
)

type engineState interface {
	AssetCounter() (uint64, error)
	SetAssetCounter(uint64) error
	AssetGet(id uint64) (*Asset, bool, error)
	AssetPut(*Asset) error
	AssetDelete(id uint64) error
	OwnerAssets(owner [20]byte) ([]uint64, error)
	SetOwnerAssets(owner [20]byte, ids []uint64) error
	AssetPosition(id uint64) (uint64, bool, error)
	SetAssetPosition(id uint64, pos uint64) error
	DeleteAssetPosition(id uint64) error
	IncomeLastClaim(id uint64) (int64, error)
	DeleteIncomeLastClaim(id uint64) error
	HasRole(role string, addr [20]byte) bool
	PriceConfig(propertyType string) (*params.PriceConfig, bool, error)
}

// Engine owns asset records and the per-owner enumeration index. Enumeration
// order is insertion order until a removal; removals swap the last entry into
// the vacated slot, so order is not a stability guarantee.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a registry engine with a no-op emitter.
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

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func validField(value string) bool {
	trimmed := strings.TrimSpace(value)
	return len(trimmed) >= minFieldLength && len(trimmed) <= maxFieldLength
}

func statusPointsFor(cfg *params.PriceConfig, level uint8) uint64 {
	return cfg.BaseStatusPoints * uint64(level)
}

func yieldRateFor(cfg *params.PriceConfig, level uint8) uint64 {
	return cfg.BaseYieldRate + uint64(level-1)*50
}

// MintSpec carries everything required to register a new asset.
type MintSpec struct {
	Owner            [20]byte
	Name             string
	PropertyType     string
	Location         string
	Level            uint8
	PurchasePrice    *big.Int
	PurchaseCurrency pricing.Currency
	MetadataRef      string
}

// Mint validates the spec, assigns the next monotonic id, derives status
// points and yield rate from the property type config, and inserts the asset
// into the owner index. Only minter-role callers may mint.
func (e *Engine) Mint(caller [20]byte, spec MintSpec) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.state.HasRole(RolePropertyMinter, caller) {
		return nil, ErrUnauthorized
	}
	if !validField(spec.Name) {
		return nil, ErrInvalidName
	}
	if !validField(spec.Location) {
		return nil, ErrInvalidLocation
	}
	if spec.Level < pricing.MinLevel || spec.Level > pricing.MaxLevel {
		return nil, pricing.ErrInvalidLevel
	}
	normalized := params.NormalizePropertyType(spec.PropertyType)
	cfg, ok, err := e.state.PriceConfig(normalized)
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.Active {
		return nil, pricing.ErrUnknownOrInactiveType
	}
	counter, err := e.state.AssetCounter()
	if err != nil {
		return nil, err
	}
	id := counter + 1
	if err := e.state.SetAssetCounter(id); err != nil {
		return nil, err
	}
	now := e.now()
	price := big.NewInt(0)
	if spec.PurchasePrice != nil {
		price = new(big.Int).Set(spec.PurchasePrice)
	}
	asset := &Asset{
		ID:               id,
		Owner:            spec.Owner,
		OriginalOwner:    spec.Owner,
		Name:             strings.TrimSpace(spec.Name),
		PropertyType:     normalized,
		Location:         strings.TrimSpace(spec.Location),
		Level:            spec.Level,
		StatusPoints:     statusPointsFor(cfg, spec.Level),
		YieldRate:        yieldRateFor(cfg, spec.Level),
		PurchasePrice:    price,
		PurchaseCurrency: spec.PurchaseCurrency,
		MetadataRef:      strings.TrimSpace(spec.MetadataRef),
		CreatedAt:        now,
	}
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	if err := e.appendToIndex(spec.Owner, id); err != nil {
		return nil, err
	}
	e.emit(events.AssetMinted{
		ID:            id,
		Owner:         spec.Owner,
		PropertyType:  asset.PropertyType,
		Level:         asset.Level,
		StatusPoints:  asset.StatusPoints,
		YieldRate:     asset.YieldRate,
		PurchasePrice: new(big.Int).Set(asset.PurchasePrice),
	})
	return asset.Clone(), nil
}

// Burn removes the asset record and its index entry. Only minter-role callers
// may burn; the buyback flow is the sole production caller.
func (e *Engine) Burn(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(RolePropertyMinter, caller) {
		return ErrUnauthorized
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotFound
	}
	if err := e.removeFromIndex(asset.Owner, id); err != nil {
		return err
	}
	if err := e.state.AssetDelete(id); err != nil {
		return err
	}
	return e.state.DeleteIncomeLastClaim(id)
}

// Transfer moves ownership of an asset. The from address must currently own
// the asset.
func (e *Engine) Transfer(id uint64, from, to [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotFound
	}
	if asset.Owner != from {
		return ErrNotOwner
	}
	if err := e.removeFromIndex(from, id); err != nil {
		return err
	}
	if err := e.appendToIndex(to, id); err != nil {
		return err
	}
	asset.Owner = to
	asset.LastTransferAt = e.now()
	if err := e.state.AssetPut(asset); err != nil {
		return err
	}
	e.emit(events.AssetTransferred{ID: id, From: from, To: to})
	return nil
}

// Upgrade raises the asset level by one and recomputes the derived attributes
// with the same formulas used at mint. The caller must be the current owner
// and the asset must be below the level cap.
func (e *Engine) Upgrade(id uint64, by [20]byte) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAssetNotFound
	}
	if asset.Owner != by {
		return nil, ErrNotOwner
	}
	if asset.Level >= pricing.MaxLevel {
		return nil, ErrMaxLevel
	}
	cfg, ok, err := e.state.PriceConfig(asset.PropertyType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pricing.ErrUnknownOrInactiveType
	}
	asset.Level++
	asset.StatusPoints = statusPointsFor(cfg, asset.Level)
	asset.YieldRate = yieldRateFor(cfg, asset.Level)
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	e.emit(events.AssetUpgraded{
		ID:           id,
		Owner:        by,
		Level:        asset.Level,
		StatusPoints: asset.StatusPoints,
		YieldRate:    asset.YieldRate,
	})
	return asset.Clone(), nil
}

// Get returns a copy of the asset record if it exists.
func (e *Engine) Get(id uint64) (*Asset, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return asset.Clone(), true, nil
}

// GetExtended returns the asset plus holding-derived fields.
func (e *Engine) GetExtended(id uint64) (*ExtendedAsset, bool, error) {
	asset, ok, err := e.Get(id)
	if err != nil || !ok {
		return nil, false, err
	}
	lastClaim, err := e.state.IncomeLastClaim(id)
	if err != nil {
		return nil, false, err
	}
	ageDays := uint64(0)
	if now := e.now(); now > asset.CreatedAt {
		ageDays = uint64(now-asset.CreatedAt) / daySeconds
	}
	return &ExtendedAsset{Asset: asset, AgeDays: ageDays, LastIncomeClaim: lastClaim}, true, nil
}

// Owns reports whether owner currently holds the asset.
func (e *Engine) Owns(owner [20]byte, id uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil || !ok {
		return false, err
	}
	return asset.Owner == owner, nil
}

// OwnerAssets returns the full enumeration for an owner.
func (e *Engine) OwnerAssets(owner [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.OwnerAssets(owner)
}

// OwnerAssetsPaginated returns a window of the owner's enumeration and the
// total count. An offset at or past the total yields an empty slice.
func (e *Engine) OwnerAssetsPaginated(owner [20]byte, offset, limit uint64) ([]uint64, uint64, error) {
	list, err := e.OwnerAssets(owner)
	if err != nil {
		return nil, 0, err
	}
	total := uint64(len(list))
	if offset >= total {
		return []uint64{}, total, nil
	}
	// Clamp without computing offset+limit, which can wrap around uint64.
	end := total
	if limit != 0 && limit < total-offset {
		end = offset + limit
	}
	page := make([]uint64, end-offset)
	copy(page, list[offset:end])
	return page, total, nil
}

// OwnerStatsFor aggregates count, status points, truncated average level, and
// total purchase value across an owner's holdings.
func (e *Engine) OwnerStatsFor(owner [20]byte) (*OwnerStats, error) {
	list, err := e.OwnerAssets(owner)
	if err != nil {
		return nil, err
	}
	stats := &OwnerStats{TotalValue: big.NewInt(0)}
	levelSum := uint64(0)
	for _, id := range list {
		asset, ok, err := e.state.AssetGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrIndexCorrupted
		}
		stats.Count++
		stats.TotalStatusPoints += asset.StatusPoints
		levelSum += uint64(asset.Level)
		if asset.PurchasePrice != nil {
			stats.TotalValue = stats.TotalValue.Add(stats.TotalValue, asset.PurchasePrice)
		}
	}
	if stats.Count > 0 {
		stats.AverageLevel = levelSum / stats.Count
	}
	return stats, nil
}

// FilterByType returns the owner's asset ids matching the property type. Two
// passes: count first, then collect into an exactly-sized slice.
func (e *Engine) FilterByType(owner [20]byte, propertyType string) ([]uint64, error) {
	list, err := e.OwnerAssets(owner)
	if err != nil {
		return nil, err
	}
	normalized := params.NormalizePropertyType(propertyType)
	matches := 0
	for _, id := range list {
		asset, ok, err := e.state.AssetGet(id)
		if err != nil {
			return nil, err
		}
		if ok && asset.PropertyType == normalized {
			matches++
		}
	}
	out := make([]uint64, 0, matches)
	for _, id := range list {
		asset, ok, err := e.state.AssetGet(id)
		if err != nil {
			return nil, err
		}
		if ok && asset.PropertyType == normalized {
			out = append(out, id)
		}
	}
	return out, nil
}

func (e *Engine) appendToIndex(owner [20]byte, id uint64) error {
	list, err := e.state.OwnerAssets(owner)
	if err != nil {
		return err
	}
	if err := e.state.SetAssetPosition(id, uint64(len(list))); err != nil {
		return err
	}
	return e.state.SetOwnerAssets(owner, append(list, id))
}

func (e *Engine) removeFromIndex(owner [20]byte, id uint64) error {
	list, err := e.state.OwnerAssets(owner)
	if err != nil {
		return err
	}
	pos, ok, err := e.state.AssetPosition(id)
	if err != nil {
		return err
	}
	if !ok || pos >= uint64(len(list)) || list[pos] != id {
		return ErrIndexCorrupted
	}
	last := uint64(len(list)) - 1
	if pos != last {
		moved := list[last]
		list[pos] = moved
		if err := e.state.SetAssetPosition(moved, pos); err != nil {
			return err
		}
	}
	if err := e.state.SetOwnerAssets(owner, list[:last]); err != nil {
		return err
	}
	return e.state.DeleteAssetPosition(id)
}
