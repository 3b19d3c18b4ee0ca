package payments

import (
	"encoding/binary"
	"errors"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"estatechain/core/events"
	"estatechain/core/types"
	"estatechain/native/fees"
	"estatechain/native/params"
	"estatechain/native/pricing"
	"estatechain/native/registry"
)

// paymentWindowSeconds is how long a pending payment may settle after
// initiation. Expiry is evaluated lazily at completion or cancellation time.
const paymentWindowSeconds = 3_600

const (
	minFieldLength = 1
	maxFieldLength = 50
)

var (
	errNilState          = errors.New("payments: state not configured")
	errNilRegistry       = errors.New("payments: asset registry not configured")
	errNilPricing        = errors.New("payments: pricing engine not configured")
	errNilPolicies       = errors.New("payments: policy source not configured")
	errVerifierNotSet    = errors.New("payments: verification oracle not configured")
	errFeeRecipientUnset = errors.New("payments: fee recipient not configured")

	// ErrNotFound is returned when no pending payment exists for the id.
	ErrNotFound = errors.New("payments: payment not found")
	// ErrAlreadyCompleted is returned when the payment has already settled.
	ErrAlreadyCompleted = errors.New("payments: payment already completed")
	// ErrExpired is returned when completion is attempted past the window.
	ErrExpired = errors.New("payments: payment expired")
	// ErrNotExpired is returned when cancellation is attempted early.
	ErrNotExpired = errors.New("payments: payment not yet expired")
	// ErrInvalidName is returned when the name is empty or over length.
	ErrInvalidName = errors.New("payments: name must be 1..50 characters")
	// ErrInvalidLocation is returned when the location is empty or over length.
	ErrInvalidLocation = errors.New("payments: location must be 1..50 characters")
	// ErrVerificationRequired is returned when the property type demands a
	// verified buyer and the oracle reports none.
	ErrVerificationRequired = errors.New("payments: buyer lacks verified status")
	// ErrInsufficientFunds is returned when the buyer cannot cover the price.
	ErrInsufficientFunds = errors.New("payments: insufficient balance")
)

type engineState interface {
	PendingPaymentGet(id [32]byte) (*PendingPayment, bool, error)
	PendingPaymentPut(*PendingPayment) error
	PendingPaymentDelete(id [32]byte) error
	UserStatsGet(addr [20]byte) (*UserStats, error)
	UserStatsPut(addr [20]byte, stats *UserStats) error
	SetIncomeLastClaim(assetID uint64, ts int64) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// AssetRegistry is the slice of registry behaviour the ledger composes with.
// The ledger's module address carries the minter role, which is how mint and
// burn authority is delegated to it.
type AssetRegistry interface {
	Mint(caller [20]byte, spec registry.MintSpec) (*registry.Asset, error)
	Burn(caller [20]byte, id uint64) error
	Get(id uint64) (*registry.Asset, bool, error)
}

// Quoter prices a property type at a level in a currency.
type Quoter interface {
	Quote(propertyType string, level uint8, currency pricing.Currency) (*big.Int, error)
}

// VerificationOracle reports whether a buyer holds verified status. It is
// consulted only for property types whose config demands verification.
type VerificationOracle interface {
	HasVerifiedStatus(addr [20]byte) (bool, error)
}

type policySource interface {
	PriceConfig(propertyType string) (*params.PriceConfig, bool, error)
	FeePolicy() (params.FeePolicy, error)
	BuybackBps() (uint32, error)
}

// Engine owns pending payments and user statistics, and drives the purchase,
// two-phase settlement, and buyback flows. Any operation that moves funds
// persists its terminal flag before the movement so a reentrant call observes
// "already completed" instead of re-triggering a mint.
type Engine struct {
	state      engineState
	registry   AssetRegistry
	pricing    Quoter
	policies   policySource
	verifier   VerificationOracle
	emitter    events.Emitter
	nowFn      func() int64
	moduleAddr [20]byte
}

// NewEngine constructs a payment ledger with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the asset registry collaborator.
func (e *Engine) SetRegistry(reg AssetRegistry) { e.registry = reg }

// SetPricing configures the pricing collaborator.
func (e *Engine) SetPricing(q Quoter) { e.pricing = q }

// SetPolicies configures the parameter store the engine reads policy from.
func (e *Engine) SetPolicies(p policySource) { e.policies = p }

// SetVerifier configures the verification oracle.
func (e *Engine) SetVerifier(v VerificationOracle) { e.verifier = v }

// SetModuleAddress configures the ledger's own address. It acts as the vault
// for purchase proceeds and as the minter principal towards the registry.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.moduleAddr = addr }

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

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registry == nil:
		return errNilRegistry
	case e.pricing == nil:
		return errNilPricing
	case e.policies == nil:
		return errNilPolicies
	}
	return nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceEST: big.NewInt(0), BalanceZEST: big.NewInt(0)}
	}
	if acc.BalanceEST == nil {
		acc.BalanceEST = big.NewInt(0)
	}
	if acc.BalanceZEST == nil {
		acc.BalanceZEST = big.NewInt(0)
	}
	return acc
}

func validField(value string) bool {
	trimmed := strings.TrimSpace(value)
	return len(trimmed) >= minFieldLength && len(trimmed) <= maxFieldLength
}

// PurchaseSpec carries the caller-supplied inputs shared by the direct and
// two-phase purchase paths.
type PurchaseSpec struct {
	PropertyType string
	Name         string
	Location     string
	Level        uint8
	MetadataRef  string
	Currency     pricing.Currency
}

// validatePurchase runs every pre-funds check and returns the quoted price.
// No state is mutated.
func (e *Engine) validatePurchase(buyer [20]byte, spec PurchaseSpec) (*big.Int, error) {
	if !validField(spec.Name) {
		return nil, ErrInvalidName
	}
	if !validField(spec.Location) {
		return nil, ErrInvalidLocation
	}
	price, err := e.pricing.Quote(spec.PropertyType, spec.Level, spec.Currency)
	if err != nil {
		return nil, err
	}
	cfg, ok, err := e.policies.PriceConfig(spec.PropertyType)
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.Active {
		return nil, pricing.ErrUnknownOrInactiveType
	}
	if cfg.VerificationRequired {
		if e.verifier == nil {
			return nil, errVerifierNotSet
		}
		verified, err := e.verifier.HasVerifiedStatus(buyer)
		if err != nil {
			return nil, err
		}
		if !verified {
			return nil, ErrVerificationRequired
		}
	}
	return price, nil
}

// transfer moves amount of currency between two account addresses.
func (e *Engine) transfer(from, to [20]byte, currency pricing.Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	switch currency {
	case pricing.CurrencyEST:
		if fromAcc.BalanceEST.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
	case pricing.CurrencyZEST:
		if fromAcc.BalanceZEST.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
	default:
		return pricing.ErrInvalidCurrency
	}
	// A funded self-transfer ends here. Loading the same record twice and
	// writing both copies would replay the credit over the debit.
	if from == to {
		return nil
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	switch currency {
	case pricing.CurrencyEST:
		fromAcc.BalanceEST = new(big.Int).Sub(fromAcc.BalanceEST, amount)
		toAcc.BalanceEST = new(big.Int).Add(toAcc.BalanceEST, amount)
	case pricing.CurrencyZEST:
		fromAcc.BalanceZEST = new(big.Int).Sub(fromAcc.BalanceZEST, amount)
		toAcc.BalanceZEST = new(big.Int).Add(toAcc.BalanceZEST, amount)
	}
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// mintTo credits freshly issued funds to an address; used for buyback refunds.
func (e *Engine) mintTo(addr [20]byte, currency pricing.Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	switch currency {
	case pricing.CurrencyEST:
		acc.BalanceEST = new(big.Int).Add(acc.BalanceEST, amount)
	case pricing.CurrencyZEST:
		acc.BalanceZEST = new(big.Int).Add(acc.BalanceZEST, amount)
	default:
		return pricing.ErrInvalidCurrency
	}
	return e.state.PutAccount(addr[:], acc)
}

// prepareFees loads the fee policy and evaluates the split, rejecting a
// policy whose recipients are unset while shares are owed. Runs before any
// funds move so a misconfigured policy cannot strand a partial purchase.
func (e *Engine) prepareFees(price *big.Int) (params.FeePolicy, fees.Split, error) {
	policy, err := e.policies.FeePolicy()
	if err != nil {
		return params.FeePolicy{}, fees.Split{}, err
	}
	split := fees.Apply(price, policy)
	var zero [20]byte
	if split.Treasury.Sign() > 0 && policy.Treasury == zero {
		return params.FeePolicy{}, fees.Split{}, errFeeRecipientUnset
	}
	if split.Dev.Sign() > 0 && policy.Dev == zero {
		return params.FeePolicy{}, fees.Split{}, errFeeRecipientUnset
	}
	return policy, split, nil
}

// distributeFees routes the treasury and dev shares out of the module vault.
// Both transfers succeed or the whole purchase fails; there is no partial
// distribution.
func (e *Engine) distributeFees(policy params.FeePolicy, split fees.Split, currency pricing.Currency) error {
	if split.Treasury != nil && split.Treasury.Sign() > 0 {
		if err := e.transfer(e.moduleAddr, policy.Treasury, currency, split.Treasury); err != nil {
			return err
		}
	}
	if split.Dev != nil && split.Dev.Sign() > 0 {
		if err := e.transfer(e.moduleAddr, policy.Dev, currency, split.Dev); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) recordPurchase(buyer [20]byte, currency pricing.Currency, amount *big.Int) error {
	stats, err := e.state.UserStatsGet(buyer)
	if err != nil {
		return err
	}
	stats = EnsureUserStats(stats)
	stats.TotalPurchases++
	switch currency {
	case pricing.CurrencyEST:
		stats.TotalSpentEST = new(big.Int).Add(stats.TotalSpentEST, amount)
	case pricing.CurrencyZEST:
		stats.TotalSpentZEST = new(big.Int).Add(stats.TotalSpentZEST, amount)
	}
	return e.state.UserStatsPut(buyer, stats)
}

func (e *Engine) mintSpec(owner [20]byte, spec PurchaseSpec, price *big.Int) registry.MintSpec {
	return registry.MintSpec{
		Owner:            owner,
		Name:             spec.Name,
		PropertyType:     spec.PropertyType,
		Location:         spec.Location,
		Level:            spec.Level,
		PurchasePrice:    price,
		PurchaseCurrency: spec.Currency,
		MetadataRef:      spec.MetadataRef,
	}
}

// PurchaseDirect settles a purchase in one step: validate, debit the buyer,
// distribute fees, mint, and record stats. If the debit fails nothing else
// executes.
func (e *Engine) PurchaseDirect(buyer [20]byte, spec PurchaseSpec) (*registry.Asset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	price, err := e.validatePurchase(buyer, spec)
	if err != nil {
		return nil, err
	}
	policy, split, err := e.prepareFees(price)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(buyer, e.moduleAddr, spec.Currency, price); err != nil {
		return nil, err
	}
	if err := e.distributeFees(policy, split, spec.Currency); err != nil {
		return nil, err
	}
	asset, err := e.registry.Mint(e.moduleAddr, e.mintSpec(buyer, spec, price))
	if err != nil {
		return nil, err
	}
	if err := e.recordPurchase(buyer, spec.Currency, price); err != nil {
		return nil, err
	}
	if err := e.state.SetIncomeLastClaim(asset.ID, e.now()); err != nil {
		return nil, err
	}
	return asset, nil
}

// InitiatePayment opens a two-phase purchase. Validation matches the direct
// path but no funds move; settlement happens externally and is confirmed via
// CompletePayment. The identifier is derived from the buyer, a per-buyer
// monotonic nonce, and the current timestamp so it cannot collide or be
// replayed.
func (e *Engine) InitiatePayment(buyer [20]byte, spec PurchaseSpec) (*PendingPayment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	price, err := e.validatePurchase(buyer, spec)
	if err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	account = ensureAccount(account)
	nonce := account.Nonce
	account.Nonce++
	if err := e.state.PutAccount(buyer[:], account); err != nil {
		return nil, err
	}
	now := e.now()
	var nonceBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(now))
	id := ethcrypto.Keccak256Hash(buyer[:], nonceBuf[:], tsBuf[:])
	payment := &PendingPayment{
		ID:           id,
		Buyer:        buyer,
		PropertyType: params.NormalizePropertyType(spec.PropertyType),
		Name:         strings.TrimSpace(spec.Name),
		Location:     strings.TrimSpace(spec.Location),
		Level:        spec.Level,
		MetadataRef:  strings.TrimSpace(spec.MetadataRef),
		Amount:       price,
		Currency:     spec.Currency,
		CreatedAt:    now,
	}
	if err := e.state.PendingPaymentPut(payment); err != nil {
		return nil, err
	}
	e.emit(events.PaymentInitiated{
		ID:           payment.ID,
		Buyer:        buyer,
		PropertyType: payment.PropertyType,
		Level:        payment.Level,
		Currency:     string(payment.Currency),
		Amount:       new(big.Int).Set(price),
		CreatedAt:    now,
	})
	return payment.Clone(), nil
}

// CompletePayment settles a pending payment: the completion flag is persisted
// before the mint so a reentrant observer sees the payment as settled, then
// the asset is minted and stats recorded. A second call for the same id
// always fails with ErrAlreadyCompleted.
func (e *Engine) CompletePayment(id [32]byte) (*registry.Asset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	payment, ok, err := e.state.PendingPaymentGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if payment.Completed {
		return nil, ErrAlreadyCompleted
	}
	now := e.now()
	if now > payment.Deadline() {
		e.emit(events.PaymentExpired{
			ID:        payment.ID,
			Buyer:     payment.Buyer,
			CreatedAt: payment.CreatedAt,
			Deadline:  payment.Deadline(),
		})
		return nil, ErrExpired
	}
	payment.Completed = true
	if err := e.state.PendingPaymentPut(payment); err != nil {
		return nil, err
	}
	asset, err := e.registry.Mint(e.moduleAddr, e.mintSpec(payment.Buyer, PurchaseSpec{
		PropertyType: payment.PropertyType,
		Name:         payment.Name,
		Location:     payment.Location,
		Level:        payment.Level,
		MetadataRef:  payment.MetadataRef,
		Currency:     payment.Currency,
	}, payment.Amount))
	if err != nil {
		// The mint never reached an external call; roll the flag back so the
		// buyer can retry or cancel once expired.
		payment.Completed = false
		if putErr := e.state.PendingPaymentPut(payment); putErr != nil {
			return nil, putErr
		}
		return nil, err
	}
	if err := e.recordPurchase(payment.Buyer, payment.Currency, payment.Amount); err != nil {
		return nil, err
	}
	if err := e.state.SetIncomeLastClaim(asset.ID, now); err != nil {
		return nil, err
	}
	e.emit(events.PaymentCompleted{
		ID:       payment.ID,
		Buyer:    payment.Buyer,
		AssetID:  asset.ID,
		Amount:   new(big.Int).Set(payment.Amount),
		Currency: string(payment.Currency),
	})
	return asset, nil
}

// CancelExpiredPayment deletes an expired, uncompleted payment record. Anyone
// may cancel once the window has elapsed; nobody may cancel early.
func (e *Engine) CancelExpiredPayment(id [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	payment, ok, err := e.state.PendingPaymentGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if payment.Completed {
		return ErrAlreadyCompleted
	}
	if e.now() <= payment.Deadline() {
		return ErrNotExpired
	}
	if err := e.state.PendingPaymentDelete(id); err != nil {
		return err
	}
	e.emit(events.PaymentCancelled{ID: payment.ID, Buyer: payment.Buyer})
	return nil
}

// PendingPaymentByID returns a copy of the stored record.
func (e *Engine) PendingPaymentByID(id [32]byte) (*PendingPayment, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	payment, ok, err := e.state.PendingPaymentGet(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return payment.Clone(), true, nil
}

// UserStatsFor returns a zero-filled copy of the buyer's stats.
func (e *Engine) UserStatsFor(addr [20]byte) (*UserStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, err := e.state.UserStatsGet(addr)
	if err != nil {
		return nil, err
	}
	return EnsureUserStats(stats).Clone(), nil
}

// SellBack burns the seller's asset and refunds a configured fraction of the
// original purchase price in the purchase currency. The burn commits before
// the refund credit so a reentrant call cannot sell the asset twice.
func (e *Engine) SellBack(assetID uint64, seller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	asset, ok, err := e.registry.Get(assetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, registry.ErrAssetNotFound
	}
	if asset.Owner != seller {
		return nil, registry.ErrNotOwner
	}
	bps, err := e.policies.BuybackBps()
	if err != nil {
		return nil, err
	}
	refund := big.NewInt(0)
	if asset.PurchasePrice != nil {
		refund = new(big.Int).Mul(asset.PurchasePrice, big.NewInt(int64(bps)))
		refund = refund.Div(refund, big.NewInt(10_000))
	}
	if err := e.registry.Burn(e.moduleAddr, assetID); err != nil {
		return nil, err
	}
	if err := e.mintTo(seller, asset.PurchaseCurrency, refund); err != nil {
		return nil, err
	}
	e.emit(events.AssetSoldBack{
		ID:       assetID,
		Seller:   seller,
		Refund:   new(big.Int).Set(refund),
		Currency: string(asset.PurchaseCurrency),
	})
	return refund, nil
}
