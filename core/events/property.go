package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"estatechain/core/types"
	"estatechain/crypto"
)

const (
	TypePaymentInitiated = "property.payment.initiated"
	TypePaymentCompleted = "property.payment.completed"
	TypePaymentExpired   = "property.payment.expired"
	TypePaymentCancelled = "property.payment.cancelled"
	TypeAssetMinted      = "property.asset.minted"
	TypeAssetUpgraded    = "property.asset.upgraded"
	TypeAssetTransferred = "property.asset.transferred"
	TypeAssetSoldBack    = "property.asset.soldback"
	TypeIncomeClaimed    = "property.income.claimed"
	TypeConfigUpdated    = "property.config.updated"
)

// PaymentInitiated is emitted when a buyer opens a two-phase payment.
type PaymentInitiated struct {
	ID           [32]byte
	Buyer        [20]byte
	PropertyType string
	Level        uint8
	Currency     string
	Amount       *big.Int
	CreatedAt    int64
}

func (PaymentInitiated) EventType() string { return TypePaymentInitiated }

func (e PaymentInitiated) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentInitiated,
		Attributes: map[string]string{
			"id":           hex.EncodeToString(e.ID[:]),
			"buyer":        addrString(e.Buyer),
			"propertyType": e.PropertyType,
			"level":        uintToString(uint64(e.Level)),
			"currency":     e.Currency,
			"amount":       formatAmount(e.Amount),
			"createdAt":    intToString(e.CreatedAt),
		},
	}
}

// PaymentCompleted is emitted once a pending payment settles and its asset has
// been minted.
type PaymentCompleted struct {
	ID       [32]byte
	Buyer    [20]byte
	AssetID  uint64
	Amount   *big.Int
	Currency string
}

func (PaymentCompleted) EventType() string { return TypePaymentCompleted }

func (e PaymentCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentCompleted,
		Attributes: map[string]string{
			"id":       hex.EncodeToString(e.ID[:]),
			"buyer":    addrString(e.Buyer),
			"assetId":  uintToString(e.AssetID),
			"amount":   formatAmount(e.Amount),
			"currency": e.Currency,
		},
	}
}

// PaymentExpired is emitted when a completion attempt finds the payment past
// its settlement window.
type PaymentExpired struct {
	ID        [32]byte
	Buyer     [20]byte
	CreatedAt int64
	Deadline  int64
}

func (PaymentExpired) EventType() string { return TypePaymentExpired }

func (e PaymentExpired) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentExpired,
		Attributes: map[string]string{
			"id":        hex.EncodeToString(e.ID[:]),
			"buyer":     addrString(e.Buyer),
			"createdAt": intToString(e.CreatedAt),
			"deadline":  intToString(e.Deadline),
		},
	}
}

// PaymentCancelled is emitted when an expired payment record is removed.
type PaymentCancelled struct {
	ID    [32]byte
	Buyer [20]byte
}

func (PaymentCancelled) EventType() string { return TypePaymentCancelled }

func (e PaymentCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentCancelled,
		Attributes: map[string]string{
			"id":    hex.EncodeToString(e.ID[:]),
			"buyer": addrString(e.Buyer),
		},
	}
}

// AssetMinted is emitted for every newly registered property asset.
type AssetMinted struct {
	ID            uint64
	Owner         [20]byte
	PropertyType  string
	Level         uint8
	StatusPoints  uint64
	YieldRate     uint64
	PurchasePrice *big.Int
}

func (AssetMinted) EventType() string { return TypeAssetMinted }

func (e AssetMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetMinted,
		Attributes: map[string]string{
			"assetId":       uintToString(e.ID),
			"owner":         addrString(e.Owner),
			"propertyType":  e.PropertyType,
			"level":         uintToString(uint64(e.Level)),
			"statusPoints":  uintToString(e.StatusPoints),
			"yieldRate":     uintToString(e.YieldRate),
			"purchasePrice": formatAmount(e.PurchasePrice),
		},
	}
}

// AssetUpgraded is emitted when an owner raises an asset level.
type AssetUpgraded struct {
	ID           uint64
	Owner        [20]byte
	Level        uint8
	StatusPoints uint64
	YieldRate    uint64
}

func (AssetUpgraded) EventType() string { return TypeAssetUpgraded }

func (e AssetUpgraded) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetUpgraded,
		Attributes: map[string]string{
			"assetId":      uintToString(e.ID),
			"owner":        addrString(e.Owner),
			"level":        uintToString(uint64(e.Level)),
			"statusPoints": uintToString(e.StatusPoints),
			"yieldRate":    uintToString(e.YieldRate),
		},
	}
}

// AssetTransferred is emitted when ownership moves between addresses.
type AssetTransferred struct {
	ID   uint64
	From [20]byte
	To   [20]byte
}

func (AssetTransferred) EventType() string { return TypeAssetTransferred }

func (e AssetTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetTransferred,
		Attributes: map[string]string{
			"assetId": uintToString(e.ID),
			"from":    addrString(e.From),
			"to":      addrString(e.To),
		},
	}
}

// AssetSoldBack is emitted when an asset is burned through the buyback flow.
type AssetSoldBack struct {
	ID       uint64
	Seller   [20]byte
	Refund   *big.Int
	Currency string
}

func (AssetSoldBack) EventType() string { return TypeAssetSoldBack }

func (e AssetSoldBack) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetSoldBack,
		Attributes: map[string]string{
			"assetId":  uintToString(e.ID),
			"seller":   addrString(e.Seller),
			"refund":   formatAmount(e.Refund),
			"currency": e.Currency,
		},
	}
}

// IncomeClaimed is emitted when accrued income is paid out for an asset.
type IncomeClaimed struct {
	AssetID  uint64
	Claimant [20]byte
	Amount   *big.Int
	Days     uint64
}

func (IncomeClaimed) EventType() string { return TypeIncomeClaimed }

func (e IncomeClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeIncomeClaimed,
		Attributes: map[string]string{
			"assetId":  uintToString(e.AssetID),
			"claimant": addrString(e.Claimant),
			"amount":   formatAmount(e.Amount),
			"days":     uintToString(e.Days),
		},
	}
}

// ConfigUpdated is emitted for every successful admin mutation.
type ConfigUpdated struct {
	Key   string
	Value string
}

func (ConfigUpdated) EventType() string { return TypeConfigUpdated }

func (e ConfigUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeConfigUpdated,
		Attributes: map[string]string{
			"key":   e.Key,
			"value": e.Value,
		},
	}
}

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.ESTPrefix, addr[:]).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
