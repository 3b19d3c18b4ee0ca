// Package state implements the process-wide ledger state over a key-value
// store. A single Manager satisfies the narrow state interfaces declared by
// each native engine; the hosting environment serialises all calls, so the
// manager performs no locking of its own.
package state

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"estatechain/core/types"
	"estatechain/native/params"
	"estatechain/native/payments"
	"estatechain/native/registry"
	"estatechain/storage"
)

// SchemaVersion identifies the current layout of persisted keys. Migrate
// upgrades older layouts at open; there is no versioning on the request path.
const SchemaVersion uint64 = 1

const (
	keySchemaVersion  = "schema/version"
	accountPrefix     = "account/"
	rolePrefix        = "role/"
	paramPrefix       = "param/"
	assetPrefix       = "asset/"
	keyAssetCounter   = "asset/counter"
	ownerPrefix       = "owner-assets/"
	assetPosPrefix    = "asset-pos/"
	pendingPrefix     = "payment/"
	userStatsPrefix   = "user-stats/"
	incomeClaimPrefix = "income-last/"
	verifiedPrefix    = "verified/"
)

// ErrSchemaTooNew is returned when the on-disk schema is newer than this
// build understands.
var ErrSchemaTooNew = errors.New("state: schema version newer than supported")

// Manager owns every persisted record of the property economy: accounts,
// roles, parameters, assets and their owner index, pending payments, user
// stats, and income claim timestamps.
type Manager struct {
	db     storage.Database
	pstore *params.Store
}

// NewManager wraps the supplied database and runs schema migration.
func NewManager(db storage.Database) (*Manager, error) {
	m := &Manager{db: db}
	m.pstore = params.NewStore(m)
	if err := m.Migrate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Params exposes the typed parameter store backed by this manager.
func (m *Manager) Params() *params.Store { return m.pstore }

func (m *Manager) get(key string) ([]byte, bool, error) {
	data, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) putJSON(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), encoded)
}

func (m *Manager) getJSON(key string, out any) (bool, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

// Migrate brings the persisted schema up to SchemaVersion. A fresh database
// is stamped with the current version.
func (m *Manager) Migrate() error {
	data, ok, err := m.get(keySchemaVersion)
	if err != nil {
		return err
	}
	stored := uint64(0)
	if ok && len(data) == 8 {
		stored = binary.BigEndian.Uint64(data)
	}
	if stored > SchemaVersion {
		return fmt.Errorf("%w: disk=%d supported=%d", ErrSchemaTooNew, stored, SchemaVersion)
	}
	// Version 0 is the empty database; no layout change has shipped yet, so
	// migration is just stamping the version.
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], SchemaVersion)
	return m.db.Put([]byte(keySchemaVersion), buf[:])
}

// --- Accounts ---

func accountKey(addr []byte) string {
	return accountPrefix + hex.EncodeToString(addr)
}

// GetAccount loads the account for the address, returning a zero-balance
// account when none is stored.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var account types.Account
	ok, err := m.getJSON(accountKey(addr), &account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{}, nil
	}
	return &account, nil
}

// PutAccount persists the account record.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: account required")
	}
	return m.putJSON(accountKey(addr), account)
}

// --- Roles ---

func roleKey(role string) string {
	return rolePrefix + strings.TrimSpace(role)
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr[:]...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.db.Put([]byte(roleKey(trimmed)), encoded)
}

// RevokeRole removes an address from a role. Revoking an absent member is a
// no-op.
func (m *Manager) RevokeRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr[:]) {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(members) {
		return nil
	}
	if len(filtered) == 0 {
		return m.db.Delete([]byte(roleKey(trimmed)))
	}
	encoded, err := rlp.EncodeToBytes(filtered)
	if err != nil {
		return err
	}
	return m.db.Put([]byte(roleKey(trimmed)), encoded)
}

func (m *Manager) roleMembers(role string) ([][]byte, error) {
	data, ok, err := m.get(roleKey(role))
	if err != nil || !ok {
		return nil, err
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the address holds the role. Read errors report
// false, matching the best-effort semantics the engines expect.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// --- Parameter store ---

// ParamStoreSet persists a raw parameter value under its canonical name.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	return m.db.Put([]byte(paramPrefix+name), value)
}

// ParamStoreGet loads a raw parameter value.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	return m.get(paramPrefix + name)
}

// PriceConfig resolves the price configuration for a property type.
func (m *Manager) PriceConfig(propertyType string) (*params.PriceConfig, bool, error) {
	return m.pstore.PriceConfig(propertyType)
}

// FeePolicy resolves the current purchase fee split.
func (m *Manager) FeePolicy() (params.FeePolicy, error) {
	return m.pstore.FeePolicy()
}

// IncomePolicy resolves the current income accrual parameters.
func (m *Manager) IncomePolicy() (*params.IncomePolicy, error) {
	return m.pstore.IncomePolicy()
}

// BuybackBps resolves the current buyback percentage.
func (m *Manager) BuybackBps() (uint32, error) {
	return m.pstore.BuybackBps()
}

// --- Assets ---

func assetKey(id uint64) string {
	return assetPrefix + uintKey(id)
}

func uintKey(v uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return hex.EncodeToString(buf[:])
}

// AssetCounter returns the last assigned asset id.
func (m *Manager) AssetCounter() (uint64, error) {
	data, ok, err := m.get(keyAssetCounter)
	if err != nil || !ok {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: malformed asset counter")
	}
	return binary.BigEndian.Uint64(data), nil
}

// SetAssetCounter persists the last assigned asset id.
func (m *Manager) SetAssetCounter(id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return m.db.Put([]byte(keyAssetCounter), buf[:])
}

// AssetGet loads an asset record.
func (m *Manager) AssetGet(id uint64) (*registry.Asset, bool, error) {
	var asset registry.Asset
	ok, err := m.getJSON(assetKey(id), &asset)
	if err != nil || !ok {
		return nil, false, err
	}
	return &asset, true, nil
}

// AssetPut persists an asset record.
func (m *Manager) AssetPut(asset *registry.Asset) error {
	if asset == nil {
		return fmt.Errorf("state: asset required")
	}
	return m.putJSON(assetKey(asset.ID), asset)
}

// AssetDelete removes an asset record.
func (m *Manager) AssetDelete(id uint64) error {
	return m.db.Delete([]byte(assetKey(id)))
}

// --- Owner index ---

func ownerKey(owner [20]byte) string {
	return ownerPrefix + hex.EncodeToString(owner[:])
}

// OwnerAssets returns the enumeration list for an owner.
func (m *Manager) OwnerAssets(owner [20]byte) ([]uint64, error) {
	var list []uint64
	ok, err := m.getJSON(ownerKey(owner), &list)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint64{}, nil
	}
	return list, nil
}

// SetOwnerAssets persists the enumeration list; empty lists delete the key.
func (m *Manager) SetOwnerAssets(owner [20]byte, ids []uint64) error {
	if len(ids) == 0 {
		return m.db.Delete([]byte(ownerKey(owner)))
	}
	return m.putJSON(ownerKey(owner), ids)
}

// AssetPosition returns the back-index position of an asset inside its
// owner's list.
func (m *Manager) AssetPosition(id uint64) (uint64, bool, error) {
	data, ok, err := m.get(assetPosPrefix + uintKey(id))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("state: malformed asset position")
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// SetAssetPosition persists the back-index position for an asset.
func (m *Manager) SetAssetPosition(id uint64, pos uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pos)
	return m.db.Put([]byte(assetPosPrefix+uintKey(id)), buf[:])
}

// DeleteAssetPosition removes the back-index entry for an asset.
func (m *Manager) DeleteAssetPosition(id uint64) error {
	return m.db.Delete([]byte(assetPosPrefix + uintKey(id)))
}

// --- Pending payments ---

func pendingKey(id [32]byte) string {
	return pendingPrefix + hex.EncodeToString(id[:])
}

// PendingPaymentGet loads a pending payment record.
func (m *Manager) PendingPaymentGet(id [32]byte) (*payments.PendingPayment, bool, error) {
	var payment payments.PendingPayment
	ok, err := m.getJSON(pendingKey(id), &payment)
	if err != nil || !ok {
		return nil, false, err
	}
	return &payment, true, nil
}

// PendingPaymentPut persists a pending payment record.
func (m *Manager) PendingPaymentPut(payment *payments.PendingPayment) error {
	if payment == nil {
		return fmt.Errorf("state: pending payment required")
	}
	return m.putJSON(pendingKey(payment.ID), payment)
}

// PendingPaymentDelete removes a pending payment record.
func (m *Manager) PendingPaymentDelete(id [32]byte) error {
	return m.db.Delete([]byte(pendingKey(id)))
}

// --- User stats ---

func userStatsKey(addr [20]byte) string {
	return userStatsPrefix + hex.EncodeToString(addr[:])
}

// UserStatsGet loads the stats record for a buyer; nil when absent.
func (m *Manager) UserStatsGet(addr [20]byte) (*payments.UserStats, error) {
	var stats payments.UserStats
	ok, err := m.getJSON(userStatsKey(addr), &stats)
	if err != nil || !ok {
		return nil, err
	}
	return &stats, nil
}

// UserStatsPut persists the stats record.
func (m *Manager) UserStatsPut(addr [20]byte, stats *payments.UserStats) error {
	if stats == nil {
		return fmt.Errorf("state: user stats required")
	}
	return m.putJSON(userStatsKey(addr), stats)
}

// AddIncomeEarned accumulates claimed income into the buyer's stats.
func (m *Manager) AddIncomeEarned(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	stats, err := m.UserStatsGet(addr)
	if err != nil {
		return err
	}
	stats = payments.EnsureUserStats(stats)
	stats.TotalIncomeEarned = new(big.Int).Add(stats.TotalIncomeEarned, amount)
	return m.UserStatsPut(addr, stats)
}

// --- Income claim timestamps ---

func incomeClaimKey(assetID uint64) string {
	return incomeClaimPrefix + uintKey(assetID)
}

// IncomeLastClaim returns the last claim timestamp; zero means the asset is
// not income-eligible.
func (m *Manager) IncomeLastClaim(assetID uint64) (int64, error) {
	data, ok, err := m.get(incomeClaimKey(assetID))
	if err != nil || !ok {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: malformed income timestamp")
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// SetIncomeLastClaim persists the last claim timestamp for an asset.
func (m *Manager) SetIncomeLastClaim(assetID uint64, ts int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts))
	return m.db.Put([]byte(incomeClaimKey(assetID)), buf[:])
}

// DeleteIncomeLastClaim removes the claim timestamp when an asset is burned.
func (m *Manager) DeleteIncomeLastClaim(assetID uint64) error {
	return m.db.Delete([]byte(incomeClaimKey(assetID)))
}

// --- Verification oracle ---

func verifiedKey(addr [20]byte) string {
	return verifiedPrefix + hex.EncodeToString(addr[:])
}

// SetVerifiedStatus records or clears an address on the verified list.
func (m *Manager) SetVerifiedStatus(addr [20]byte, verified bool) error {
	if !verified {
		return m.db.Delete([]byte(verifiedKey(addr)))
	}
	return m.db.Put([]byte(verifiedKey(addr)), []byte{1})
}

// HasVerifiedStatus implements the verification oracle over the local
// verified list.
func (m *Manager) HasVerifiedStatus(addr [20]byte) (bool, error) {
	_, ok, err := m.get(verifiedKey(addr))
	return ok, err
}
