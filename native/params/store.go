package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for admin-controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// NormalizePropertyType canonicalises type identifiers for consistent lookups.
func NormalizePropertyType(propertyType string) string {
	return strings.ToLower(strings.TrimSpace(propertyType))
}

func priceConfigKey(propertyType string) string {
	return keyPriceConfigPrefix + NormalizePropertyType(propertyType)
}

// SetPriceConfig persists the configuration for a property type and records
// the type in the enumeration index.
func (s *Store) SetPriceConfig(cfg *PriceConfig) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("params: price config required")
	}
	normalized := NormalizePropertyType(cfg.PropertyType)
	if normalized == "" {
		return fmt.Errorf("params: property type required")
	}
	stored := cfg.Clone()
	stored.PropertyType = normalized
	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("params: encode price config: %w", err)
	}
	if err := state.ParamStoreSet(priceConfigKey(normalized), encoded); err != nil {
		return err
	}
	return s.indexPropertyType(normalized)
}

// PriceConfig loads the persisted configuration for the supplied property
// type. The boolean reports whether a configuration exists.
func (s *Store) PriceConfig(propertyType string) (*PriceConfig, bool, error) {
	state, err := s.withState()
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := state.ParamStoreGet(priceConfigKey(propertyType))
	if err != nil {
		return nil, false, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}
	var cfg PriceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, false, fmt.Errorf("params: decode price config: %w", err)
	}
	return &cfg, true, nil
}

// PropertyTypes returns the sorted list of configured property types.
func (s *Store) PropertyTypes() ([]string, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	raw, ok, err := state.ParamStoreGet(keyPriceConfigIndex)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []string{}, nil
	}
	var index []string
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("params: decode price index: %w", err)
	}
	return index, nil
}

func (s *Store) indexPropertyType(normalized string) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	index, err := s.PropertyTypes()
	if err != nil {
		return err
	}
	for _, existing := range index {
		if existing == normalized {
			return nil
		}
	}
	index = append(index, normalized)
	sort.Strings(index)
	encoded, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("params: encode price index: %w", err)
	}
	return state.ParamStoreSet(keyPriceConfigIndex, encoded)
}

// SetFeePolicy persists the purchase fee split.
func (s *Store) SetFeePolicy(policy FeePolicy) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("params: encode fee policy: %w", err)
	}
	return state.ParamStoreSet(keyFeePolicy, encoded)
}

// FeePolicy loads the persisted fee split. When unset, a zero-value policy is
// returned.
func (s *Store) FeePolicy() (FeePolicy, error) {
	state, err := s.withState()
	if err != nil {
		return FeePolicy{}, err
	}
	raw, ok, err := state.ParamStoreGet(keyFeePolicy)
	if err != nil {
		return FeePolicy{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return FeePolicy{}, nil
	}
	var policy FeePolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return FeePolicy{}, fmt.Errorf("params: decode fee policy: %w", err)
	}
	return policy, nil
}

// SetIncomePolicy persists the income accrual parameters.
func (s *Store) SetIncomePolicy(policy *IncomePolicy) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if policy == nil {
		return fmt.Errorf("params: income policy required")
	}
	encoded, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("params: encode income policy: %w", err)
	}
	return state.ParamStoreSet(keyIncomePolicy, encoded)
}

// IncomePolicy loads the persisted income parameters. When unset, a zero-value
// policy is returned.
func (s *Store) IncomePolicy() (*IncomePolicy, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	raw, ok, err := state.ParamStoreGet(keyIncomePolicy)
	if err != nil {
		return nil, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return &IncomePolicy{}, nil
	}
	var policy IncomePolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil, fmt.Errorf("params: decode income policy: %w", err)
	}
	return &policy, nil
}

// SetBuybackBps persists the buyback percentage.
func (s *Store) SetBuybackBps(bps uint32) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(bps)
	if err != nil {
		return fmt.Errorf("params: encode buyback bps: %w", err)
	}
	return state.ParamStoreSet(keyBuybackBps, encoded)
}

// BuybackBps loads the persisted buyback percentage; zero when unset.
func (s *Store) BuybackBps() (uint32, error) {
	state, err := s.withState()
	if err != nil {
		return 0, err
	}
	raw, ok, err := state.ParamStoreGet(keyBuybackBps)
	if err != nil {
		return 0, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return 0, nil
	}
	var bps uint32
	if err := json.Unmarshal(raw, &bps); err != nil {
		return 0, fmt.Errorf("params: decode buyback bps: %w", err)
	}
	return bps, nil
}
