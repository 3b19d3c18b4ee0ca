package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// PropertyType seeds a price configuration at first start.
type PropertyType struct {
	Name                 string `toml:"Name"`
	BasePriceEST         string `toml:"BasePriceEST"`
	BasePriceZEST        string `toml:"BasePriceZEST"`
	BaseStatusPoints     uint64 `toml:"BaseStatusPoints"`
	BaseYieldRate        uint64 `toml:"BaseYieldRate"`
	Active               bool   `toml:"Active"`
	VerificationRequired bool   `toml:"VerificationRequired"`
}

// Config carries node-local settings for the property ledger daemon.
type Config struct {
	DataDir            string         `toml:"DataDir"`
	NetworkName        string         `toml:"NetworkName"`
	AdminAddress       string         `toml:"AdminAddress"`
	TreasuryAddress    string         `toml:"TreasuryAddress"`
	DevAddress         string         `toml:"DevAddress"`
	TreasuryFeeBps     uint32         `toml:"TreasuryFeeBps"`
	DevFeeBps          uint32         `toml:"DevFeeBps"`
	BuybackBps         uint32         `toml:"BuybackBps"`
	IncomeBaseRate     string         `toml:"IncomeBaseRate"`
	HoldingBonusBps    uint32         `toml:"HoldingBonusBps"`
	MaxHoldingBonusBps uint32         `toml:"MaxHoldingBonusBps"`
	PropertyTypes      []PropertyType `toml:"PropertyTypes"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "estate-local"
	}
	if cfg.PropertyTypes == nil {
		cfg.PropertyTypes = []PropertyType{}
	}
}

// ParseAmount converts a decimal string into a big.Int, treating the empty
// string as zero.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("config: amount %q must not be negative", value)
	}
	return amount, nil
}

// Validate checks cross-field constraints that TOML decoding cannot express.
func (c *Config) Validate() error {
	if c.TreasuryFeeBps+c.DevFeeBps > 1_000 {
		return fmt.Errorf("config: combined fee of %d bps exceeds the 1000 bps cap", c.TreasuryFeeBps+c.DevFeeBps)
	}
	if c.BuybackBps > 10_000 {
		return fmt.Errorf("config: buyback bps %d exceeds 10000", c.BuybackBps)
	}
	if _, err := ParseAmount(c.IncomeBaseRate); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, pt := range c.PropertyTypes {
		name := strings.ToLower(strings.TrimSpace(pt.Name))
		if name == "" {
			return fmt.Errorf("config: property type with empty name")
		}
		if seen[name] {
			return fmt.Errorf("config: duplicate property type %q", name)
		}
		seen[name] = true
		if _, err := ParseAmount(pt.BasePriceEST); err != nil {
			return err
		}
		if _, err := ParseAmount(pt.BasePriceZEST); err != nil {
			return err
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:            "./data",
		NetworkName:        "estate-local",
		TreasuryFeeBps:     500,
		DevFeeBps:          200,
		BuybackBps:         5_000,
		IncomeBaseRate:     "100",
		HoldingBonusBps:    10,
		MaxHoldingBonusBps: 500,
		PropertyTypes: []PropertyType{
			{
				Name:             "house",
				BasePriceEST:     "1000",
				BasePriceZEST:    "10",
				BaseStatusPoints: 100,
				BaseYieldRate:    50,
				Active:           true,
			},
		},
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
