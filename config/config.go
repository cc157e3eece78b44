package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"deedvault/crypto"
)

// DefaultInitialMinFundAmount is 0.00001 of an 18-decimal unit.
const DefaultInitialMinFundAmount = "10000000000000"

type Config struct {
	RPCAddress           string            `toml:"RPCAddress"`
	DataDir              string            `toml:"DataDir"`
	NetworkName          string            `toml:"NetworkName"`
	SellerAddress        string            `toml:"SellerAddress"`
	InitialMinFundAmount string            `toml:"InitialMinFundAmount"`
	Alloc                map[string]string `toml:"Alloc,omitempty"`
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./deedvault-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "deedvault-local"
	}
	if strings.TrimSpace(cfg.InitialMinFundAmount) == "" {
		cfg.InitialMinFundAmount = DefaultInitialMinFundAmount
	}
}

// Validate checks address and amount fields decode correctly.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SellerAddress) == "" {
		return fmt.Errorf("config: SellerAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.SellerAddress); err != nil {
		return fmt.Errorf("config: invalid SellerAddress: %w", err)
	}
	if _, err := c.MinFundAmount(); err != nil {
		return err
	}
	for addr, amount := range c.Alloc {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("config: invalid Alloc address %q: %w", addr, err)
		}
		if _, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10); !ok {
			return fmt.Errorf("config: invalid Alloc amount %q for %s", amount, addr)
		}
	}
	return nil
}

// Seller returns the decoded seller address.
func (c *Config) Seller() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(c.SellerAddress)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Array(), nil
}

// MinFundAmount returns the decoded initial minimum fund amount.
func (c *Config) MinFundAmount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(c.InitialMinFundAmount), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("config: InitialMinFundAmount must be a positive integer, got %q", c.InitialMinFundAmount)
	}
	return amount, nil
}

// Allocations returns the decoded genesis balance allocations.
func (c *Config) Allocations() (map[[20]byte]*big.Int, error) {
	out := make(map[[20]byte]*big.Int, len(c.Alloc))
	for addrStr, amountStr := range c.Alloc {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return nil, err
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(amountStr), 10)
		if !ok {
			return nil, fmt.Errorf("config: invalid Alloc amount %q", amountStr)
		}
		out[addr.Array()] = amount
	}
	return out, nil
}

func createDefault(path string) (*Config, error) {
	sellerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("config: generate seller key: %w", err)
	}
	cfg := &Config{SellerAddress: sellerKey.PubKey().Address().String()}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	fmt.Printf("Created default config at %s (seller %s)\n", path, cfg.SellerAddress)
	return cfg, nil
}
