package config

import (
	"os"
	"path/filepath"
	"testing"

	"deedvault/crypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testSellerAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func TestLoadAppliesDefaults(t *testing.T) {
	seller := testSellerAddress(t)
	path := writeConfig(t, `SellerAddress = "`+seller+`"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8545" {
		t.Fatalf("unexpected default RPCAddress %q", cfg.RPCAddress)
	}
	if cfg.NetworkName != "deedvault-local" {
		t.Fatalf("unexpected default NetworkName %q", cfg.NetworkName)
	}
	minAmount, err := cfg.MinFundAmount()
	if err != nil {
		t.Fatalf("min fund amount: %v", err)
	}
	if minAmount.String() != DefaultInitialMinFundAmount {
		t.Fatalf("unexpected default minimum %s", minAmount)
	}
}

func TestLoadRejectsBadSeller(t *testing.T) {
	path := writeConfig(t, `SellerAddress = "not-an-address"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid seller address")
	}
}

func TestLoadRejectsBadAmount(t *testing.T) {
	seller := testSellerAddress(t)
	path := writeConfig(t, `SellerAddress = "`+seller+`"
InitialMinFundAmount = "zero"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid minimum fund amount")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created: %v", err)
	}
	if _, err := cfg.Seller(); err != nil {
		t.Fatalf("generated seller address must decode: %v", err)
	}

	// Loading again parses the file written on the first run.
	if _, err := Load(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
}

func TestAllocations(t *testing.T) {
	seller := testSellerAddress(t)
	alice := testSellerAddress(t)
	path := writeConfig(t, `SellerAddress = "`+seller+`"

[Alloc]
"`+alice+`" = "1000000000000000000"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	alloc, err := cfg.Allocations()
	if err != nil {
		t.Fatalf("allocations: %v", err)
	}
	if len(alloc) != 1 {
		t.Fatalf("expected one allocation, got %d", len(alloc))
	}
	addr, err := crypto.DecodeAddress(alice)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	amount, ok := alloc[addr.Array()]
	if !ok {
		t.Fatal("allocation for alice missing")
	}
	if amount.String() != "1000000000000000000" {
		t.Fatalf("unexpected allocation amount %s", amount)
	}
}
