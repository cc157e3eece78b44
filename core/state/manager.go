package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"deedvault/core/types"
	"deedvault/native/sale"
	"deedvault/storage"
)

const (
	keySaleRecord  = "sale/record"
	keyTreasury    = "sale/treasury"
	keyInitialized = "genesis/initialized"

	accountPrefix = "accounts/"
	deedPrefix    = "deed/holder/"
)

// vaultAccountKey is the reserved ledger key holding undisbursed deposits.
// It does not correspond to any key pair; funds move in and out of it only
// through the sale engine's treasury operations.
var vaultAccountKey = accountPrefix + "treasury-vault"

// Manager persists all ledger state — accounts, the deed holder, the sale
// record and the treasury vault — as JSON values in a storage.Database.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// --- accounts ---

func accountKey(addr [20]byte) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr[:]))
}

// GetAccount loads an account, returning a zeroed account for unknown
// addresses so callers never observe nil balances.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return (&types.Account{}).EnsureDefaults(), nil
	}
	if err != nil {
		return nil, err
	}
	acc := new(types.Account)
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return acc.EnsureDefaults(), nil
}

func (m *Manager) PutAccount(addr [20]byte, acc *types.Account) error {
	raw, err := json.Marshal(acc.EnsureDefaults())
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), raw)
}

// --- deed holder ---

func deedKey(assetID [32]byte) []byte {
	return []byte(deedPrefix + hex.EncodeToString(assetID[:]))
}

// DeedHolder returns the current holder of the asset and whether the asset
// has been minted.
func (m *Manager) DeedHolder(assetID [32]byte) ([20]byte, bool, error) {
	raw, err := m.db.Get(deedKey(assetID))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return [20]byte{}, false, nil
	}
	if err != nil {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, fmt.Errorf("state: malformed deed holder record")
	}
	var holder [20]byte
	copy(holder[:], raw)
	return holder, true, nil
}

func (m *Manager) DeedSetHolder(assetID [32]byte, holder [20]byte) error {
	return m.db.Put(deedKey(assetID), holder[:])
}

// --- sale record ---

// SaleGet loads the sale record. A missing record decodes to the initial
// open record with a zero minimum price; the node seeds the real minimum at
// genesis.
func (m *Manager) SaleGet() (*sale.Record, error) {
	raw, err := m.db.Get([]byte(keySaleRecord))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return sale.NewRecord(big.NewInt(0)), nil
	}
	if err != nil {
		return nil, err
	}
	rec := new(sale.Record)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("state: decode sale record: %w", err)
	}
	if rec.MinPrice == nil {
		rec.MinPrice = big.NewInt(0)
	}
	return rec, nil
}

func (m *Manager) SalePut(rec *sale.Record) error {
	if rec == nil {
		return fmt.Errorf("state: nil sale record")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("state: encode sale record: %w", err)
	}
	return m.db.Put([]byte(keySaleRecord), raw)
}

// --- treasury ---

func (m *Manager) vaultAccount() (*types.Account, error) {
	raw, err := m.db.Get([]byte(vaultAccountKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return (&types.Account{}).EnsureDefaults(), nil
	}
	if err != nil {
		return nil, err
	}
	acc := new(types.Account)
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("state: decode treasury vault: %w", err)
	}
	return acc.EnsureDefaults(), nil
}

func (m *Manager) putVaultAccount(acc *types.Account) error {
	raw, err := json.Marshal(acc.EnsureDefaults())
	if err != nil {
		return fmt.Errorf("state: encode treasury vault: %w", err)
	}
	return m.db.Put([]byte(vaultAccountKey), raw)
}

// TreasuryBalance reports the vault balance of undisbursed deposits.
func (m *Manager) TreasuryBalance() (*big.Int, error) {
	acc, err := m.vaultAccount()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

func (m *Manager) TreasuryCredit(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid treasury credit")
	}
	acc, err := m.vaultAccount()
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return m.putVaultAccount(acc)
}

func (m *Manager) TreasuryDebit(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid treasury debit")
	}
	acc, err := m.vaultAccount()
	if err != nil {
		return err
	}
	if acc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("state: treasury balance below debit amount")
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return m.putVaultAccount(acc)
}

// --- genesis flag ---

// Initialized reports whether genesis setup has already run against this
// database.
func (m *Manager) Initialized() (bool, error) {
	return m.db.Has([]byte(keyInitialized))
}

func (m *Manager) MarkInitialized() error {
	return m.db.Put([]byte(keyInitialized), []byte{1})
}
