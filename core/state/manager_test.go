package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"deedvault/core/types"
	"deedvault/native/sale"
	"deedvault/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestAccountRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := newTestAddress(0xA1)

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Balance.Sign())

	acc.Balance = big.NewInt(1234)
	acc.Nonce = 7
	require.NoError(t, m.PutAccount(addr, acc))

	loaded, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), loaded.Nonce)
	require.Equal(t, int64(1234), loaded.Balance.Int64())
}

func TestDeedHolderRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	assetID := [32]byte{0x01}
	holder := newTestAddress(0xA1)

	_, minted, err := m.DeedHolder(assetID)
	require.NoError(t, err)
	require.False(t, minted)

	require.NoError(t, m.DeedSetHolder(assetID, holder))
	got, minted, err := m.DeedHolder(assetID)
	require.NoError(t, err)
	require.True(t, minted)
	require.Equal(t, holder, got)
}

func TestSaleRecordRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	rec, err := m.SaleGet()
	require.NoError(t, err)
	require.Equal(t, sale.StatusOpen, rec.Status)

	rec.Status = sale.StatusFunded
	rec.Buyer = newTestAddress(0xB2)
	rec.DepositTime = 1_000_000
	rec.MinPrice = big.NewInt(42)
	require.NoError(t, m.SalePut(rec))

	loaded, err := m.SaleGet()
	require.NoError(t, err)
	require.Equal(t, sale.StatusFunded, loaded.Status)
	require.Equal(t, rec.Buyer, loaded.Buyer)
	require.Equal(t, int64(1_000_000), loaded.DepositTime)
	require.Equal(t, int64(42), loaded.MinPrice.Int64())
}

func TestTreasuryOperations(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	balance, err := m.TreasuryBalance()
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, m.TreasuryCredit(big.NewInt(100)))
	require.NoError(t, m.TreasuryDebit(big.NewInt(30)))

	balance, err = m.TreasuryBalance()
	require.NoError(t, err)
	require.Equal(t, int64(70), balance.Int64())

	require.Error(t, m.TreasuryDebit(big.NewInt(71)))
	require.Error(t, m.TreasuryCredit(nil))
}

func TestInitializedFlag(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	initialized, err := m.Initialized()
	require.NoError(t, err)
	require.False(t, initialized)

	require.NoError(t, m.MarkInitialized())

	// A second manager over the same database observes the flag.
	initialized, err = NewManager(db).Initialized()
	require.NoError(t, err)
	require.True(t, initialized)
}

func TestAccountValueIsolation(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := newTestAddress(0xA1)

	acc := (&types.Account{Balance: big.NewInt(50)}).EnsureDefaults()
	require.NoError(t, m.PutAccount(addr, acc))
	acc.Balance.SetInt64(999)

	loaded, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(50), loaded.Balance.Int64())
}
