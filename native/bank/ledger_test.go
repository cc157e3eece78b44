package bank

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"deedvault/core/types"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{accounts: make(map[[20]byte]*types.Account)}
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return (&types.Account{}).EnsureDefaults(), nil
}

func (m *mockState) PutAccount(addr [20]byte, acc *types.Account) error {
	m.accounts[addr] = acc.Clone()
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestCreditDebit(t *testing.T) {
	ledger := NewLedger(newMockState())
	addr := newTestAddress(0xA1)

	balance, err := ledger.BalanceOf(addr)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, ledger.Credit(addr, big.NewInt(100)))
	require.NoError(t, ledger.Debit(addr, big.NewInt(40)))

	balance, err = ledger.BalanceOf(addr)
	require.NoError(t, err)
	require.Equal(t, int64(60), balance.Int64())

	require.ErrorIs(t, ledger.Debit(addr, big.NewInt(61)), ErrInsufficientBalance)
	require.ErrorIs(t, ledger.Credit(addr, nil), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Debit(addr, big.NewInt(-1)), ErrInvalidAmount)
}

func TestTransferConservesValue(t *testing.T) {
	ledger := NewLedger(newMockState())
	from := newTestAddress(0xA1)
	to := newTestAddress(0xB2)

	require.NoError(t, ledger.Credit(from, big.NewInt(100)))
	require.NoError(t, ledger.Transfer(from, to, big.NewInt(30)))

	fromBalance, err := ledger.BalanceOf(from)
	require.NoError(t, err)
	toBalance, err := ledger.BalanceOf(to)
	require.NoError(t, err)
	require.Equal(t, int64(70), fromBalance.Int64())
	require.Equal(t, int64(30), toBalance.Int64())

	require.ErrorIs(t, ledger.Transfer(from, to, big.NewInt(71)), ErrInsufficientBalance)
	fromBalance, err = ledger.BalanceOf(from)
	require.NoError(t, err)
	require.Equal(t, int64(70), fromBalance.Int64())
}

func TestPayoutChannelCreditsRecipient(t *testing.T) {
	ledger := NewLedger(newMockState())
	channel := NewPayoutChannel(ledger)
	to := newTestAddress(0xB2)

	require.NoError(t, channel.Send(to, big.NewInt(55)))
	balance, err := ledger.BalanceOf(to)
	require.NoError(t, err)
	require.Equal(t, int64(55), balance.Int64())
}
