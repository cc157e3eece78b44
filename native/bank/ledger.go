package bank

import (
	"errors"
	"math/big"

	"deedvault/core/types"
)

var (
	errNilState = errors.New("bank ledger: state not configured")

	// ErrInvalidAmount rejects nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: invalid amount")

	// ErrInsufficientBalance rejects debits and transfers exceeding the
	// source balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
)

// accountState is the persistence surface the ledger requires.
type accountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, acc *types.Account) error
}

// Ledger moves the native settlement currency between accounts.
type Ledger struct {
	state accountState
}

func NewLedger(state accountState) *Ledger {
	return &Ledger{state: state}
}

// BalanceOf reports the balance of an address; unknown addresses hold zero.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.EnsureDefaults().Balance), nil
}

// Credit adds amount to the address balance.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = acc.EnsureDefaults()
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return l.state.PutAccount(addr, acc)
}

// Debit subtracts amount from the address balance, failing if the balance
// is insufficient.
func (l *Ledger) Debit(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = acc.EnsureDefaults()
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return l.state.PutAccount(addr, acc)
}

// Transfer atomically moves amount from one address to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if err := l.Debit(from, amount); err != nil {
		return err
	}
	if err := l.Credit(to, amount); err != nil {
		// The credit can only fail on a storage error; put the debited
		// amount back so the ledger never loses value.
		_ = l.Credit(from, amount)
		return err
	}
	return nil
}

// PayoutChannel disburses treasury funds by crediting the recipient's bank
// balance. It is the production settlement channel of the sale engine; the
// vault side of the movement is handled by the engine's treasury debit.
type PayoutChannel struct {
	ledger *Ledger
}

func NewPayoutChannel(ledger *Ledger) *PayoutChannel {
	return &PayoutChannel{ledger: ledger}
}

// Send credits amount to the recipient.
func (c *PayoutChannel) Send(to [20]byte, amount *big.Int) error {
	if c == nil || c.ledger == nil {
		return errNilState
	}
	return c.ledger.Credit(to, amount)
}
