package sale

import (
	"encoding/hex"
	"math/big"

	"deedvault/core/types"
)

const (
	EventTypeMinFundAmountSet = "sale.min_fund_amount_set"
	EventTypeFundsDeposited   = "sale.funds_deposited"
	EventTypeSaleFinished     = "sale.finished"
	EventTypeSaleCancelled    = "sale.cancelled"
)

// NewMinFundAmountSetEvent returns the canonical payload emitted when the
// seller updates the minimum fund amount.
func NewMinFundAmountSetEvent(amount *big.Int) *types.Event {
	return &types.Event{
		Type:       EventTypeMinFundAmountSet,
		Attributes: map[string]string{"amount": amountString(amount)},
	}
}

// NewFundsDepositedEvent returns the canonical payload emitted when a buyer
// deposit is accepted.
func NewFundsDepositedEvent(buyer [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFundsDeposited,
		Attributes: map[string]string{
			"buyer":  hex.EncodeToString(buyer[:]),
			"amount": amountString(amount),
		},
	}
}

// NewSaleFinishedEvent returns the canonical payload emitted when a sale is
// finalized and the title moves to the buyer.
func NewSaleFinishedEvent(seller, buyer [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeSaleFinished,
		Attributes: map[string]string{
			"seller": hex.EncodeToString(seller[:]),
			"buyer":  hex.EncodeToString(buyer[:]),
		},
	}
}

// NewSaleCancelledEvent returns the canonical payload emitted when a funded
// sale is cancelled and the deposit refunded.
func NewSaleCancelledEvent(buyer, seller [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeSaleCancelled,
		Attributes: map[string]string{
			"buyer":  hex.EncodeToString(buyer[:]),
			"seller": hex.EncodeToString(seller[:]),
		},
	}
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
