package sale

import "errors"

var (
	// ErrNotOwner rejects callers of seller-only operations who do not hold
	// the asset title.
	ErrNotOwner = errors.New("sale: caller is not the title holder")

	// ErrSellerCannotBeBuyer prevents self-dealing: the title holder cannot
	// deposit, and the recorded buyer cannot seize ownership.
	ErrSellerCannotBeBuyer = errors.New("sale: seller cannot be the buyer")

	// ErrNotInvolvedInSale rejects cancellation by parties other than the
	// recorded buyer or the title holder.
	ErrNotInvolvedInSale = errors.New("sale: caller is not involved in the sale")

	// ErrAmountMustBeGreaterThanZero rejects a non-positive minimum price.
	ErrAmountMustBeGreaterThanZero = errors.New("sale: amount must be greater than zero")

	// ErrInsufficientFunds rejects deposits below the minimum price.
	ErrInsufficientFunds = errors.New("sale: deposited amount below minimum price")

	// ErrNoFundsDeposited rejects finalize/cancel while no sale is funded.
	ErrNoFundsDeposited = errors.New("sale: no funds deposited")

	// ErrSaleInProgress rejects a deposit while another deposit is held.
	// Returned wrapped with the identity of the current buyer.
	ErrSaleInProgress = errors.New("sale: sale already in progress")

	// ErrNotEnoughTimeHasPassed rejects finalization before the lock window
	// elapses.
	ErrNotEnoughTimeHasPassed = errors.New("sale: not enough time has passed")

	// ErrTransferFailed surfaces a settlement-channel failure. The whole
	// operation, including state already reset, is rolled back.
	ErrTransferFailed = errors.New("sale: settlement transfer failed")
)
