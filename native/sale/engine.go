package sale

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"deedvault/core/events"
	"deedvault/core/types"
)

var (
	errNilState      = errors.New("sale engine: state not configured")
	errNilTitle      = errors.New("sale engine: title ledger not configured")
	errNilSettlement = errors.New("sale engine: settlement channel not configured")
)

// engineState is the persistence surface the engine requires: the single
// sale record plus the treasury vault of undisbursed deposits.
type engineState interface {
	SaleGet() (*Record, error)
	SalePut(*Record) error
	TreasuryBalance() (*big.Int, error)
	TreasuryCredit(amount *big.Int) error
	TreasuryDebit(amount *big.Int) error
}

// TitleLedger is the deed-token registry the engine transfers the asset
// title through. Transfer is atomic and fails if from is not the holder.
type TitleLedger interface {
	HolderOf(assetID [32]byte) ([20]byte, error)
	Transfer(from, to [20]byte, assetID [32]byte) error
}

// SettlementChannel disburses held value to an account. A failed send must
// be reported synchronously; the engine rolls the whole operation back.
type SettlementChannel interface {
	Send(to [20]byte, amount *big.Int) error
}

type saleEvent struct {
	evt *types.Event
}

func (e saleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e saleEvent) Event() *types.Event { return e.evt }

// Engine is the escrow state machine gating transfer of the single deed
// token behind a funded, time-locked sale. All operations are synchronous;
// the caller serializes them. Internal state is mutated to its
// post-operation value before the outbound settlement call, so a reentrant
// call observes the already-closed sale and is rejected by the ordinary
// precondition checks.
type Engine struct {
	state      engineState
	title      TitleLedger
	settlement SettlementChannel
	emitter    events.Emitter
	assetID    [32]byte
	nowFn      func() int64
}

// NewEngine creates a sale engine for the given deed with a no-op emitter.
// Callers can override the emitter via SetEmitter.
func NewEngine(assetID [32]byte) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		assetID: assetID,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTitleLedger configures the deed-token registry used by the engine.
func (e *Engine) SetTitleLedger(title TitleLedger) { e.title = title }

// SetSettlement configures the channel treasury disbursements go through.
func (e *Engine) SetSettlement(settlement SettlementChannel) { e.settlement = settlement }

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(saleEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ensureConfigured() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.title == nil:
		return errNilTitle
	case e.settlement == nil:
		return errNilSettlement
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) holder() ([20]byte, error) {
	if e == nil || e.title == nil {
		return [20]byte{}, errNilTitle
	}
	return e.title.HolderOf(e.assetID)
}

// SetMinFundAmount updates the minimum deposit the sale accepts. Only the
// current title holder may call it and the amount must be positive.
func (e *Engine) SetMinFundAmount(caller [20]byte, amount *big.Int) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	holder, err := e.holder()
	if err != nil {
		return err
	}
	if caller != holder {
		return ErrNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountMustBeGreaterThanZero
	}
	rec, err := e.state.SaleGet()
	if err != nil {
		return err
	}
	rec.MinPrice = cloneBigInt(amount)
	if err := e.state.SalePut(rec); err != nil {
		return err
	}
	e.emit(NewMinFundAmountSetEvent(amount))
	return nil
}

// BuyerDeposit records an incoming deposit and opens the lock window. The
// title holder cannot deposit, the amount must meet the minimum price, and
// only one deposit may be held at a time.
func (e *Engine) BuyerDeposit(caller [20]byte, amount *big.Int) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	holder, err := e.holder()
	if err != nil {
		return err
	}
	if caller == holder {
		return ErrSellerCannotBeBuyer
	}
	rec, err := e.state.SaleGet()
	if err != nil {
		return err
	}
	if rec.Status == StatusFunded {
		return fmt.Errorf("%w: buyer %s", ErrSaleInProgress, hex.EncodeToString(rec.Buyer[:]))
	}
	if amount == nil || amount.Cmp(rec.MinPrice) < 0 {
		return ErrInsufficientFunds
	}
	deposited := cloneBigInt(amount)
	rec.Status = StatusFunded
	rec.Buyer = caller
	rec.DepositTime = e.now()
	if err := e.state.SalePut(rec); err != nil {
		return err
	}
	if err := e.state.TreasuryCredit(deposited); err != nil {
		rec.reset()
		_ = e.state.SalePut(rec)
		return err
	}
	e.emit(NewFundsDepositedEvent(caller, deposited))
	return nil
}

// FinishSale finalizes a funded sale once the lock window has elapsed:
// the deed moves to the buyer and the full treasury balance is swept to the
// seller. The record is reset before either transfer executes; a settlement
// failure restores the record, the title, and the treasury.
func (e *Engine) FinishSale(caller [20]byte) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	seller, err := e.holder()
	if err != nil {
		return err
	}
	if caller != seller {
		return ErrNotOwner
	}
	rec, err := e.state.SaleGet()
	if err != nil {
		return err
	}
	if rec.Status != StatusFunded {
		return ErrNoFundsDeposited
	}
	if e.now() < rec.DepositTime+LockDurationSeconds {
		return ErrNotEnoughTimeHasPassed
	}
	buyer := rec.Buyer
	snapshot := rec.Clone()

	rec.reset()
	if err := e.state.SalePut(rec); err != nil {
		return err
	}
	if err := e.title.Transfer(seller, buyer, e.assetID); err != nil {
		_ = e.state.SalePut(snapshot)
		return err
	}
	payout, err := e.state.TreasuryBalance()
	if err != nil {
		e.rollbackFinish(snapshot, buyer, seller, nil)
		return err
	}
	if err := e.state.TreasuryDebit(payout); err != nil {
		e.rollbackFinish(snapshot, buyer, seller, nil)
		return err
	}
	if err := e.settlement.Send(seller, payout); err != nil {
		e.rollbackFinish(snapshot, buyer, seller, payout)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(NewSaleFinishedEvent(seller, buyer))
	return nil
}

func (e *Engine) rollbackFinish(snapshot *Record, buyer, seller [20]byte, payout *big.Int) {
	if payout != nil {
		_ = e.state.TreasuryCredit(payout)
	}
	_ = e.title.Transfer(buyer, seller, e.assetID)
	_ = e.state.SalePut(snapshot)
}

// CancelSale unwinds a funded sale, refunding the full treasury balance to
// the buyer. Either the recorded buyer or the title holder may cancel, at
// any time within the lock window or after it.
func (e *Engine) CancelSale(caller [20]byte) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	rec, err := e.state.SaleGet()
	if err != nil {
		return err
	}
	if rec.Status != StatusFunded {
		return ErrNoFundsDeposited
	}
	seller, err := e.holder()
	if err != nil {
		return err
	}
	if caller != rec.Buyer && caller != seller {
		return ErrNotInvolvedInSale
	}
	buyer := rec.Buyer
	snapshot := rec.Clone()

	rec.reset()
	if err := e.state.SalePut(rec); err != nil {
		return err
	}
	refund, err := e.state.TreasuryBalance()
	if err != nil {
		_ = e.state.SalePut(snapshot)
		return err
	}
	if err := e.state.TreasuryDebit(refund); err != nil {
		_ = e.state.SalePut(snapshot)
		return err
	}
	if err := e.settlement.Send(buyer, refund); err != nil {
		_ = e.state.TreasuryCredit(refund)
		_ = e.state.SalePut(snapshot)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(NewSaleCancelledEvent(buyer, seller))
	return nil
}

// SetOwner transfers the asset title and the seller role to the caller
// unconditionally, rejecting only the recorded buyer. This is an
// intentionally insecure convenience for demonstrations: any party can
// seize ownership. A production deployment must remove or properly gate it.
func (e *Engine) SetOwner(caller [20]byte) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	rec, err := e.state.SaleGet()
	if err != nil {
		return err
	}
	if rec.Buyer != ([20]byte{}) && caller == rec.Buyer {
		return ErrSellerCannotBeBuyer
	}
	holder, err := e.holder()
	if err != nil {
		return err
	}
	if holder == caller {
		return nil
	}
	return e.title.Transfer(holder, caller, e.assetID)
}

// --- read-only accessors ---

// Status reports the current sale state.
func (e *Engine) Status() (Status, error) {
	rec, err := e.record()
	if err != nil {
		return 0, err
	}
	return rec.Status, nil
}

// Buyer reports the recorded buyer; the zero address while the sale is open.
func (e *Engine) Buyer() ([20]byte, error) {
	rec, err := e.record()
	if err != nil {
		return [20]byte{}, err
	}
	return rec.Buyer, nil
}

// DepositTimestamp reports the unix time of the held deposit; zero while the
// sale is open.
func (e *Engine) DepositTimestamp() (int64, error) {
	rec, err := e.record()
	if err != nil {
		return 0, err
	}
	return rec.DepositTime, nil
}

// MinFundAmount reports the current minimum deposit.
func (e *Engine) MinFundAmount() (*big.Int, error) {
	rec, err := e.record()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(rec.MinPrice), nil
}

// Holder reports the current title holder (the seller role).
func (e *Engine) Holder() ([20]byte, error) {
	return e.holder()
}

func (e *Engine) record() (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.SaleGet()
}
