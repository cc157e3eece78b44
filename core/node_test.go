package core

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"deedvault/native/bank"
	"deedvault/native/sale"
	"deedvault/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oneUnit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func newTestNode(t *testing.T, db storage.Database) (*Node, [20]byte, [20]byte) {
	t.Helper()
	seller := newTestAddress(0xA1)
	buyer := newTestAddress(0xB2)
	node, err := NewNode(db, Genesis{
		NetworkName:          "deedvault-test",
		Seller:               seller,
		InitialMinFundAmount: big.NewInt(10_000_000_000_000),
		Alloc: map[[20]byte]*big.Int{
			buyer: new(big.Int).Mul(oneUnit(), big.NewInt(10)),
		},
	}, testLogger())
	if err != nil {
		t.Fatalf("node creation failed: %v", err)
	}
	return node, seller, buyer
}

func TestGenesisIdempotence(t *testing.T) {
	db := storage.NewMemDB()
	node, seller, _ := newTestNode(t, db)

	otherSeller := newTestAddress(0xC3)
	if err := node.SetMinFundAmount(seller, big.NewInt(777)); err != nil {
		t.Fatalf("set min fund amount failed: %v", err)
	}

	// Re-opening the same database must not re-mint the deed or reset the
	// minimum price.
	node2, err := NewNode(db, Genesis{
		NetworkName:          "deedvault-test",
		Seller:               otherSeller,
		InitialMinFundAmount: big.NewInt(1),
	}, testLogger())
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	holder, err := node2.TitleHolder()
	if err != nil {
		t.Fatalf("holder lookup failed: %v", err)
	}
	if holder != seller {
		t.Fatalf("genesis must not run twice")
	}
	minAmount, err := node2.MinFundAmount()
	if err != nil {
		t.Fatalf("min amount lookup failed: %v", err)
	}
	if minAmount.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("minimum price must survive reopen, got %s", minAmount)
	}
}

func TestReceiveDebitsSenderAndFundsSale(t *testing.T) {
	node, _, buyer := newTestNode(t, storage.NewMemDB())

	if err := node.Receive(buyer, oneUnit()); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	status, err := node.SaleStatus()
	if err != nil || status != sale.StatusFunded {
		t.Fatalf("expected funded sale, got %v %v", status, err)
	}
	treasury, err := node.TreasuryBalance()
	if err != nil {
		t.Fatalf("treasury lookup failed: %v", err)
	}
	if treasury.Cmp(oneUnit()) != 0 {
		t.Fatalf("treasury must hold the deposit, got %s", treasury)
	}
	balance, err := node.BalanceOf(buyer)
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	want := new(big.Int).Mul(oneUnit(), big.NewInt(9))
	if balance.Cmp(want) != 0 {
		t.Fatalf("buyer balance must be debited, got %s", balance)
	}
}

func TestReceiveRefundsRejectedDeposit(t *testing.T) {
	node, seller, buyer := newTestNode(t, storage.NewMemDB())

	if err := node.Receive(buyer, oneUnit()); err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}

	// Second deposit is rejected by the engine; the debit must be refunded.
	before, _ := node.BalanceOf(buyer)
	err := node.ReceiveWithData(buyer, oneUnit(), []byte{0xDE, 0xAD})
	if !errors.Is(err, sale.ErrSaleInProgress) {
		t.Fatalf("expected ErrSaleInProgress, got %v", err)
	}
	after, _ := node.BalanceOf(buyer)
	if before.Cmp(after) != 0 {
		t.Fatalf("rejected deposit must refund the debit: %s != %s", before, after)
	}

	// A sender without funds is rejected at the bank.
	if err := node.Receive(seller, oneUnit()); !errors.Is(err, bank.ErrInsufficientBalance) && !errors.Is(err, sale.ErrSellerCannotBeBuyer) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFullSaleScenario(t *testing.T) {
	node, seller, buyer := newTestNode(t, storage.NewMemDB())

	now := int64(1_000_000)
	node.SetNowFunc(func() int64 { return now })

	if err := node.Receive(buyer, oneUnit()); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := node.Receive(buyer, oneUnit()); !errors.Is(err, sale.ErrSaleInProgress) {
		t.Fatalf("expected ErrSaleInProgress, got %v", err)
	}

	// Too early.
	now += 599
	if err := node.FinishSale(seller); !errors.Is(err, sale.ErrNotEnoughTimeHasPassed) {
		t.Fatalf("expected ErrNotEnoughTimeHasPassed, got %v", err)
	}

	now += 2 // 601 seconds after the deposit
	if err := node.FinishSale(seller); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	holder, _ := node.TitleHolder()
	if holder != buyer {
		t.Fatalf("title must move to the buyer")
	}
	sellerBalance, _ := node.BalanceOf(seller)
	if sellerBalance.Cmp(oneUnit()) != 0 {
		t.Fatalf("seller must receive the full treasury balance, got %s", sellerBalance)
	}
	treasury, _ := node.TreasuryBalance()
	if treasury.Sign() != 0 {
		t.Fatalf("treasury must be zero after finish, got %s", treasury)
	}
	status, _ := node.SaleStatus()
	if status != sale.StatusOpen {
		t.Fatalf("sale must reopen after finish")
	}
}

func TestCancelScenario(t *testing.T) {
	node, _, buyer := newTestNode(t, storage.NewMemDB())

	before, _ := node.BalanceOf(buyer)
	if err := node.Receive(buyer, oneUnit()); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := node.CancelSale(buyer); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	after, _ := node.BalanceOf(buyer)
	if before.Cmp(after) != 0 {
		t.Fatalf("buyer must be made whole after cancel: %s != %s", before, after)
	}
	treasury, _ := node.TreasuryBalance()
	if treasury.Sign() != 0 {
		t.Fatalf("treasury must be zero after cancel")
	}

	thirdParty := newTestAddress(0xC3)
	if err := node.CancelSale(thirdParty); !errors.Is(err, sale.ErrNoFundsDeposited) {
		t.Fatalf("expected ErrNoFundsDeposited, got %v", err)
	}
}

func TestEventLog(t *testing.T) {
	node, seller, buyer := newTestNode(t, storage.NewMemDB())

	if err := node.SetMinFundAmount(seller, big.NewInt(1)); err != nil {
		t.Fatalf("set min fund amount failed: %v", err)
	}
	if err := node.Receive(buyer, oneUnit()); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	evts := node.Events()
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != sale.EventTypeMinFundAmountSet {
		t.Fatalf("unexpected first event %s", evts[0].Type)
	}
	if evts[1].Type != sale.EventTypeFundsDeposited {
		t.Fatalf("unexpected second event %s", evts[1].Type)
	}
}
