package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"deedvault/core/events"
	"deedvault/core/state"
	"deedvault/core/types"
	"deedvault/crypto"
	"deedvault/native/bank"
	"deedvault/native/deed"
	"deedvault/native/sale"
	"deedvault/storage"
)

// maxEventLog bounds the in-memory event history served over RPC.
const maxEventLog = 256

// Genesis describes the one-time initialisation of a fresh database: the
// initial deed holder, the starting minimum fund amount, and any account
// balance allocations.
type Genesis struct {
	NetworkName          string
	Seller               [20]byte
	InitialMinFundAmount *big.Int
	Alloc                map[[20]byte]*big.Int
}

// Node owns the ledger state and serializes every operation: each call runs
// to completion (success or full rollback) under one lock before the next
// begins. No external caller can mutate the state except through the
// methods below.
type Node struct {
	mu sync.Mutex

	db      storage.Database
	state   *state.Manager
	ledger  *bank.Ledger
	deeds   *deed.Registry
	engine  *sale.Engine
	assetID [32]byte
	logger  *slog.Logger

	eventLog []types.Event
}

// NewNode wires storage, the account ledger, the deed registry, and the sale
// engine, running genesis initialisation if the database is fresh.
func NewNode(db storage.Database, gen Genesis, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: nil database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	ledger := bank.NewLedger(manager)
	registry := deed.NewRegistry(manager)
	assetID := crypto.DeedAssetID(gen.NetworkName)

	engine := sale.NewEngine(assetID)
	engine.SetState(manager)
	engine.SetTitleLedger(registry)
	engine.SetSettlement(bank.NewPayoutChannel(ledger))

	node := &Node{
		db:      db,
		state:   manager,
		ledger:  ledger,
		deeds:   registry,
		engine:  engine,
		assetID: assetID,
		logger:  logger,
	}
	engine.SetEmitter(node)

	if err := node.initGenesis(gen); err != nil {
		return nil, err
	}
	return node, nil
}

func (n *Node) initGenesis(gen Genesis) error {
	initialized, err := n.state.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}
	if gen.Seller == ([20]byte{}) {
		return errors.New("core: genesis seller address required")
	}
	if gen.InitialMinFundAmount == nil || gen.InitialMinFundAmount.Sign() <= 0 {
		return errors.New("core: genesis minimum fund amount must be positive")
	}
	if err := n.deeds.Mint(gen.Seller, n.assetID); err != nil {
		return fmt.Errorf("core: mint deed: %w", err)
	}
	if err := n.state.SalePut(sale.NewRecord(gen.InitialMinFundAmount)); err != nil {
		return err
	}
	for addr, amount := range gen.Alloc {
		if err := n.ledger.Credit(addr, amount); err != nil {
			return fmt.Errorf("core: genesis allocation: %w", err)
		}
	}
	if err := n.state.MarkInitialized(); err != nil {
		return err
	}
	n.logger.Info("genesis initialised",
		slog.String("seller", crypto.NewAddress(gen.Seller[:]).String()),
		slog.String("minFundAmount", gen.InitialMinFundAmount.String()))
	return nil
}

// Emit implements events.Emitter: engine events are mirrored to the logger
// and kept in a bounded history for the RPC layer.
func (n *Node) Emit(evt events.Event) {
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok || payload.Event() == nil {
		return
	}
	event := payload.Event()
	n.eventLog = append(n.eventLog, *event)
	if len(n.eventLog) > maxEventLog {
		n.eventLog = n.eventLog[len(n.eventLog)-maxEventLog:]
	}
	attrs := make([]any, 0, len(event.Attributes))
	for k, v := range event.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	n.logger.Info(event.Type, attrs...)
}

// SetNowFunc overrides the clock used by the sale engine. Intended for
// deterministic tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engine.SetNowFunc(now)
}

// AssetID returns the identifier of the deed this node escrows.
func (n *Node) AssetID() [32]byte { return n.assetID }

// --- operations ---

// SetMinFundAmount updates the minimum deposit. Seller only.
func (n *Node) SetMinFundAmount(caller [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.SetMinFundAmount(caller, amount)
}

// Receive accepts an incoming value transfer and treats it as a buyer
// deposit: the sender's bank balance is debited into the treasury and the
// sale engine records the deposit. A rejected deposit refunds the debit in
// the same call.
func (n *Node) Receive(from [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ledger.Debit(from, amount); err != nil {
		return err
	}
	if err := n.engine.BuyerDeposit(from, amount); err != nil {
		_ = n.ledger.Credit(from, amount)
		return err
	}
	return nil
}

// ReceiveWithData accepts an incoming value transfer carrying call data.
// The payload is ignored: any unsolicited transfer, with or without data,
// is a buyer deposit.
func (n *Node) ReceiveWithData(from [20]byte, amount *big.Int, data []byte) error {
	if len(data) > 0 {
		n.logger.Debug("ignoring call data on deposit", slog.Int("bytes", len(data)))
	}
	return n.Receive(from, amount)
}

// FinishSale finalizes a funded sale after the lock window. Seller only.
func (n *Node) FinishSale(caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.FinishSale(caller)
}

// CancelSale refunds a funded sale. Buyer or seller only.
func (n *Node) CancelSale(caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.CancelSale(caller)
}

// SetOwner transfers the title and seller role to the caller. Demo-only
// escape hatch; see sale.Engine.SetOwner.
func (n *Node) SetOwner(caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.SetOwner(caller)
}

// --- read-only accessors ---

// SaleStatus reports the current sale state.
func (n *Node) SaleStatus() (sale.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Status()
}

// SaleBuyer reports the recorded buyer, the zero address when open.
func (n *Node) SaleBuyer() ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Buyer()
}

// DepositTimestamp reports the unix time of the held deposit.
func (n *Node) DepositTimestamp() (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.DepositTimestamp()
}

// MinFundAmount reports the current minimum deposit.
func (n *Node) MinFundAmount() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.MinFundAmount()
}

// TitleHolder reports the current deed holder (the seller role).
func (n *Node) TitleHolder() ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Holder()
}

// TreasuryBalance reports the undisbursed deposit balance.
func (n *Node) TreasuryBalance() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.TreasuryBalance()
}

// BalanceOf reports an account's bank balance.
func (n *Node) BalanceOf(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.BalanceOf(addr)
}

// Events returns a copy of the recent event history, oldest first.
func (n *Node) Events() []types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.Event, len(n.eventLog))
	copy(out, n.eventLog)
	return out
}
