package sale

import "math/big"

// Status represents the current state of the sale record.
type Status byte

const (
	StatusOpen   Status = 0x01 // No active sale; deposits are accepted.
	StatusFunded Status = 0x02 // A deposit is held and the lock timer is running.
)

// LockDurationSeconds is the window the seller must wait after a deposit
// before finalizing the sale.
const LockDurationSeconds int64 = 600

// Record holds the state of the single in-progress sale. Exactly one record
// exists; it is reset to open rather than destroyed.
//
// Invariant: Buyer and DepositTime are set if and only if Status is
// StatusFunded.
type Record struct {
	Status      Status   `json:"status"`
	Buyer       [20]byte `json:"buyer"`
	DepositTime int64    `json:"depositTime"`
	MinPrice    *big.Int `json:"minPrice"`
}

// NewRecord returns an open sale record with the given minimum price.
func NewRecord(minPrice *big.Int) *Record {
	if minPrice == nil {
		minPrice = big.NewInt(0)
	}
	return &Record{Status: StatusOpen, MinPrice: new(big.Int).Set(minPrice)}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := &Record{
		Status:      r.Status,
		Buyer:       r.Buyer,
		DepositTime: r.DepositTime,
		MinPrice:    big.NewInt(0),
	}
	if r.MinPrice != nil {
		clone.MinPrice = new(big.Int).Set(r.MinPrice)
	}
	return clone
}

// reset returns the record to the open state, clearing the buyer and the
// deposit timestamp while keeping the configured minimum price.
func (r *Record) reset() {
	r.Status = StatusOpen
	r.Buyer = [20]byte{}
	r.DepositTime = 0
}
