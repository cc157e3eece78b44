package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"deedvault/crypto"
	"deedvault/native/bank"
	"deedvault/native/sale"
)

const (
	codeSaleInvalidParams  = -32021
	codeSaleForbidden      = -32022
	codeSalePrecondition   = -32023
	codeSaleTransferFailed = -32024
	codeSaleInternal       = -32025
)

type saleAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type saleDepositParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
	Data   string `json:"data,omitempty"`
}

type saleCallerParams struct {
	Caller string `json:"caller"`
}

type balanceParams struct {
	Address string `json:"address"`
}

// SaleResult is the sale_get response.
type SaleResult struct {
	Status           string `json:"status"`
	Buyer            string `json:"buyer,omitempty"`
	DepositTimestamp int64  `json:"depositTimestamp,omitempty"`
	MinFundAmount    string `json:"minFundAmount"`
	Holder           string `json:"holder"`
	TreasuryBalance  string `json:"treasuryBalance"`
}

// BalanceResult is the bank_balance response.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// HolderResult is the deed_holder response.
type HolderResult struct {
	AssetID string `json:"assetId"`
	Holder  string `json:"holder"`
}

func statusString(status sale.Status) string {
	switch status {
	case sale.StatusFunded:
		return "funded"
	default:
		return "open"
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr.Array(), nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

// writeSaleError maps sale engine sentinels onto stable RPC error codes.
func writeSaleError(w http.ResponseWriter, id interface{}, err error) {
	code := codeSaleInternal
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sale.ErrNotOwner),
		errors.Is(err, sale.ErrSellerCannotBeBuyer),
		errors.Is(err, sale.ErrNotInvolvedInSale):
		code = codeSaleForbidden
		status = http.StatusForbidden
	case errors.Is(err, sale.ErrAmountMustBeGreaterThanZero),
		errors.Is(err, sale.ErrInsufficientFunds),
		errors.Is(err, sale.ErrNoFundsDeposited),
		errors.Is(err, sale.ErrSaleInProgress),
		errors.Is(err, sale.ErrNotEnoughTimeHasPassed),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInvalidAmount):
		code = codeSalePrecondition
		status = http.StatusConflict
	case errors.Is(err, sale.ErrTransferFailed):
		code = codeSaleTransferFailed
		status = http.StatusBadGateway
	}
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) handleSetMinFundAmount(w http.ResponseWriter, req *RPCRequest) {
	var params saleAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SetMinFundAmount(caller, amount); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"minFundAmount": amount.String()})
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params saleDepositParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	from, err := parseAddress("from", params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	if trimmed := strings.TrimSpace(params.Data); trimmed != "" {
		data, err := hex.DecodeString(strings.TrimPrefix(trimmed, "0x"))
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, fmt.Sprintf("invalid data: %v", err), nil)
			return
		}
		err = s.node.ReceiveWithData(from, amount, data)
		if err != nil {
			writeSaleError(w, req.ID, err)
			return
		}
	} else if err := s.node.Receive(from, amount); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "funded"})
}

func (s *Server) handleFinishSale(w http.ResponseWriter, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	if err := s.node.FinishSale(caller); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "open"})
}

func (s *Server) handleCancelSale(w http.ResponseWriter, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	if err := s.node.CancelSale(caller); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "open"})
}

func (s *Server) handleSetOwner(w http.ResponseWriter, req *RPCRequest) {
	caller, ok := s.decodeCaller(w, req)
	if !ok {
		return
	}
	if err := s.node.SetOwner(caller); err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"holder": crypto.NewAddress(caller[:]).String()})
}

func (s *Server) decodeCaller(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var params saleCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return [20]byte{}, false
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return [20]byte{}, false
	}
	return caller, true
}

func (s *Server) handleGetSale(w http.ResponseWriter, req *RPCRequest) {
	status, err := s.node.SaleStatus()
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	minAmount, err := s.node.MinFundAmount()
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	holder, err := s.node.TitleHolder()
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	treasury, err := s.node.TreasuryBalance()
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	result := SaleResult{
		Status:          statusString(status),
		MinFundAmount:   minAmount.String(),
		Holder:          crypto.NewAddress(holder[:]).String(),
		TreasuryBalance: treasury.String(),
	}
	if status == sale.StatusFunded {
		buyer, err := s.node.SaleBuyer()
		if err != nil {
			writeSaleError(w, req.ID, err)
			return
		}
		ts, err := s.node.DepositTimestamp()
		if err != nil {
			writeSaleError(w, req.ID, err)
			return
		}
		result.Buyer = crypto.NewAddress(buyer[:]).String()
		result.DepositTimestamp = ts
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, s.node.Events())
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{
		Address: crypto.NewAddress(addr[:]).String(),
		Balance: balance.String(),
	})
}

func (s *Server) handleGetHolder(w http.ResponseWriter, req *RPCRequest) {
	holder, err := s.node.TitleHolder()
	if err != nil {
		writeSaleError(w, req.ID, err)
		return
	}
	assetID := s.node.AssetID()
	writeResult(w, req.ID, HolderResult{
		AssetID: hex.EncodeToString(assetID[:]),
		Holder:  crypto.NewAddress(holder[:]).String(),
	})
}
