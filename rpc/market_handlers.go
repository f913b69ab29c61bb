package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"nftmarket/native/escrow"
	"nftmarket/native/market"
	"nftmarket/observability/metrics"
)

type createAuctionsParams struct {
	Seller      string   `json:"seller"`
	Collection  string   `json:"collection"`
	TokenIDs    []string `json:"tokenIds"`
	ValueToken  string   `json:"valueToken,omitempty"`
	MinPrice    string   `json:"minPrice,omitempty"`
	BuyNowPrice string   `json:"buyNowPrice,omitempty"`
	StartTime   int64    `json:"startTime,omitempty"`
	EndTime     int64    `json:"endTime,omitempty"`
	Recipients  []string `json:"feeRecipients,omitempty"`
	Shares      []uint32 `json:"feeShares,omitempty"`
	Whitelisted bool     `json:"whitelisted,omitempty"`
}

type makeBidParams struct {
	Bidder     string `json:"bidder"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Amount     string `json:"amount"`
}

type batchParams struct {
	Caller     string   `json:"caller"`
	Collection string   `json:"collection"`
	TokenIDs   []string `json:"tokenIds"`
}

type updateEndParams struct {
	Seller     string   `json:"seller"`
	Collection string   `json:"collection"`
	TokenIDs   []string `json:"tokenIds"`
	NewEndTime int64    `json:"newEndTime"`
}

type createSalesParams struct {
	Seller      string   `json:"seller"`
	Collection  string   `json:"collection"`
	TokenIDs    []string `json:"tokenIds"`
	Amounts     []string `json:"amounts,omitempty"`
	ValueToken  string   `json:"valueToken,omitempty"`
	UnitPrice   string   `json:"unitPrice"`
	StartTime   int64    `json:"startTime,omitempty"`
	EndTime     int64    `json:"endTime,omitempty"`
	Recipients  []string `json:"feeRecipients,omitempty"`
	Shares      []uint32 `json:"feeShares,omitempty"`
	Whitelisted bool     `json:"whitelisted,omitempty"`
}

type buyTokensParams struct {
	Buyer      string   `json:"buyer"`
	Collection string   `json:"collection"`
	TokenIDs   []string `json:"tokenIds"`
	Amounts    []string `json:"amounts,omitempty"`
	Paid       string   `json:"paid"`
}

type withdrawSalesParams struct {
	Seller     string   `json:"seller"`
	Collection string   `json:"collection"`
	TokenIDs   []string `json:"tokenIds"`
	Amounts    []string `json:"amounts,omitempty"`
}

type creditsParams struct {
	Beneficiary string `json:"beneficiary"`
	ValueToken  string `json:"valueToken,omitempty"`
}

type listingKeyParams struct {
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
}

type batchItemResult struct {
	TokenID string `json:"tokenId"`
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
}

type listingJSON struct {
	Collection    string   `json:"collection"`
	TokenID       string   `json:"tokenId"`
	Seller        string   `json:"seller"`
	Kind          string   `json:"kind"`
	ValueToken    string   `json:"valueToken"`
	MinPrice      string   `json:"minPrice"`
	BuyNowPrice   string   `json:"buyNowPrice"`
	UnitPrice     string   `json:"unitPrice"`
	Quantity      string   `json:"quantity"`
	StartTime     int64    `json:"startTime"`
	EndTime       int64    `json:"endTime"`
	FeeRecipients []string `json:"feeRecipients"`
	FeeShares     []uint32 `json:"feeShares"`
	Whitelisted   bool     `json:"whitelisted"`
	HighestBidder string   `json:"highestBidder"`
	HighestBid    string   `json:"highestBid"`
	CreatedAt     int64    `json:"createdAt"`
}

func (s *Server) decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return addr, nil
	}
	if !ethcommon.IsHexAddress(trimmed) {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func parseRequiredAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	return parseAddress(trimmed)
}

func parseBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return parsed, nil
}

func parseBigInts(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		parsed, err := parseBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseAddresses(values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, value := range values {
		parsed, err := parseRequiredAddress(value)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func rpcCodeFor(err error) int {
	switch {
	case errors.Is(err, market.ErrAuctionNotFound), errors.Is(err, market.ErrSaleNotFound):
		return codeNotFound
	case errors.Is(err, market.ErrNotWhitelisted),
		errors.Is(err, market.ErrAuctionNotStarted),
		errors.Is(err, market.ErrAuctionEnded),
		errors.Is(err, market.ErrSaleNotStarted),
		errors.Is(err, market.ErrSaleEnded),
		errors.Is(err, market.ErrInsufficientBid),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrOnlyOwnerBeforeDelay),
		errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, market.ErrPartialPurchase),
		errors.Is(err, market.ErrNoBids),
		errors.Is(err, market.ErrNotSeller),
		errors.Is(err, market.ErrNotSettleable),
		errors.Is(err, escrow.ErrNoCredits):
		return codeRejected
	default:
		return codeServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, method string, err error) {
	metrics.Market().Rejected(method)
	code := rpcCodeFor(err)
	status := http.StatusBadRequest
	if code == codeServerError {
		status = http.StatusInternalServerError
		s.log.Error("engine call failed", "method", method, "error", err)
	}
	writeError(w, status, req.ID, code, err.Error(), nil)
}

func batchResults(results []market.BatchResult) []batchItemResult {
	out := make([]batchItemResult, 0, len(results))
	for _, result := range results {
		item := batchItemResult{OK: result.Err == nil}
		if result.TokenID != nil {
			item.TokenID = result.TokenID.String()
		}
		if result.Err != nil {
			item.Reason = result.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) handleCreateAuctions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createAuctionsParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	seller, err := parseRequiredAddress(params.Seller)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	tokenIDs, err := parseBigInts(params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	auction := market.AuctionParams{StartTime: params.StartTime, EndTime: params.EndTime, Whitelisted: params.Whitelisted, Shares: params.Shares}
	auction.ValueToken, err = parseAddress(params.ValueToken)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	auction.MinPrice, err = parseBigInt(params.MinPrice)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	auction.BuyNowPrice, err = parseBigInt(params.BuyNowPrice)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	auction.Recipients, err = parseAddresses(params.Recipients)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	results, err := s.engine.CreateAuctions(seller, collection, tokenIDs, auction)
	if err != nil {
		s.writeEngineError(w, req, "market_createAuctions", err)
		return
	}
	for _, result := range results {
		if result.Err == nil {
			metrics.Market().ListingCreated("auction")
		}
	}
	writeResult(w, req.ID, batchResults(results))
}

func (s *Server) handleMakeBid(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params makeBidParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	bidder, err := parseRequiredAddress(params.Bidder)
	if err != nil {
		s.writeEngineError(w, req, "market_makeBid", err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_makeBid", err)
		return
	}
	tokenID, err := parseBigInt(params.TokenID)
	if err != nil {
		s.writeEngineError(w, req, "market_makeBid", err)
		return
	}
	amount, err := parseBigInt(params.Amount)
	if err != nil {
		s.writeEngineError(w, req, "market_makeBid", err)
		return
	}
	if err := s.engine.MakeBid(bidder, collection, tokenID, amount); err != nil {
		s.writeEngineError(w, req, "market_makeBid", err)
		return
	}
	metrics.Market().BidAccepted()
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTakeHighestBids(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleAuctionBatch(w, r, req, "market_takeHighestBids", func(caller, collection [20]byte, tokenIDs []*big.Int) ([]market.BatchResult, error) {
		results, err := s.engine.TakeHighestBids(caller, collection, tokenIDs)
		if err == nil {
			for _, result := range results {
				if result.Err == nil {
					metrics.Market().Settled("auction")
				}
			}
		}
		return results, err
	})
}

func (s *Server) handleSettleAuctions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleAuctionBatch(w, r, req, "market_settleAuctions", func(_, collection [20]byte, tokenIDs []*big.Int) ([]market.BatchResult, error) {
		results, err := s.engine.SettleAuctions(collection, tokenIDs)
		if err == nil {
			for _, result := range results {
				if result.Err == nil {
					metrics.Market().Settled("auction")
				}
			}
		}
		return results, err
	})
}

func (s *Server) handleWithdrawAuctions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleAuctionBatch(w, r, req, "market_withdrawAuctions", func(caller, collection [20]byte, tokenIDs []*big.Int) ([]market.BatchResult, error) {
		results, err := s.engine.WithdrawAuctions(caller, collection, tokenIDs)
		if err == nil {
			for _, result := range results {
				if result.Err == nil {
					metrics.Market().Withdrawn("auction")
				}
			}
		}
		return results, err
	})
}

func (s *Server) handleAuctionBatch(w http.ResponseWriter, r *http.Request, req *RPCRequest, method string, call func(caller, collection [20]byte, tokenIDs []*big.Int) ([]market.BatchResult, error)) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params batchParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		s.writeEngineError(w, req, method, err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, method, err)
		return
	}
	tokenIDs, err := parseBigInts(params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req, method, err)
		return
	}
	results, err := call(caller, collection, tokenIDs)
	if err != nil {
		s.writeEngineError(w, req, method, err)
		return
	}
	writeResult(w, req.ID, batchResults(results))
}

func (s *Server) handleUpdateAuctionsEnd(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params updateEndParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	seller, err := parseRequiredAddress(params.Seller)
	if err != nil {
		s.writeEngineError(w, req, "market_updateAuctionsEnd", err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_updateAuctionsEnd", err)
		return
	}
	tokenIDs, err := parseBigInts(params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req, "market_updateAuctionsEnd", err)
		return
	}
	results, err := s.engine.UpdateAuctionsEnd(seller, collection, tokenIDs, params.NewEndTime)
	if err != nil {
		s.writeEngineError(w, req, "market_updateAuctionsEnd", err)
		return
	}
	writeResult(w, req.ID, batchResults(results))
}

func (s *Server) handleCreateSales(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createSalesParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	seller, err := parseRequiredAddress(params.Seller)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	tokenIDs, err := parseBigInts(params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	amounts, err := parseBigInts(params.Amounts)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	sale := market.SaleParams{StartTime: params.StartTime, EndTime: params.EndTime, Whitelisted: params.Whitelisted, Shares: params.Shares}
	sale.ValueToken, err = parseAddress(params.ValueToken)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	sale.UnitPrice, err = parseBigInt(params.UnitPrice)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	sale.Recipients, err = parseAddresses(params.Recipients)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	results, err := s.engine.CreateSales(seller, collection, tokenIDs, amounts, sale)
	if err != nil {
		s.writeEngineError(w, req, "market_createSales", err)
		return
	}
	for _, result := range results {
		if result.Err == nil {
			metrics.Market().ListingCreated("sale")
		}
	}
	writeResult(w, req.ID, batchResults(results))
}

func (s *Server) handleBuyTokens(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params buyTokensParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	buyer, err := parseRequiredAddress(params.Buyer)
	if err != nil {
		s.writeEngineError(w, req, "market_buyTokens", err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_buyTokens", err)
		return
	}
	tokenIDs, err := parseBigInts(params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req, "market_buyTokens", err)
		return
	}
	amounts, err := parseBigInts(params.Amounts)
	if err != nil {
		s.writeEngineError(w, req, "market_buyTokens", err)
		return
	}
	paid, err := parseBigInt(params.Paid)
	if err != nil {
		s.writeEngineError(w, req, "market_buyTokens", err)
		return
	}
	if err := s.engine.BuyTokens(buyer, collection, tokenIDs, amounts, paid); err != nil {
		s.writeEngineError(w, req, "market_buyTokens", err)
		return
	}
	metrics.Market().Settled("sale")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleWithdrawSales(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params withdrawSalesParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	seller, err := parseRequiredAddress(params.Seller)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawSales", err)
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawSales", err)
		return
	}
	tokenIDs, err := parseBigInts(params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawSales", err)
		return
	}
	amounts, err := parseBigInts(params.Amounts)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawSales", err)
		return
	}
	results, err := s.engine.WithdrawSales(seller, collection, tokenIDs, amounts)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawSales", err)
		return
	}
	for _, result := range results {
		if result.Err == nil {
			metrics.Market().Withdrawn("sale")
		}
	}
	writeResult(w, req.ID, batchResults(results))
}

func (s *Server) handleWithdrawCredits(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params creditsParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	beneficiary, err := parseRequiredAddress(params.Beneficiary)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawCredits", err)
		return
	}
	token, err := parseAddress(params.ValueToken)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawCredits", err)
		return
	}
	amount, err := s.engine.WithdrawCredits(token, beneficiary)
	if err != nil {
		s.writeEngineError(w, req, "market_withdrawCredits", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"amount": amount.String()})
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params creditsParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	beneficiary, err := parseRequiredAddress(params.Beneficiary)
	if err != nil {
		s.writeEngineError(w, req, "market_getCredits", err)
		return
	}
	token, err := parseAddress(params.ValueToken)
	if err != nil {
		s.writeEngineError(w, req, "market_getCredits", err)
		return
	}
	amount, err := s.engine.Credits(token, beneficiary)
	if err != nil {
		s.writeEngineError(w, req, "market_getCredits", err)
		return
	}
	writeResult(w, req.ID, map[string]string{"amount": amount.String()})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listingKeyParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	collection, err := parseRequiredAddress(params.Collection)
	if err != nil {
		s.writeEngineError(w, req, "market_getListing", err)
		return
	}
	tokenID, err := parseBigInt(params.TokenID)
	if err != nil {
		s.writeEngineError(w, req, "market_getListing", err)
		return
	}
	listing, ok, err := s.engine.GetListing(collection, tokenID)
	if err != nil {
		s.writeEngineError(w, req, "market_getListing", err)
		return
	}
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeNotFound, market.ErrAuctionNotFound.Error(), nil)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleWithdrawPeriod(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]int64{"withdrawPeriod": s.engine.WithdrawPeriod()})
}

func listingToJSON(l *market.Listing) listingJSON {
	kind := "auction"
	if l.Kind == market.KindSale {
		kind = "sale"
	}
	recipients := make([]string, 0, len(l.FeeRecipients))
	for _, recipient := range l.FeeRecipients {
		recipients = append(recipients, ethcommon.Address(recipient).Hex())
	}
	return listingJSON{
		Collection:    ethcommon.Address(l.Collection).Hex(),
		TokenID:       l.TokenID.String(),
		Seller:        ethcommon.Address(l.Seller).Hex(),
		Kind:          kind,
		ValueToken:    ethcommon.Address(l.ValueToken).Hex(),
		MinPrice:      l.MinPrice.String(),
		BuyNowPrice:   l.BuyNowPrice.String(),
		UnitPrice:     l.UnitPrice.String(),
		Quantity:      l.Units().String(),
		StartTime:     l.StartTime,
		EndTime:       l.EndTime,
		FeeRecipients: recipients,
		FeeShares:     l.FeeShares,
		Whitelisted:   l.Whitelisted,
		HighestBidder: ethcommon.Address(l.HighestBidder).Hex(),
		HighestBid:    l.HighestBid.String(),
		CreatedAt:     l.CreatedAt,
	}
}
