package market

import (
	"fmt"
	"math/big"
)

// SaleParams carries the shared configuration applied to every listing in a
// createSales batch.
type SaleParams struct {
	ValueToken  [20]byte
	UnitPrice   *big.Int
	StartTime   int64
	EndTime     int64
	Recipients  [][20]byte
	Shares      []uint32
	Whitelisted bool
}

// CreateSales custodies each asset and creates one fixed-price listing per
// token identifier. An empty amounts slice lists every token as a
// single-unit asset; otherwise amounts must run parallel to tokenIDs and
// carry the lot quantity custodied per identifier.
func (e *Engine) CreateSales(seller [20]byte, collection [20]byte, tokenIDs []*big.Int, amounts []*big.Int, params SaleParams) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("market: at least one token id required")
	}
	if len(amounts) != 0 && len(amounts) != len(tokenIDs) {
		return nil, fmt.Errorf("market: token ids and amounts length mismatch (%d != %d)", len(tokenIDs), len(amounts))
	}
	if params.UnitPrice == nil || params.UnitPrice.Sign() <= 0 {
		return nil, fmt.Errorf("market: unit price must be positive")
	}
	if err := validateFeeTable(params.Recipients, params.Shares, e.maxFeeRecipients); err != nil {
		return nil, err
	}
	now := e.now()
	results := make([]BatchResult, 0, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		var amount *big.Int
		if len(amounts) != 0 {
			amount = amounts[i]
		}
		results = append(results, BatchResult{TokenID: tokenID, Err: e.createSale(seller, collection, tokenID, amount, params, now)})
	}
	return results, nil
}

func (e *Engine) createSale(seller [20]byte, collection [20]byte, tokenID, amount *big.Int, params SaleParams, now int64) error {
	listed, err := e.state.ListingHas(collection, tokenID)
	if err != nil {
		return err
	}
	if listed {
		return ErrAlreadyListed
	}
	if amount != nil && amount.Sign() <= 0 {
		return fmt.Errorf("market: lot quantity must be positive")
	}
	listing := &Listing{
		Collection:    collection,
		TokenID:       tokenID,
		Seller:        seller,
		Kind:          KindSale,
		ValueToken:    params.ValueToken,
		UnitPrice:     params.UnitPrice,
		Quantity:      amount,
		StartTime:     params.StartTime,
		EndTime:       params.EndTime,
		FeeRecipients: params.Recipients,
		FeeShares:     params.Shares,
		Whitelisted:   params.Whitelisted,
		CreatedAt:     now,
	}
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return err
	}
	if err := e.custodyFromSeller(seller, collection, tokenID, amount); err != nil {
		return err
	}
	if err := e.state.ListingPut(sanitized); err != nil {
		return err
	}
	e.emit(NewSaleCreatedEvent(sanitized))
	return nil
}

// BuyTokens purchases the supplied listings in one atomic call. The whole
// call is validated before any state moves: a policy violation on any item
// rejects everything, and the transfer of assets plus the split of the paid
// amount then commit together. Token ids must be distinct and every listing
// must share one value token, since the payment is captured as a single
// transfer. An empty amounts slice requests the full lot of every listing.
func (e *Engine) BuyTokens(buyer [20]byte, collection [20]byte, tokenIDs []*big.Int, amounts []*big.Int, paid *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if len(tokenIDs) == 0 {
		return fmt.Errorf("market: at least one token id required")
	}
	if len(amounts) != 0 && len(amounts) != len(tokenIDs) {
		return fmt.Errorf("market: token ids and amounts length mismatch (%d != %d)", len(tokenIDs), len(amounts))
	}
	listings := make([]*Listing, 0, len(tokenIDs))
	requested := make([]*big.Int, 0, len(tokenIDs))
	seen := make(map[string]struct{}, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		if tokenID == nil {
			return fmt.Errorf("market: token id required")
		}
		if _, dup := seen[tokenID.String()]; dup {
			return fmt.Errorf("market: duplicate token id %s", tokenID)
		}
		seen[tokenID.String()] = struct{}{}
		listing, ok, err := e.state.ListingGet(collection, tokenID)
		if err != nil {
			return err
		}
		if !ok || listing.Kind != KindSale {
			return ErrSaleNotFound
		}
		amount := listing.Units()
		if len(amounts) != 0 && amounts[i] != nil {
			amount = new(big.Int).Set(amounts[i])
		}
		listings = append(listings, listing)
		requested = append(requested, amount)
	}
	return e.buyListings(buyer, listings, requested, paid)
}

// buyListings validates and settles a purchase across the supplied listings.
// Callers hold the engine lock.
func (e *Engine) buyListings(buyer [20]byte, listings []*Listing, requested []*big.Int, paid *big.Int) error {
	now := e.now()
	total := big.NewInt(0)
	token := listings[0].ValueToken
	for i, listing := range listings {
		// The whole payment is captured in one token, so every listing's
		// proceeds must be denominated in it.
		if listing.ValueToken != token {
			return fmt.Errorf("market: listings priced in different value tokens")
		}
		switch listing.windowState(now) {
		case windowNotStarted:
			return ErrSaleNotStarted
		case windowEnded:
			return ErrSaleEnded
		}
		qualified, err := e.isQualified(listing, buyer)
		if err != nil {
			return err
		}
		if !qualified {
			return ErrNotWhitelisted
		}
		if requested[i] == nil || requested[i].Sign() <= 0 || requested[i].Cmp(listing.Units()) != 0 {
			return ErrPartialPurchase
		}
		total.Add(total, new(big.Int).Mul(listing.UnitPrice, requested[i]))
	}
	if paid == nil || paid.Cmp(total) < 0 {
		return ErrInsufficientFunds
	}
	if err := e.bank.Transfer(buyer, e.vault, token, paid); err != nil {
		return fmt.Errorf("market: capture payment: %w", err)
	}
	// The full paid amount is distributed; any excess over the sum of the
	// listed prices rides along with the last listing's split.
	excess := new(big.Int).Sub(paid, total)
	for i, listing := range listings {
		gross := new(big.Int).Mul(listing.UnitPrice, requested[i])
		if i == len(listings)-1 {
			gross.Add(gross, excess)
		}
		if err := e.releaseFromCustody(buyer, listing.Collection, listing.TokenID, requested[i]); err != nil {
			return err
		}
		if err := e.splitAndPay(listing, gross); err != nil {
			return err
		}
		if err := e.state.ListingDelete(listing.Collection, listing.TokenID); err != nil {
			return err
		}
		e.emit(NewSaleCompletedEvent(listing, buyer, gross))
	}
	return nil
}

// WithdrawSales returns unsold assets to the seller. Only the listing seller
// may withdraw, at any time before a sale completes. An empty amounts slice
// withdraws the full remaining lot of every listing; a smaller amount
// decrements the lot and keeps the listing open.
func (e *Engine) WithdrawSales(caller [20]byte, collection [20]byte, tokenIDs []*big.Int, amounts []*big.Int) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(amounts) != 0 && len(amounts) != len(tokenIDs) {
		return nil, fmt.Errorf("market: token ids and amounts length mismatch (%d != %d)", len(tokenIDs), len(amounts))
	}
	results := make([]BatchResult, 0, len(tokenIDs))
	for i, tokenID := range tokenIDs {
		var amount *big.Int
		if len(amounts) != 0 {
			amount = amounts[i]
		}
		results = append(results, BatchResult{TokenID: tokenID, Err: e.withdrawSale(caller, collection, tokenID, amount)})
	}
	return results, nil
}

func (e *Engine) withdrawSale(caller [20]byte, collection [20]byte, tokenID, amount *big.Int) error {
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok || listing.Kind != KindSale {
		return ErrSaleNotFound
	}
	if caller != listing.Seller {
		return ErrNotSeller
	}
	remaining := listing.Units()
	withdrawn := remaining
	if amount != nil {
		if amount.Sign() <= 0 || amount.Cmp(remaining) > 0 {
			return fmt.Errorf("market: withdraw amount exceeds listed quantity")
		}
		withdrawn = new(big.Int).Set(amount)
	}
	if err := e.releaseFromCustody(listing.Seller, collection, tokenID, withdrawn); err != nil {
		return err
	}
	left := new(big.Int).Sub(remaining, withdrawn)
	if left.Sign() == 0 {
		if err := e.state.ListingDelete(collection, tokenID); err != nil {
			return err
		}
	} else {
		listing.Quantity = left
		if err := e.state.ListingPut(listing); err != nil {
			return err
		}
	}
	e.emit(NewSaleWithdrawnEvent(listing))
	return nil
}
