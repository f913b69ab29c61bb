package market

import (
	"fmt"
	"math/big"
)

// AuctionParams carries the shared configuration applied to every listing in
// a createAuctions batch.
type AuctionParams struct {
	ValueToken  [20]byte
	MinPrice    *big.Int
	BuyNowPrice *big.Int
	StartTime   int64
	EndTime     int64
	Recipients  [][20]byte
	Shares      []uint32
	Whitelisted bool
}

// CreateAuctions custodies each asset and creates one auction listing per
// token identifier. The seller must have pre-approved the assets to the
// engine vault. Items succeed or fail independently; a per-item custody or
// duplicate failure never corrupts sibling items.
func (e *Engine) CreateAuctions(seller [20]byte, collection [20]byte, tokenIDs []*big.Int, params AuctionParams) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("market: at least one token id required")
	}
	if err := validateFeeTable(params.Recipients, params.Shares, e.maxFeeRecipients); err != nil {
		return nil, err
	}
	now := e.now()
	results := make([]BatchResult, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		results = append(results, BatchResult{TokenID: tokenID, Err: e.createAuction(seller, collection, tokenID, params, now)})
	}
	return results, nil
}

func (e *Engine) createAuction(seller [20]byte, collection [20]byte, tokenID *big.Int, params AuctionParams, now int64) error {
	listed, err := e.state.ListingHas(collection, tokenID)
	if err != nil {
		return err
	}
	if listed {
		return ErrAlreadyListed
	}
	listing := &Listing{
		Collection:    collection,
		TokenID:       tokenID,
		Seller:        seller,
		Kind:          KindAuction,
		ValueToken:    params.ValueToken,
		MinPrice:      params.MinPrice,
		BuyNowPrice:   params.BuyNowPrice,
		StartTime:     params.StartTime,
		EndTime:       params.EndTime,
		FeeRecipients: params.Recipients,
		FeeShares:     params.Shares,
		Whitelisted:   params.Whitelisted,
		HighestBid:    big.NewInt(0),
		CreatedAt:     now,
	}
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return err
	}
	if err := e.custodyFromSeller(seller, collection, tokenID, nil); err != nil {
		return err
	}
	if err := e.state.ListingPut(sanitized); err != nil {
		return err
	}
	e.emit(NewAuctionCreatedEvent(sanitized))
	return nil
}

// MakeBid places a competing value offer on an auction listing. A bid on a
// fixed-price listing settles the purchase immediately when it covers the
// unit price. On an accepted outbid the previous highest bidder is refunded
// through the escrow ledger, never blocking the new bid.
func (e *Engine) MakeBid(bidder [20]byte, collection [20]byte, tokenID *big.Int, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInsufficientBid
	}
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuctionNotFound
	}
	if listing.Kind == KindSale {
		return e.buyListings(bidder, []*Listing{listing}, []*big.Int{listing.Units()}, amount)
	}
	now := e.now()
	switch listing.windowState(now) {
	case windowNotStarted:
		return ErrAuctionNotStarted
	case windowEnded:
		return ErrAuctionEnded
	}
	qualified, err := e.isQualified(listing, bidder)
	if err != nil {
		return err
	}
	if !qualified {
		return ErrNotWhitelisted
	}
	if listing.HasBid() {
		if amount.Cmp(listing.HighestBid) <= 0 {
			return ErrInsufficientBid
		}
	} else if listing.MinPrice.Sign() > 0 && amount.Cmp(listing.MinPrice) < 0 {
		return ErrInsufficientBid
	}
	if err := e.bank.Transfer(bidder, e.vault, listing.ValueToken, amount); err != nil {
		return fmt.Errorf("market: capture bid: %w", err)
	}
	if listing.HasBid() {
		if err := e.ledger.PayOrCredit(listing.ValueToken, listing.HighestBidder, listing.HighestBid); err != nil {
			return err
		}
	}
	listing.HighestBidder = bidder
	listing.HighestBid = new(big.Int).Set(amount)
	if listing.BuyNowPrice.Sign() > 0 && amount.Cmp(listing.BuyNowPrice) >= 0 {
		return e.finalizeAuction(listing, bidder, amount)
	}
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewBidPlacedEvent(listing))
	return nil
}

// TakeHighestBids finalizes each listing at its current highest bid,
// transferring the asset to the leading bidder and splitting the proceeds.
// Only the listing seller may accept a bid early.
func (e *Engine) TakeHighestBids(caller [20]byte, collection [20]byte, tokenIDs []*big.Int) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	results := make([]BatchResult, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		results = append(results, BatchResult{TokenID: tokenID, Err: e.takeHighestBid(caller, collection, tokenID)})
	}
	return results, nil
}

func (e *Engine) takeHighestBid(caller [20]byte, collection [20]byte, tokenID *big.Int) error {
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok || listing.Kind != KindAuction {
		return ErrAuctionNotFound
	}
	if listing.Seller != caller {
		return ErrNotSeller
	}
	if !listing.HasBid() {
		return ErrNoBids
	}
	return e.finalizeAuction(listing, listing.HighestBidder, listing.HighestBid)
}

// SettleAuctions finalizes listings whose end time has elapsed. An auction
// that never received a bid settles as a plain return of the asset to the
// seller with no payment movement.
func (e *Engine) SettleAuctions(collection [20]byte, tokenIDs []*big.Int) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	results := make([]BatchResult, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		results = append(results, BatchResult{TokenID: tokenID, Err: e.settleAuction(collection, tokenID, now)})
	}
	return results, nil
}

func (e *Engine) settleAuction(collection [20]byte, tokenID *big.Int, now int64) error {
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok || listing.Kind != KindAuction {
		return ErrAuctionNotFound
	}
	if listing.EndTime == 0 || now < listing.EndTime {
		return ErrNotSettleable
	}
	if !listing.HasBid() {
		if err := e.releaseFromCustody(listing.Seller, collection, tokenID, nil); err != nil {
			return err
		}
		if err := e.state.ListingDelete(collection, tokenID); err != nil {
			return err
		}
		e.emit(NewAuctionSettledEvent(listing, [20]byte{}, big.NewInt(0)))
		return nil
	}
	return e.finalizeAuction(listing, listing.HighestBidder, listing.HighestBid)
}

func (e *Engine) finalizeAuction(listing *Listing, winner [20]byte, amount *big.Int) error {
	if err := e.releaseFromCustody(winner, listing.Collection, listing.TokenID, nil); err != nil {
		return err
	}
	if err := e.splitAndPay(listing, amount); err != nil {
		return err
	}
	if err := e.state.ListingDelete(listing.Collection, listing.TokenID); err != nil {
		return err
	}
	e.emit(NewAuctionSettledEvent(listing, winner, amount))
	return nil
}

// WithdrawAuctions returns each listing's asset to its seller and refunds
// the current highest bidder. The seller may withdraw at any time; any other
// caller must wait until the withdraw period after the auction's end has
// elapsed.
func (e *Engine) WithdrawAuctions(caller [20]byte, collection [20]byte, tokenIDs []*big.Int) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	results := make([]BatchResult, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		results = append(results, BatchResult{TokenID: tokenID, Err: e.withdrawAuction(caller, collection, tokenID, now)})
	}
	return results, nil
}

func (e *Engine) withdrawAuction(caller [20]byte, collection [20]byte, tokenID *big.Int, now int64) error {
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok || listing.Kind != KindAuction {
		return ErrAuctionNotFound
	}
	if caller != listing.Seller {
		if listing.EndTime == 0 || now < listing.EndTime+e.withdrawPeriod {
			return ErrOnlyOwnerBeforeDelay
		}
	}
	if err := e.releaseFromCustody(listing.Seller, collection, tokenID, nil); err != nil {
		return err
	}
	if listing.HasBid() {
		if err := e.ledger.PayOrCredit(listing.ValueToken, listing.HighestBidder, listing.HighestBid); err != nil {
			return err
		}
	}
	if err := e.state.ListingDelete(collection, tokenID); err != nil {
		return err
	}
	e.emit(NewAuctionWithdrawnEvent(listing))
	return nil
}

// UpdateAuctionsEnd changes the end time of the supplied listings. Only the
// listing seller may do so; bid state is untouched, and extending a closed
// window re-opens bidding.
func (e *Engine) UpdateAuctionsEnd(caller [20]byte, collection [20]byte, tokenIDs []*big.Int, newEndTime int64) ([]BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if newEndTime < 0 {
		return nil, fmt.Errorf("market: end time must be non-negative")
	}
	results := make([]BatchResult, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		results = append(results, BatchResult{TokenID: tokenID, Err: e.updateAuctionEnd(caller, collection, tokenID, newEndTime)})
	}
	return results, nil
}

func (e *Engine) updateAuctionEnd(caller [20]byte, collection [20]byte, tokenID *big.Int, newEndTime int64) error {
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok || listing.Kind != KindAuction {
		return ErrAuctionNotFound
	}
	if caller != listing.Seller {
		return ErrNotSeller
	}
	if newEndTime != 0 && listing.StartTime != 0 && newEndTime <= listing.StartTime {
		return fmt.Errorf("market: end time must follow start time")
	}
	listing.EndTime = newEndTime
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewAuctionExtendedEvent(listing))
	return nil
}
