package market

import "errors"

// Failure reasons surfaced verbatim to callers. The strings are part of the
// engine's external contract and must not be reworded.
var (
	ErrNotWhitelisted       = errors.New("Sender has no whitelisted NFTs")
	ErrAuctionNotFound      = errors.New("Auction does not exist")
	ErrAuctionNotStarted    = errors.New("Auction has not started")
	ErrAuctionEnded         = errors.New("Auction has ended")
	ErrSaleNotFound         = errors.New("Sale does not exist")
	ErrSaleNotStarted       = errors.New("Sale has not started")
	ErrSaleEnded            = errors.New("Sale has ended")
	ErrInsufficientBid      = errors.New("Not enough funds to bid on NFT")
	ErrInsufficientFunds    = errors.New("Not enough funds to buy tokens")
	ErrOnlyOwnerBeforeDelay = errors.New("Only owner can withdraw before delay")
)

// Creation-time and authorization failures local to this implementation.
var (
	ErrAlreadyListed   = errors.New("market: token is already listed")
	ErrPartialPurchase = errors.New("market: partial lot purchase is not supported")
	ErrNoBids          = errors.New("market: auction has no bids")
	ErrNotSeller       = errors.New("market: caller is not the listing seller")
	ErrNotSettleable   = errors.New("market: auction end time has not elapsed")
)
