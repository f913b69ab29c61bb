package market

import (
	"fmt"
	"math/big"
)

// ListingKind discriminates the two settlement protocols a listing can run
// under.
type ListingKind uint8

const (
	// KindAuction listings accept competing bids and settle to the highest
	// bidder.
	KindAuction ListingKind = iota + 1
	// KindSale listings sell at a fixed unit price and are consumed
	// atomically on purchase.
	KindSale
)

// Valid reports whether the kind value is within the supported range.
func (k ListingKind) Valid() bool {
	switch k {
	case KindAuction, KindSale:
		return true
	default:
		return false
	}
}

// Listing captures the escrowed-asset record tracking one auction or sale in
// progress. A listing exists for a (collection, tokenId) key if and only if
// the asset is currently held in custody by the engine and not yet finally
// settled.
type Listing struct {
	Collection    [20]byte
	TokenID       *big.Int
	Seller        [20]byte
	Kind          ListingKind
	ValueToken    [20]byte
	MinPrice      *big.Int
	BuyNowPrice   *big.Int
	UnitPrice     *big.Int
	Quantity      *big.Int
	StartTime     int64
	EndTime       int64
	FeeRecipients [][20]byte
	FeeShares     []uint32
	Whitelisted   bool
	HighestBidder [20]byte
	HighestBid    *big.Int
	CreatedAt     int64
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.TokenID = cloneBigInt(l.TokenID)
	clone.MinPrice = cloneBigInt(l.MinPrice)
	clone.BuyNowPrice = cloneBigInt(l.BuyNowPrice)
	clone.UnitPrice = cloneBigInt(l.UnitPrice)
	clone.Quantity = cloneBigInt(l.Quantity)
	clone.HighestBid = cloneBigInt(l.HighestBid)
	if len(l.FeeRecipients) > 0 {
		clone.FeeRecipients = append([][20]byte(nil), l.FeeRecipients...)
	}
	if len(l.FeeShares) > 0 {
		clone.FeeShares = append([]uint32(nil), l.FeeShares...)
	}
	return &clone
}

// HasBid reports whether at least one bid has been recorded on an auction
// listing.
func (l *Listing) HasBid() bool {
	return l != nil && l.HighestBid != nil && l.HighestBid.Sign() > 0
}

// Units returns the quantity carried by the listing, defaulting to one for
// single-unit assets.
func (l *Listing) Units() *big.Int {
	if l == nil || l.Quantity == nil || l.Quantity.Sign() == 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Set(l.Quantity)
}

// windowState reports how the supplied timestamp relates to the listing's
// availability window. Zero start/end values mean "always open" on that side.
func (l *Listing) windowState(now int64) windowState {
	if l.StartTime != 0 && now < l.StartTime {
		return windowNotStarted
	}
	if l.EndTime != 0 && now >= l.EndTime {
		return windowEnded
	}
	return windowOpen
}

type windowState uint8

const (
	windowOpen windowState = iota
	windowNotStarted
	windowEnded
)

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with non-nil amount fields. The function does not mutate
// the original value.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	if !l.Kind.Valid() {
		return nil, fmt.Errorf("market: invalid listing kind: %d", l.Kind)
	}
	if l.TokenID == nil {
		return nil, fmt.Errorf("market: token id required")
	}
	clone := l.Clone()
	if clone.TokenID.Sign() < 0 {
		return nil, fmt.Errorf("market: token id must be non-negative")
	}
	for _, amt := range []*big.Int{clone.MinPrice, clone.BuyNowPrice, clone.UnitPrice, clone.Quantity, clone.HighestBid} {
		if amt.Sign() < 0 {
			return nil, fmt.Errorf("market: listing amounts must be non-negative")
		}
	}
	if clone.StartTime < 0 || clone.EndTime < 0 {
		return nil, fmt.Errorf("market: listing window must be non-negative")
	}
	if clone.StartTime != 0 && clone.EndTime != 0 && clone.EndTime <= clone.StartTime {
		return nil, fmt.Errorf("market: listing window ends before it starts")
	}
	switch clone.Kind {
	case KindAuction:
		if clone.UnitPrice.Sign() != 0 {
			return nil, fmt.Errorf("market: auction listings carry no unit price")
		}
	case KindSale:
		if clone.UnitPrice.Sign() == 0 {
			return nil, fmt.Errorf("market: sale listings require a unit price")
		}
		if clone.BuyNowPrice.Sign() != 0 || clone.MinPrice.Sign() != 0 {
			return nil, fmt.Errorf("market: sale listings carry no auction prices")
		}
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
