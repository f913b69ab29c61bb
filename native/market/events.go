package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeAuctionCreated   = "market.auction.created"
	EventTypeBidPlaced        = "market.auction.bid"
	EventTypeAuctionSettled   = "market.auction.settled"
	EventTypeAuctionWithdrawn = "market.auction.withdrawn"
	EventTypeAuctionExtended  = "market.auction.extended"
	EventTypeSaleCreated      = "market.sale.created"
	EventTypeSaleCompleted    = "market.sale.sold"
	EventTypeSaleWithdrawn    = "market.sale.withdrawn"
)

// NewAuctionCreatedEvent returns the canonical payload for a newly created
// auction listing.
func NewAuctionCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeAuctionCreated, l)
}

// NewBidPlacedEvent returns the payload emitted when a bid is accepted.
func NewBidPlacedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeBidPlaced, l)
}

// NewAuctionSettledEvent returns the payload emitted when an auction listing
// reaches a terminal settled state. The winner is the zero address when a
// zero-bid auction settles back to the seller.
func NewAuctionSettledEvent(l *Listing, winner [20]byte, amount *big.Int) *types.Event {
	evt := newListingEvent(EventTypeAuctionSettled, l)
	evt.Attributes["winner"] = hex.EncodeToString(winner[:])
	evt.Attributes["amount"] = bigIntString(amount)
	return evt
}

// NewAuctionWithdrawnEvent returns the payload emitted when an auction is
// withdrawn and the asset returned to the seller.
func NewAuctionWithdrawnEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeAuctionWithdrawn, l)
}

// NewAuctionExtendedEvent returns the payload emitted when a seller updates
// an auction's end time.
func NewAuctionExtendedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeAuctionExtended, l)
}

// NewSaleCreatedEvent returns the payload for a newly created sale listing.
func NewSaleCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeSaleCreated, l)
}

// NewSaleCompletedEvent returns the payload emitted when a purchase settles.
func NewSaleCompletedEvent(l *Listing, buyer [20]byte, amount *big.Int) *types.Event {
	evt := newListingEvent(EventTypeSaleCompleted, l)
	evt.Attributes["buyer"] = hex.EncodeToString(buyer[:])
	evt.Attributes["amount"] = bigIntString(amount)
	return evt
}

// NewSaleWithdrawnEvent returns the payload emitted when unsold assets are
// returned to the seller.
func NewSaleWithdrawnEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeSaleWithdrawn, l)
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := map[string]string{}
	if l != nil {
		attrs["collection"] = hex.EncodeToString(l.Collection[:])
		attrs["tokenId"] = bigIntString(l.TokenID)
		attrs["seller"] = hex.EncodeToString(l.Seller[:])
		attrs["startTime"] = strconv.FormatInt(l.StartTime, 10)
		attrs["endTime"] = strconv.FormatInt(l.EndTime, 10)
		if l.Kind == KindAuction {
			attrs["highestBid"] = bigIntString(l.HighestBid)
			attrs["highestBidder"] = hex.EncodeToString(l.HighestBidder[:])
		}
		if l.Kind == KindSale {
			attrs["unitPrice"] = bigIntString(l.UnitPrice)
			attrs["quantity"] = l.Units().String()
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
