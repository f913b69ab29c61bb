package state

import (
	"fmt"
	"math/big"

	"nftmarket/native/market"
)

var listingPrefix = []byte("market/listing/")

type storedListing struct {
	Seller        [20]byte
	Kind          uint8
	ValueToken    [20]byte
	MinPrice      *big.Int
	BuyNowPrice   *big.Int
	UnitPrice     *big.Int
	Quantity      *big.Int
	StartTime     uint64
	EndTime       uint64
	FeeRecipients [][20]byte
	FeeShares     []uint32
	Whitelisted   bool
	HighestBidder [20]byte
	HighestBid    *big.Int
	CreatedAt     uint64
}

func listingKey(collection [20]byte, tokenID *big.Int) []byte {
	id := []byte{}
	if tokenID != nil {
		id = tokenID.Bytes()
	}
	buf := make([]byte, 0, len(listingPrefix)+len(collection)+1+len(id))
	buf = append(buf, listingPrefix...)
	buf = append(buf, collection[:]...)
	buf = append(buf, ':')
	buf = append(buf, id...)
	return buf
}

// ListingPut stores the supplied listing, overwriting any previous record for
// the same (collection, tokenId) key. Callers enforce create-versus-update
// semantics via ListingHas.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	stored := storedListing{
		Seller:        sanitized.Seller,
		Kind:          uint8(sanitized.Kind),
		ValueToken:    sanitized.ValueToken,
		MinPrice:      sanitized.MinPrice,
		BuyNowPrice:   sanitized.BuyNowPrice,
		UnitPrice:     sanitized.UnitPrice,
		Quantity:      sanitized.Quantity,
		StartTime:     uint64(sanitized.StartTime),
		EndTime:       uint64(sanitized.EndTime),
		FeeRecipients: sanitized.FeeRecipients,
		FeeShares:     sanitized.FeeShares,
		Whitelisted:   sanitized.Whitelisted,
		HighestBidder: sanitized.HighestBidder,
		HighestBid:    sanitized.HighestBid,
		CreatedAt:     uint64(sanitized.CreatedAt),
	}
	return m.KVPut(listingKey(sanitized.Collection, sanitized.TokenID), &stored)
}

// ListingGet retrieves the listing stored for the supplied key. The boolean
// return reports existence; absent keys are not an error.
func (m *Manager) ListingGet(collection [20]byte, tokenID *big.Int) (*market.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet(listingKey(collection, tokenID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	listing := &market.Listing{
		Collection:    collection,
		TokenID:       cloneOrZero(tokenID),
		Seller:        stored.Seller,
		Kind:          market.ListingKind(stored.Kind),
		ValueToken:    stored.ValueToken,
		MinPrice:      cloneOrZero(stored.MinPrice),
		BuyNowPrice:   cloneOrZero(stored.BuyNowPrice),
		UnitPrice:     cloneOrZero(stored.UnitPrice),
		Quantity:      cloneOrZero(stored.Quantity),
		StartTime:     int64(stored.StartTime),
		EndTime:       int64(stored.EndTime),
		FeeRecipients: stored.FeeRecipients,
		FeeShares:     stored.FeeShares,
		Whitelisted:   stored.Whitelisted,
		HighestBidder: stored.HighestBidder,
		HighestBid:    cloneOrZero(stored.HighestBid),
		CreatedAt:     int64(stored.CreatedAt),
	}
	return listing, true, nil
}

// ListingHas reports whether a listing exists for the supplied key.
func (m *Manager) ListingHas(collection [20]byte, tokenID *big.Int) (bool, error) {
	return m.KVHas(listingKey(collection, tokenID))
}

// ListingDelete removes the listing stored for the supplied key.
func (m *Manager) ListingDelete(collection [20]byte, tokenID *big.Int) error {
	if tokenID == nil {
		return fmt.Errorf("state: token id required")
	}
	return m.KVDelete(listingKey(collection, tokenID))
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
