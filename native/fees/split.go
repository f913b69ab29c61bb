package fees

import (
	"fmt"
	"math/big"
)

// BpsDenominator is the basis-point scale used by fee share tables.
const BpsDenominator = 10_000

// Table is an ordered list of fee recipients and their shares expressed in
// basis points. An empty table means the fallback recipient (the seller)
// receives the full gross amount.
type Table struct {
	Recipients [][20]byte
	Shares     []uint32
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	clone := Table{}
	if len(t.Recipients) > 0 {
		clone.Recipients = append([][20]byte(nil), t.Recipients...)
	}
	if len(t.Shares) > 0 {
		clone.Shares = append([]uint32(nil), t.Shares...)
	}
	return clone
}

// Empty reports whether the table routes everything to the fallback.
func (t Table) Empty() bool { return len(t.Recipients) == 0 }

// Validate checks the recipient/share table once at listing-creation time.
// Shares must be parallel to recipients, strictly positive, and sum to
// exactly 10000 basis points.
func (t Table) Validate(maxRecipients int) error {
	if len(t.Recipients) != len(t.Shares) {
		return fmt.Errorf("fees: recipients and shares length mismatch (%d != %d)", len(t.Recipients), len(t.Shares))
	}
	if t.Empty() {
		return nil
	}
	if maxRecipients > 0 && len(t.Recipients) > maxRecipients {
		return fmt.Errorf("fees: too many fee recipients (%d > %d)", len(t.Recipients), maxRecipients)
	}
	var sum uint64
	for i, share := range t.Shares {
		if share == 0 {
			return fmt.Errorf("fees: zero share at index %d", i)
		}
		sum += uint64(share)
	}
	if sum != BpsDenominator {
		return fmt.Errorf("fees: shares must sum to %d basis points (got %d)", BpsDenominator, sum)
	}
	return nil
}

// Split computes the per-recipient amounts for the supplied gross value using
// floor division, routing the rounding remainder to the last recipient so the
// distributed total always equals the gross exactly.
func (t Table) Split(gross *big.Int) []*big.Int {
	shares := make([]*big.Int, len(t.Shares))
	if len(shares) == 0 {
		return shares
	}
	total := big.NewInt(0)
	if gross != nil {
		total = new(big.Int).Set(gross)
	}
	distributed := big.NewInt(0)
	denom := big.NewInt(BpsDenominator)
	for i, bps := range t.Shares {
		amount := new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(bps)))
		amount.Div(amount, denom)
		shares[i] = amount
		distributed.Add(distributed, amount)
	}
	remainder := new(big.Int).Sub(total, distributed)
	if remainder.Sign() > 0 {
		last := len(shares) - 1
		shares[last] = new(big.Int).Add(shares[last], remainder)
	}
	return shares
}
