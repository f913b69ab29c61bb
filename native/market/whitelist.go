package market

import "math/big"

// Evaluator decides whether a caller holds a qualifying token in the
// configured allow-list of collections. The collection set is fixed at
// construction time.
type Evaluator struct {
	collections [][20]byte
}

// NewEvaluator creates an allow-list evaluator over the supplied collection
// set.
func NewEvaluator(collections [][20]byte) *Evaluator {
	copied := append([][20]byte(nil), collections...)
	return &Evaluator{collections: copied}
}

// Collections returns the configured collection set.
func (w *Evaluator) Collections() [][20]byte {
	if w == nil {
		return nil
	}
	return append([][20]byte(nil), w.collections...)
}

// IsQualified reports whether the caller owns at least one token in any
// configured collection. An empty collection set disables the gate, so every
// caller qualifies.
func (w *Evaluator) IsQualified(caller [20]byte, balanceOf func(owner, collection [20]byte) (*big.Int, error)) (bool, error) {
	if w == nil || len(w.collections) == 0 {
		return true, nil
	}
	for _, collection := range w.collections {
		balance, err := balanceOf(caller, collection)
		if err != nil {
			return false, err
		}
		if balance != nil && balance.Sign() > 0 {
			return true, nil
		}
	}
	return false, nil
}
