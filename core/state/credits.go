package state

import (
	"fmt"
	"math/big"
)

var creditPrefix = []byte("market/credit/")

func creditKey(token, beneficiary [20]byte) []byte {
	buf := make([]byte, 0, len(creditPrefix)+len(token)+1+len(beneficiary))
	buf = append(buf, creditPrefix...)
	buf = append(buf, token[:]...)
	buf = append(buf, ':')
	buf = append(buf, beneficiary[:]...)
	return buf
}

// CreditGet returns the escrow credit accumulated for the beneficiary in the
// supplied value token. Absent entries read as zero.
func (m *Manager) CreditGet(token, beneficiary [20]byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(creditKey(token, beneficiary), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// CreditPut stores the escrow credit balance for the beneficiary. Balances
// are zeroed, not removed, on full withdrawal.
func (m *Manager) CreditPut(token, beneficiary [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit balance must be non-negative")
	}
	return m.KVPut(creditKey(token, beneficiary), amount)
}
