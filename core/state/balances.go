package state

import (
	"fmt"
	"math/big"
)

var balancePrefix = []byte("balance/")

func balanceKey(token, addr [20]byte) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(token)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, token[:]...)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return buf
}

// BalanceGet returns the value balance held by addr in the supplied token.
// The zero token address denotes the native currency. Absent entries read as
// zero.
func (m *Manager) BalanceGet(token, addr [20]byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(balanceKey(token, addr), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// BalancePut stores the value balance held by addr in the supplied token.
func (m *Manager) BalancePut(token, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	return m.KVPut(balanceKey(token, addr), amount)
}
