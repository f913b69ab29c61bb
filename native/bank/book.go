package bank

import (
	"fmt"
	"math/big"

	"nftmarket/core/state"
)

// Book is a state-backed balance book providing the value-transfer capability
// consumed by the settlement engine. Balances are tracked per value token;
// the zero token address denotes the native currency.
type Book struct {
	manager *state.Manager
}

// NewBook binds a balance book to the supplied state manager.
func NewBook(manager *state.Manager) *Book {
	return &Book{manager: manager}
}

// Transfer moves amount between the two addresses, failing with no side
// effects when the source balance is insufficient. A zero amount is a no-op.
func (b *Book) Transfer(from, to [20]byte, token [20]byte, amount *big.Int) error {
	if b == nil || b.manager == nil {
		return fmt.Errorf("bank: state manager required")
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount")
	}
	if from == to {
		return nil
	}
	fromBalance, err := b.manager.BalanceGet(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("bank: insufficient balance")
	}
	toBalance, err := b.manager.BalanceGet(token, to)
	if err != nil {
		return err
	}
	if err := b.manager.BalancePut(token, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return b.manager.BalancePut(token, to, new(big.Int).Add(toBalance, amount))
}

// Balance returns the value balance held by addr in the supplied token.
func (b *Book) Balance(token, addr [20]byte) (*big.Int, error) {
	if b == nil || b.manager == nil {
		return nil, fmt.Errorf("bank: state manager required")
	}
	return b.manager.BalanceGet(token, addr)
}

// Mint credits freshly issued value to the supplied address. Intended for
// genesis provisioning and tests.
func (b *Book) Mint(token, addr [20]byte, amount *big.Int) error {
	if b == nil || b.manager == nil {
		return fmt.Errorf("bank: state manager required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: mint amount must be positive")
	}
	balance, err := b.manager.BalanceGet(token, addr)
	if err != nil {
		return err
	}
	return b.manager.BalancePut(token, addr, new(big.Int).Add(balance, amount))
}
