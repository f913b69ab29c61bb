package escrow

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

// ErrNoCredits is returned when a beneficiary with a zero credit balance
// attempts a withdrawal. The string is part of the engine's external
// contract.
var ErrNoCredits = errors.New("no credits to withdraw")

var (
	errNilState = errors.New("escrow ledger: state not configured")
	errNilBank  = errors.New("escrow ledger: bank not configured")
)

// Bank is the value-transfer capability consumed by the ledger. Transfer
// must either complete the movement synchronously or fail with no partial
// effect; it must never block.
type Bank interface {
	Transfer(from, to [20]byte, token [20]byte, amount *big.Int) error
}

type ledgerState interface {
	CreditGet(token, beneficiary [20]byte) (*big.Int, error)
	CreditPut(token, beneficiary [20]byte, amount *big.Int) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

const (
	EventTypeCreditStored  = "market.escrow.credited"
	EventTypeCreditClaimed = "market.escrow.claimed"
)

// Ledger tracks, per beneficiary, value that could not be pushed
// synchronously and must be pulled later. Failed pushes degrade to stored
// credits instead of propagating the failure, so a broken or hostile
// recipient can never block the operation that triggered the payout.
type Ledger struct {
	state   ledgerState
	bank    Bank
	vault   [20]byte
	emitter events.Emitter
}

// NewLedger creates a credit ledger with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetBank configures the value-transfer capability used for pushes and
// withdrawals.
func (l *Ledger) SetBank(bank Bank) { l.bank = bank }

// SetVault configures the address holding captured value on behalf of the
// engine. Pushes and credit withdrawals are paid from this address.
func (l *Ledger) SetVault(vault [20]byte) { l.vault = vault }

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(ledgerEvent{evt: evt})
}

// PayOrCredit attempts an immediate transfer of amount from the vault to the
// beneficiary. On failure the amount is credited to the beneficiary's ledger
// balance instead; the triggering operation is never blocked by a recipient.
// Only state-backend failures are returned as errors.
func (l *Ledger) PayOrCredit(token, beneficiary [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if l.bank == nil {
		return errNilBank
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow ledger: negative payout amount")
	}
	if err := l.bank.Transfer(l.vault, beneficiary, token, amount); err == nil {
		return nil
	}
	current, err := l.state.CreditGet(token, beneficiary)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(current, amount)
	if err := l.state.CreditPut(token, beneficiary, updated); err != nil {
		return err
	}
	l.emit(&types.Event{Type: EventTypeCreditStored, Attributes: map[string]string{
		"beneficiary": hex.EncodeToString(beneficiary[:]),
		"token":       hex.EncodeToString(token[:]),
		"amount":      amount.String(),
		"balance":     updated.String(),
	}})
	return nil
}

// Credits returns the beneficiary's current credit balance for the supplied
// value token.
func (l *Ledger) Credits(token, beneficiary [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.CreditGet(token, beneficiary)
}

// WithdrawCredits pays out the beneficiary's full current credit and zeroes
// it. The call is a pull: anyone may invoke it on behalf of the beneficiary.
// It fails with ErrNoCredits when the balance is zero.
func (l *Ledger) WithdrawCredits(token, beneficiary [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if l.bank == nil {
		return nil, errNilBank
	}
	balance, err := l.state.CreditGet(token, beneficiary)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return nil, ErrNoCredits
	}
	// Zero before paying so a reentrant withdrawal cannot double-claim.
	if err := l.state.CreditPut(token, beneficiary, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := l.bank.Transfer(l.vault, beneficiary, token, balance); err != nil {
		// Restore the balance; the pull simply failed this time.
		if restoreErr := l.state.CreditPut(token, beneficiary, balance); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, err
	}
	l.emit(&types.Event{Type: EventTypeCreditClaimed, Attributes: map[string]string{
		"beneficiary": hex.EncodeToString(beneficiary[:]),
		"token":       hex.EncodeToString(token[:]),
		"amount":      balance.String(),
	}})
	return new(big.Int).Set(balance), nil
}
