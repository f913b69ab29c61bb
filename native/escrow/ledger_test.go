package escrow

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"nftmarket/core/events"
)

type creditKey struct {
	token       [20]byte
	beneficiary [20]byte
}

type mockState struct {
	credits map[creditKey]*big.Int
}

func newMockState() *mockState {
	return &mockState{credits: make(map[creditKey]*big.Int)}
}

func (m *mockState) CreditGet(token, beneficiary [20]byte) (*big.Int, error) {
	if balance, ok := m.credits[creditKey{token, beneficiary}]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) CreditPut(token, beneficiary [20]byte, amount *big.Int) error {
	m.credits[creditKey{token, beneficiary}] = new(big.Int).Set(amount)
	return nil
}

type mockBank struct {
	failTransfers bool
	transfers     int
}

func (m *mockBank) Transfer(from, to [20]byte, token [20]byte, amount *big.Int) error {
	if m.failTransfers {
		return errors.New("transfer rejected")
	}
	m.transfers++
	return nil
}

type captureEmitter struct {
	types []string
}

func (c *captureEmitter) Emit(evt events.Event) {
	if evt != nil {
		c.types = append(c.types, evt.EventType())
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestLedger(state *mockState, bank *mockBank) *Ledger {
	ledger := NewLedger()
	ledger.SetState(state)
	ledger.SetBank(bank)
	ledger.SetVault(newTestAddress(0xEE))
	return ledger
}

func TestPayOrCreditPushesWhenBankAccepts(t *testing.T) {
	state := newMockState()
	bank := &mockBank{}
	ledger := newTestLedger(state, bank)
	beneficiary := newTestAddress(0x01)
	var token [20]byte

	if err := ledger.PayOrCredit(token, beneficiary, big.NewInt(500)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	if bank.transfers != 1 {
		t.Fatalf("transfers = %d, want 1", bank.transfers)
	}
	credit, err := ledger.Credits(token, beneficiary)
	if err != nil {
		t.Fatalf("Credits: %v", err)
	}
	if credit.Sign() != 0 {
		t.Fatalf("credit = %s, want 0", credit)
	}
}

func TestPayOrCreditAccumulatesOnFailedPush(t *testing.T) {
	state := newMockState()
	bank := &mockBank{failTransfers: true}
	ledger := newTestLedger(state, bank)
	emitter := &captureEmitter{}
	ledger.SetEmitter(emitter)
	beneficiary := newTestAddress(0x02)
	var token [20]byte

	if err := ledger.PayOrCredit(token, beneficiary, big.NewInt(300)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	if err := ledger.PayOrCredit(token, beneficiary, big.NewInt(200)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	credit, err := ledger.Credits(token, beneficiary)
	if err != nil {
		t.Fatalf("Credits: %v", err)
	}
	if credit.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("credit = %s, want 500", credit)
	}
	if len(emitter.types) != 2 || emitter.types[0] != EventTypeCreditStored {
		t.Fatalf("events = %v", emitter.types)
	}
}

func TestPayOrCreditIgnoresZeroAmount(t *testing.T) {
	state := newMockState()
	bank := &mockBank{}
	ledger := newTestLedger(state, bank)

	if err := ledger.PayOrCredit([20]byte{}, newTestAddress(0x03), big.NewInt(0)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	if err := ledger.PayOrCredit([20]byte{}, newTestAddress(0x03), nil); err != nil {
		t.Fatalf("PayOrCredit nil: %v", err)
	}
	if bank.transfers != 0 {
		t.Fatalf("transfers = %d, want 0", bank.transfers)
	}
}

func TestWithdrawCreditsPaysFullBalanceOnce(t *testing.T) {
	state := newMockState()
	bank := &mockBank{failTransfers: true}
	ledger := newTestLedger(state, bank)
	emitter := &captureEmitter{}
	ledger.SetEmitter(emitter)
	beneficiary := newTestAddress(0x04)
	var token [20]byte

	if err := ledger.PayOrCredit(token, beneficiary, big.NewInt(750)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}

	bank.failTransfers = false
	paid, err := ledger.WithdrawCredits(token, beneficiary)
	if err != nil {
		t.Fatalf("WithdrawCredits: %v", err)
	}
	if paid.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("paid = %s, want 750", paid)
	}
	if _, err := ledger.WithdrawCredits(token, beneficiary); !errors.Is(err, ErrNoCredits) {
		t.Fatalf("second withdraw err = %v, want ErrNoCredits", err)
	}
	found := false
	for _, evtType := range emitter.types {
		if evtType == EventTypeCreditClaimed {
			found = true
		}
	}
	if !found {
		t.Fatalf("claimed event not emitted: %v", emitter.types)
	}
}

func TestWithdrawCreditsRestoresBalanceOnFailedTransfer(t *testing.T) {
	state := newMockState()
	bank := &mockBank{failTransfers: true}
	ledger := newTestLedger(state, bank)
	beneficiary := newTestAddress(0x05)
	var token [20]byte

	if err := ledger.PayOrCredit(token, beneficiary, big.NewInt(900)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	if _, err := ledger.WithdrawCredits(token, beneficiary); err == nil {
		t.Fatalf("expected withdraw failure while bank rejects")
	}
	credit, err := ledger.Credits(token, beneficiary)
	if err != nil {
		t.Fatalf("Credits: %v", err)
	}
	if credit.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("credit = %s, want 900 after failed withdraw", credit)
	}
}

func TestWithdrawCreditsWithZeroBalance(t *testing.T) {
	ledger := newTestLedger(newMockState(), &mockBank{})
	if _, err := ledger.WithdrawCredits([20]byte{}, newTestAddress(0x06)); !errors.Is(err, ErrNoCredits) {
		t.Fatalf("err = %v, want ErrNoCredits", err)
	}
}

func TestCreditsAreKeyedPerToken(t *testing.T) {
	state := newMockState()
	bank := &mockBank{failTransfers: true}
	ledger := newTestLedger(state, bank)
	beneficiary := newTestAddress(0x07)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)

	if err := ledger.PayOrCredit(tokenA, beneficiary, big.NewInt(100)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	if err := ledger.PayOrCredit(tokenB, beneficiary, big.NewInt(200)); err != nil {
		t.Fatalf("PayOrCredit: %v", err)
	}
	creditA, _ := ledger.Credits(tokenA, beneficiary)
	creditB, _ := ledger.Credits(tokenB, beneficiary)
	if creditA.Cmp(big.NewInt(100)) != 0 || creditB.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("credits = %s/%s, want 100/200", creditA, creditB)
	}
}
