package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/fees"
)

// ModuleName identifies the settlement engine for pause guards.
const ModuleName = "market"

// DefaultWithdrawPeriod is the grace period after an auction's end during
// which only the original seller may reclaim an unsettled listing.
const DefaultWithdrawPeriod int64 = 7 * 24 * 60 * 60

// DefaultMaxFeeRecipients caps the fee table length validated at listing
// creation.
const DefaultMaxFeeRecipients = 10

var (
	errNilState     = errors.New("market engine: state not configured")
	errNilCustodian = errors.New("market engine: custodian not configured")
	errNilBank      = errors.New("market engine: bank not configured")
	errNilLedger    = errors.New("market engine: escrow ledger not configured")
)

// State is the listing-registry backend consumed by the engine. A listing
// exists for a key if and only if the asset is in custody and unsettled.
type State interface {
	ListingPut(*Listing) error
	ListingGet(collection [20]byte, tokenID *big.Int) (*Listing, bool, error)
	ListingHas(collection [20]byte, tokenID *big.Int) (bool, error)
	ListingDelete(collection [20]byte, tokenID *big.Int) error
}

// Custodian wraps the external asset contracts' ownership-transfer and
// balance/ownership-query calls. TransferFrom must fail loudly when the
// operator lacks approval.
type Custodian interface {
	TransferFrom(operator [20]byte, collection [20]byte, from, to [20]byte, tokenID, amount *big.Int) error
	OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error)
	BalanceOf(owner, collection [20]byte) (*big.Int, error)
}

// Bank is the strict value-transfer capability used to capture bids and
// purchase payments. Push payouts go through the escrow ledger instead.
type Bank interface {
	Transfer(from, to [20]byte, token [20]byte, amount *big.Int) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// BatchResult reports the outcome of one item within a batch lifecycle call.
// Items succeed or fail independently; Err is nil on success.
type BatchResult struct {
	TokenID *big.Int
	Err     error
}

// Engine is the auction and fixed-price-sale settlement engine. Every
// mutating operation executes under a single writer lock, with custody and
// payout sub-calls part of the same atomic unit.
type Engine struct {
	mu sync.Mutex

	state     State
	custodian Custodian
	bank      Bank
	ledger    *escrow.Ledger
	emitter   events.Emitter
	pauses    common.PauseView
	allowlist *Evaluator

	vault            [20]byte
	withdrawPeriod   int64
	maxFeeRecipients int
	nowFn            func() int64
}

// NewEngine creates a settlement engine with a no-op emitter, the default
// withdraw period and an empty allow-list. Callers wire the collaborators via
// the setters before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:          events.NoopEmitter{},
		allowlist:        NewEvaluator(nil),
		vault:            Vault(),
		withdrawPeriod:   DefaultWithdrawPeriod,
		maxFeeRecipients: DefaultMaxFeeRecipients,
		nowFn:            func() int64 { return time.Now().Unix() },
	}
}

// Vault returns the address under which the engine custodies assets and
// captured value.
func Vault() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("nftmarket/module/vault"))
	copy(addr[:], digest[12:])
	return addr
}

// SetState configures the listing-registry backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetCustodian configures the asset custodian adapter.
func (e *Engine) SetCustodian(custodian Custodian) { e.custodian = custodian }

// SetBank configures the value-transfer capability used for captures.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetLedger configures the escrow credit ledger used for refunds and fee
// payouts.
func (e *Engine) SetLedger(ledger *escrow.Ledger) { e.ledger = ledger }

// SetPauses configures the module pause view consulted by every mutating
// entry point.
func (e *Engine) SetPauses(pauses common.PauseView) { e.pauses = pauses }

// SetAllowList configures the collections whose holders qualify for
// whitelisted listings.
func (e *Engine) SetAllowList(collections [][20]byte) {
	e.allowlist = NewEvaluator(collections)
}

// SetWithdrawPeriod overrides the post-end grace period, in seconds.
func (e *Engine) SetWithdrawPeriod(seconds int64) {
	if seconds <= 0 {
		e.withdrawPeriod = DefaultWithdrawPeriod
		return
	}
	e.withdrawPeriod = seconds
}

// WithdrawPeriod returns the configured post-end grace period in seconds.
func (e *Engine) WithdrawPeriod() int64 { return e.withdrawPeriod }

// SetMaxFeeRecipients overrides the fee table length cap.
func (e *Engine) SetMaxFeeRecipients(n int) {
	if n <= 0 {
		e.maxFeeRecipients = DefaultMaxFeeRecipients
		return
	}
	e.maxFeeRecipients = n
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custodian == nil {
		return errNilCustodian
	}
	if e.bank == nil {
		return errNilBank
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return common.Guard(e.pauses, ModuleName)
}

// GetListing returns a copy of the listing stored for the supplied key.
func (e *Engine) GetListing(collection [20]byte, tokenID *big.Int) (*Listing, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, false, errNilState
	}
	listing, ok, err := e.state.ListingGet(collection, tokenID)
	if err != nil || !ok {
		return nil, false, err
	}
	return listing.Clone(), true, nil
}

// Credits returns the beneficiary's escrow credit balance for the supplied
// value token.
func (e *Engine) Credits(token, beneficiary [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, errNilLedger
	}
	return e.ledger.Credits(token, beneficiary)
}

// WithdrawCredits pays out the beneficiary's accumulated escrow credit. The
// pull may be triggered by anyone on behalf of the beneficiary.
func (e *Engine) WithdrawCredits(token, beneficiary [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, errNilLedger
	}
	return e.ledger.WithdrawCredits(token, beneficiary)
}

func (e *Engine) isQualified(l *Listing, caller [20]byte) (bool, error) {
	if !l.Whitelisted {
		return true, nil
	}
	return e.allowlist.IsQualified(caller, e.custodian.BalanceOf)
}

// splitAndPay distributes the gross amount across the listing's fee table
// via the escrow ledger's push-or-credit primitive. An empty table routes
// everything to the seller. The distributed total always equals gross.
func (e *Engine) splitAndPay(l *Listing, gross *big.Int) error {
	if gross == nil || gross.Sign() == 0 {
		return nil
	}
	table := fees.Table{Recipients: l.FeeRecipients, Shares: l.FeeShares}
	if table.Empty() {
		return e.ledger.PayOrCredit(l.ValueToken, l.Seller, gross)
	}
	shares := table.Split(gross)
	for i, amount := range shares {
		if err := e.ledger.PayOrCredit(l.ValueToken, table.Recipients[i], amount); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) custodyFromSeller(seller [20]byte, collection [20]byte, tokenID, amount *big.Int) error {
	return e.custodian.TransferFrom(e.vault, collection, seller, e.vault, tokenID, amount)
}

func (e *Engine) releaseFromCustody(to [20]byte, collection [20]byte, tokenID, amount *big.Int) error {
	return e.custodian.TransferFrom(e.vault, collection, e.vault, to, tokenID, amount)
}

func validateFeeTable(recipients [][20]byte, shares []uint32, maxRecipients int) error {
	table := fees.Table{Recipients: recipients, Shares: shares}
	if err := table.Validate(maxRecipients); err != nil {
		return fmt.Errorf("market: %w", err)
	}
	return nil
}
