package custody

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/state"
)

// Transfer failure reasons, matching the wording of the asset contracts the
// adapter fronts.
var (
	ErrNotOwnerNorApproved = errors.New("ERC721: transfer caller is not owner nor approved")
	ErrInsufficientBalance = errors.New("ERC1155: insufficient balance for transfer")
	ErrUnknownAsset        = errors.New("custody: unknown asset")
)

// Registry is a state-backed asset book standing in for the external asset
// contracts. It implements the ownership-transfer and balance/ownership-query
// surface the settlement engine consumes, and fails loudly when the caller
// lacks approval.
type Registry struct {
	manager *state.Manager
}

// NewRegistry binds an asset registry to the supplied state manager.
func NewRegistry(manager *state.Manager) *Registry {
	return &Registry{manager: manager}
}

func (r *Registry) ensure() error {
	if r == nil || r.manager == nil {
		return fmt.Errorf("custody: state manager required")
	}
	return nil
}

// MintNFT records a new single-unit asset owned by the supplied address.
func (r *Registry) MintNFT(collection [20]byte, tokenID *big.Int, owner [20]byte) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if _, ok, err := r.manager.AssetGet(collection, tokenID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("custody: token already minted")
	}
	if err := r.manager.AssetPut(collection, tokenID, &state.AssetRecord{Owner: owner}); err != nil {
		return err
	}
	return r.manager.HoldingsAdjust(collection, owner, 1)
}

// MintSFT adds quantity of a semi-fungible asset to the supplied owner.
func (r *Registry) MintSFT(collection [20]byte, tokenID *big.Int, owner [20]byte, amount *big.Int) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("custody: mint amount must be positive")
	}
	balance, err := r.manager.AssetBalanceGet(collection, tokenID, owner)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(balance, amount)
	if err := r.manager.AssetBalancePut(collection, tokenID, owner, updated); err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return r.manager.HoldingsAdjust(collection, owner, 1)
	}
	return nil
}

// Approve grants transfer rights over one single-unit asset. Only the current
// owner may approve.
func (r *Registry) Approve(collection [20]byte, caller [20]byte, tokenID *big.Int, approved [20]byte) error {
	if err := r.ensure(); err != nil {
		return err
	}
	record, ok, err := r.manager.AssetGet(collection, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownAsset
	}
	if record.Owner != caller {
		return ErrNotOwnerNorApproved
	}
	record.Approved = approved
	return r.manager.AssetPut(collection, tokenID, record)
}

// SetApprovalForAll grants or revokes blanket transfer rights over all of the
// owner's assets in a collection.
func (r *Registry) SetApprovalForAll(collection [20]byte, owner, operator [20]byte, approved bool) error {
	if err := r.ensure(); err != nil {
		return err
	}
	return r.manager.OperatorPut(collection, owner, operator, approved)
}

// OwnerOf returns the current owner of a single-unit asset.
func (r *Registry) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	var zero [20]byte
	if err := r.ensure(); err != nil {
		return zero, err
	}
	record, ok, err := r.manager.AssetGet(collection, tokenID)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrUnknownAsset
	}
	return record.Owner, nil
}

// BalanceOf returns the number of distinct asset positions owner holds in
// the collection. The allow-list evaluator uses this to decide whether a
// caller holds a qualifying token.
func (r *Registry) BalanceOf(owner, collection [20]byte) (*big.Int, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	count, err := r.manager.HoldingsGet(collection, owner)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(count), nil
}

// Balance returns the quantity of a semi-fungible asset held by owner.
func (r *Registry) Balance(owner, collection [20]byte, tokenID *big.Int) (*big.Int, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	return r.manager.AssetBalanceGet(collection, tokenID, owner)
}

// TransferFrom moves an asset between addresses on behalf of operator. A nil
// or one amount selects the single-unit path, which requires the operator to
// be the owner, the per-token approvee, or a blanket-approved operator.
// Larger amounts select the quantity path, which additionally checks the
// source balance.
func (r *Registry) TransferFrom(operator [20]byte, collection [20]byte, from, to [20]byte, tokenID *big.Int, amount *big.Int) error {
	if err := r.ensure(); err != nil {
		return err
	}
	record, ok, err := r.manager.AssetGet(collection, tokenID)
	if err != nil {
		return err
	}
	if ok {
		return r.transferNFT(operator, collection, from, to, tokenID, record)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrUnknownAsset
	}
	return r.transferSFT(operator, collection, from, to, tokenID, amount)
}

func (r *Registry) transferNFT(operator [20]byte, collection [20]byte, from, to [20]byte, tokenID *big.Int, record *state.AssetRecord) error {
	if record.Owner != from {
		return ErrNotOwnerNorApproved
	}
	if operator != from && operator != record.Approved {
		blanket, err := r.manager.OperatorGet(collection, from, operator)
		if err != nil {
			return err
		}
		if !blanket {
			return ErrNotOwnerNorApproved
		}
	}
	// Per-token approval resets on transfer.
	record.Owner = to
	record.Approved = [20]byte{}
	if err := r.manager.AssetPut(collection, tokenID, record); err != nil {
		return err
	}
	if err := r.manager.HoldingsAdjust(collection, from, -1); err != nil {
		return err
	}
	return r.manager.HoldingsAdjust(collection, to, 1)
}

func (r *Registry) transferSFT(operator [20]byte, collection [20]byte, from, to [20]byte, tokenID *big.Int, amount *big.Int) error {
	if operator != from {
		blanket, err := r.manager.OperatorGet(collection, from, operator)
		if err != nil {
			return err
		}
		if !blanket {
			return ErrNotOwnerNorApproved
		}
	}
	fromBalance, err := r.manager.AssetBalanceGet(collection, tokenID, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := r.manager.AssetBalanceGet(collection, tokenID, to)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(fromBalance, amount)
	if err := r.manager.AssetBalancePut(collection, tokenID, from, remaining); err != nil {
		return err
	}
	if err := r.manager.AssetBalancePut(collection, tokenID, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	if remaining.Sign() == 0 {
		if err := r.manager.HoldingsAdjust(collection, from, -1); err != nil {
			return err
		}
	}
	if toBalance.Sign() == 0 {
		return r.manager.HoldingsAdjust(collection, to, 1)
	}
	return nil
}
