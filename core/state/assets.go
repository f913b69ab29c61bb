package state

import (
	"fmt"
	"math/big"
)

var (
	assetNFTPrefix      = []byte("assets/nft/")
	assetSFTPrefix      = []byte("assets/sft/")
	assetOperatorPrefix = []byte("assets/operator/")
	assetHeldPrefix     = []byte("assets/held/")
)

// AssetRecord is the stored ownership record for a single-unit asset.
type AssetRecord struct {
	Owner    [20]byte
	Approved [20]byte
}

func assetNFTKey(collection [20]byte, tokenID *big.Int) []byte {
	return assetKey(assetNFTPrefix, collection, tokenID, nil)
}

func assetSFTKey(collection [20]byte, tokenID *big.Int, owner [20]byte) []byte {
	return assetKey(assetSFTPrefix, collection, tokenID, owner[:])
}

func assetKey(prefix []byte, collection [20]byte, tokenID *big.Int, suffix []byte) []byte {
	id := []byte{}
	if tokenID != nil {
		id = tokenID.Bytes()
	}
	buf := make([]byte, 0, len(prefix)+len(collection)+len(id)+len(suffix)+2)
	buf = append(buf, prefix...)
	buf = append(buf, collection[:]...)
	buf = append(buf, ':')
	buf = append(buf, id...)
	if suffix != nil {
		buf = append(buf, ':')
		buf = append(buf, suffix...)
	}
	return buf
}

func operatorKey(collection, owner, operator [20]byte) []byte {
	buf := make([]byte, 0, len(assetOperatorPrefix)+3*20+2)
	buf = append(buf, assetOperatorPrefix...)
	buf = append(buf, collection[:]...)
	buf = append(buf, ':')
	buf = append(buf, owner[:]...)
	buf = append(buf, ':')
	buf = append(buf, operator[:]...)
	return buf
}

func heldKey(collection, owner [20]byte) []byte {
	buf := make([]byte, 0, len(assetHeldPrefix)+2*20+1)
	buf = append(buf, assetHeldPrefix...)
	buf = append(buf, collection[:]...)
	buf = append(buf, ':')
	buf = append(buf, owner[:]...)
	return buf
}

// AssetGet returns the ownership record for a single-unit asset.
func (m *Manager) AssetGet(collection [20]byte, tokenID *big.Int) (*AssetRecord, bool, error) {
	var record AssetRecord
	ok, err := m.KVGet(assetNFTKey(collection, tokenID), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

// AssetPut stores the ownership record for a single-unit asset.
func (m *Manager) AssetPut(collection [20]byte, tokenID *big.Int, record *AssetRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil asset record")
	}
	return m.KVPut(assetNFTKey(collection, tokenID), record)
}

// AssetBalanceGet returns the quantity of a semi-fungible asset held by
// owner. Absent entries read as zero.
func (m *Manager) AssetBalanceGet(collection [20]byte, tokenID *big.Int, owner [20]byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(assetSFTKey(collection, tokenID, owner), value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// AssetBalancePut stores the quantity of a semi-fungible asset held by owner.
func (m *Manager) AssetBalancePut(collection [20]byte, tokenID *big.Int, owner [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: asset balance must be non-negative")
	}
	return m.KVPut(assetSFTKey(collection, tokenID, owner), amount)
}

// OperatorGet reports whether operator holds a blanket transfer approval for
// the owner's assets within the collection.
func (m *Manager) OperatorGet(collection, owner, operator [20]byte) (bool, error) {
	var approved bool
	ok, err := m.KVGet(operatorKey(collection, owner, operator), &approved)
	if err != nil || !ok {
		return false, err
	}
	return approved, nil
}

// OperatorPut stores a blanket transfer approval.
func (m *Manager) OperatorPut(collection, owner, operator [20]byte, approved bool) error {
	return m.KVPut(operatorKey(collection, owner, operator), approved)
}

// HoldingsGet returns the number of distinct asset positions owner holds in
// the collection. The allow-list evaluator consults this counter.
func (m *Manager) HoldingsGet(collection, owner [20]byte) (uint64, error) {
	var count uint64
	ok, err := m.KVGet(heldKey(collection, owner), &count)
	if err != nil || !ok {
		return 0, err
	}
	return count, nil
}

// HoldingsAdjust moves the holdings counter by delta, flooring at zero.
func (m *Manager) HoldingsAdjust(collection, owner [20]byte, delta int64) error {
	count, err := m.HoldingsGet(collection, owner)
	if err != nil {
		return err
	}
	if delta < 0 {
		dec := uint64(-delta)
		if dec > count {
			count = 0
		} else {
			count -= dec
		}
	} else {
		count += uint64(delta)
	}
	return m.KVPut(heldKey(collection, owner), count)
}
