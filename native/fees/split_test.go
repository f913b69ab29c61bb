package fees

import (
	"bytes"
	"math/big"
	"testing"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestValidateRejectsMismatchedLengths(t *testing.T) {
	table := Table{Recipients: [][20]byte{testAddr(0x01)}, Shares: []uint32{5000, 5000}}
	if err := table.Validate(10); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestValidateRejectsZeroShare(t *testing.T) {
	table := Table{
		Recipients: [][20]byte{testAddr(0x01), testAddr(0x02)},
		Shares:     []uint32{10000, 0},
	}
	if err := table.Validate(10); err == nil {
		t.Fatalf("expected zero share error")
	}
}

func TestValidateRequiresExactDenominator(t *testing.T) {
	table := Table{
		Recipients: [][20]byte{testAddr(0x01), testAddr(0x02)},
		Shares:     []uint32{5000, 4999},
	}
	if err := table.Validate(10); err == nil {
		t.Fatalf("expected sum error for 9999 bps")
	}
	table.Shares = []uint32{5000, 5001}
	if err := table.Validate(10); err == nil {
		t.Fatalf("expected sum error for 10001 bps")
	}
	table.Shares = []uint32{5000, 5000}
	if err := table.Validate(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateEnforcesRecipientCap(t *testing.T) {
	table := Table{
		Recipients: [][20]byte{testAddr(0x01), testAddr(0x02), testAddr(0x03)},
		Shares:     []uint32{3000, 3000, 4000},
	}
	if err := table.Validate(2); err == nil {
		t.Fatalf("expected recipient cap error")
	}
	if err := table.Validate(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAllowsEmptyTable(t *testing.T) {
	if err := (Table{}).Validate(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSplitDistributesExactly(t *testing.T) {
	table := Table{
		Recipients: [][20]byte{testAddr(0x01), testAddr(0x02), testAddr(0x03)},
		Shares:     []uint32{3333, 3333, 3334},
	}
	cases := []*big.Int{
		big.NewInt(1),
		big.NewInt(3),
		big.NewInt(100),
		big.NewInt(999_999_937),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil),
	}
	for _, gross := range cases {
		shares := table.Split(gross)
		if len(shares) != len(table.Shares) {
			t.Fatalf("gross %s: got %d shares, want %d", gross, len(shares), len(table.Shares))
		}
		total := big.NewInt(0)
		for i, share := range shares {
			if share.Sign() < 0 {
				t.Fatalf("gross %s: negative share at %d", gross, i)
			}
			total.Add(total, share)
		}
		if total.Cmp(gross) != 0 {
			t.Fatalf("gross %s: distributed %s", gross, total)
		}
	}
}

func TestSplitRemainderGoesToLastRecipient(t *testing.T) {
	table := Table{
		Recipients: [][20]byte{testAddr(0x01), testAddr(0x02)},
		Shares:     []uint32{5000, 5000},
	}
	shares := table.Split(big.NewInt(101))
	if shares[0].Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("first share = %s, want 50", shares[0])
	}
	if shares[1].Cmp(big.NewInt(51)) != 0 {
		t.Fatalf("last share = %s, want 51", shares[1])
	}
}

func TestSplitZeroGross(t *testing.T) {
	table := Table{
		Recipients: [][20]byte{testAddr(0x01), testAddr(0x02)},
		Shares:     []uint32{2500, 7500},
	}
	for _, share := range table.Split(big.NewInt(0)) {
		if share.Sign() != 0 {
			t.Fatalf("expected zero share, got %s", share)
		}
	}
}
