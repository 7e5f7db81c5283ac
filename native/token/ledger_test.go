package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/state"
	"primenumbers/storage"
)

func newTestLedger(t *testing.T) (*Ledger, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	return NewLedger(manager), manager
}

func TestMintTransferBurn(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	if err := ledger.Mint("prnt", alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("PRNT", alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Burn("PRNT", bob, big.NewInt(100)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	aliceBal, _ := ledger.Balance("PRNT", alice)
	bobBal, _ := ledger.Balance("PRNT", bob)
	supply, _ := ledger.TotalSupply("PRNT")
	if aliceBal.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected alice balance %s", aliceBal)
	}
	if bobBal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("unexpected bob balance %s", bobBal)
	}
	if supply.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("unexpected supply %s", supply)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")
	if err := ledger.Mint("WETH", alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := ledger.Transfer("WETH", alice, bob, big.NewInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	bal, _ := ledger.Balance("WETH", alice)
	if bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance changed on failed transfer: %s", bal)
	}
}

func TestTransferRevertedWithTransaction(t *testing.T) {
	ledger, manager := newTestLedger(t)
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")
	if err := ledger.Mint("USDC", alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := manager.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ledger.Transfer("USDC", alice, bob, big.NewInt(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	manager.Rollback()
	bal, _ := ledger.Balance("USDC", bob)
	if bal.Sign() != 0 {
		t.Fatalf("expected rollback to discard transfer, bob has %s", bal)
	}
}

func TestEmptyTokenRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Balance(" ", common.Address{}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
