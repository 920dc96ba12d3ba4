package token_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"utilitychain/core/state"
	"utilitychain/native/token"
	"utilitychain/storage"
)

func newTestLedger(t *testing.T) (*token.Ledger, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	return token.NewLedger(manager), manager
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestRegisterTokenRejectsDuplicates(t *testing.T) {
	ledger, _ := newTestLedger(t)
	tok := addr(0xAA)
	if err := ledger.RegisterToken(tok, "rwd", addr(0x01)); err != nil {
		t.Fatalf("register: %v", err)
	}
	meta, err := ledger.Token(tok)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if meta.Symbol != "RWD" {
		t.Fatalf("expected symbol uppercased, got %q", meta.Symbol)
	}
	if err := ledger.RegisterToken(tok, "RWD", addr(0x01)); !errors.Is(err, token.ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if _, err := ledger.BalanceOf(addr(0xBB), addr(0x01)); !errors.Is(err, token.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMintRequiresAuthority(t *testing.T) {
	ledger, _ := newTestLedger(t)
	tok, minter, user := addr(0xAA), addr(0x01), addr(0x02)
	if err := ledger.RegisterToken(tok, "RWD", minter); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ledger.Mint(tok, user, user, uint256.NewInt(5)); !errors.Is(err, token.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.Mint(tok, minter, user, uint256.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	bal, err := ledger.BalanceOf(tok, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Uint64() != 5 {
		t.Fatalf("unexpected balance %s", bal.Dec())
	}
	if err := ledger.SetMintPaused(tok, minter, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := ledger.Mint(tok, minter, user, uint256.NewInt(1)); !errors.Is(err, token.ErrMintPaused) {
		t.Fatalf("expected ErrMintPaused, got %v", err)
	}
}

func TestTransferFromOwnerAndAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	tok, minter, owner, spender, dest := addr(0xAA), addr(0x01), addr(0x02), addr(0x03), addr(0x04)
	if err := ledger.RegisterToken(tok, "RWD", minter); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ledger.Mint(tok, minter, owner, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom(tok, owner, owner, dest, uint256.NewInt(40)); err != nil {
		t.Fatalf("owner transfer: %v", err)
	}
	if err := ledger.TransferFrom(tok, spender, owner, dest, uint256.NewInt(10)); !errors.Is(err, token.ErrInsufficientAllow) {
		t.Fatalf("expected ErrInsufficientAllow, got %v", err)
	}
	if err := ledger.Approve(tok, owner, spender, uint256.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(tok, spender, owner, dest, uint256.NewInt(30)); err != nil {
		t.Fatalf("spender transfer: %v", err)
	}
	allowance, err := ledger.Allowance(tok, owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if !allowance.IsZero() {
		t.Fatalf("expected allowance to be consumed, got %s", allowance.Dec())
	}
	if err := ledger.TransferFrom(tok, owner, owner, dest, uint256.NewInt(31)); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	ownerBal, _ := ledger.BalanceOf(tok, owner)
	destBal, _ := ledger.BalanceOf(tok, dest)
	if ownerBal.Uint64() != 30 || destBal.Uint64() != 70 {
		t.Fatalf("unexpected balances owner=%s dest=%s", ownerBal.Dec(), destBal.Dec())
	}
}

func TestAssetHolder(t *testing.T) {
	ledger, manager := newTestLedger(t)
	asset, alice, bob := addr(0x10), addr(0x01), addr(0x02)

	ok, err := ledger.IsAuthorizedHolder(asset, alice)
	if err != nil || ok {
		t.Fatalf("expected unowned asset, got ok=%v err=%v", ok, err)
	}
	if err := ledger.SetHolder(asset, alice); err != nil {
		t.Fatalf("set holder: %v", err)
	}
	if err := manager.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, _ := ledger.IsAuthorizedHolder(asset, alice); !ok {
		t.Fatalf("expected alice to hold the asset")
	}
	if ok, _ := ledger.IsAuthorizedHolder(asset, bob); ok {
		t.Fatalf("bob should not hold the asset")
	}
}
