package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrTokenExists         = errors.New("token: already registered")
	ErrTokenNotFound       = errors.New("token: not registered")
	ErrUnauthorized        = errors.New("token: unauthorized")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInsufficientAllow   = errors.New("token: insufficient allowance")
	ErrMintPaused          = errors.New("token: mint paused")
	ErrOverflow            = errors.New("token: balance overflow")
	errNilState            = errors.New("token: state not configured")
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Metadata describes a fungible token known to the ledger.
type Metadata struct {
	Address       common.Address
	Symbol        string
	MintAuthority common.Address
	MintPaused    bool
}

// Ledger tracks fungible token balances, allowances and the ownership of
// non-fungible assets. It is the asset service the utility module issues
// rewards through.
type Ledger struct {
	st ledgerState
}

// NewLedger creates a ledger backed by the provided state manager.
func NewLedger(st ledgerState) *Ledger {
	return &Ledger{st: st}
}

func metaKey(token common.Address) []byte {
	return []byte(fmt.Sprintf("token/meta/%x", token))
}

func balanceKey(token, holder common.Address) []byte {
	return []byte(fmt.Sprintf("token/balance/%x/%x", token, holder))
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("token/allowance/%x/%x/%x", token, owner, spender))
}

func holderKey(asset common.Address) []byte {
	return []byte(fmt.Sprintf("token/holder/%x", asset))
}

func (l *Ledger) ready() error {
	if l == nil || l.st == nil {
		return errNilState
	}
	return nil
}

// RegisterToken records a new fungible token and its mint authority.
func (l *Ledger) RegisterToken(token common.Address, symbol string, mintAuthority common.Address) error {
	if err := l.ready(); err != nil {
		return err
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return fmt.Errorf("token: symbol must not be empty")
	}
	exists, err := l.st.KVGet(metaKey(token), new(Metadata))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTokenExists, token.Hex())
	}
	return l.st.KVPut(metaKey(token), &Metadata{
		Address:       token,
		Symbol:        normalized,
		MintAuthority: mintAuthority,
	})
}

// Token returns the metadata for a registered token.
func (l *Ledger) Token(token common.Address) (*Metadata, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	meta := new(Metadata)
	ok, err := l.st.KVGet(metaKey(token), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, token.Hex())
	}
	return meta, nil
}

// SetMintPaused toggles minting for the token. Only the mint authority may
// change the flag.
func (l *Ledger) SetMintPaused(token, caller common.Address, paused bool) error {
	meta, err := l.Token(token)
	if err != nil {
		return err
	}
	if caller != meta.MintAuthority {
		return ErrUnauthorized
	}
	meta.MintPaused = paused
	return l.st.KVPut(metaKey(token), meta)
}

func (l *Ledger) amountAt(key []byte) (*uint256.Int, error) {
	amount := new(uint256.Int)
	ok, err := l.st.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return amount, nil
}

// BalanceOf returns the holder's balance of token. Unknown holders have a zero
// balance.
func (l *Ledger) BalanceOf(token, holder common.Address) (*uint256.Int, error) {
	if _, err := l.Token(token); err != nil {
		return nil, err
	}
	return l.amountAt(balanceKey(token, holder))
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(token, owner, spender common.Address) (*uint256.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.amountAt(allowanceKey(token, owner, spender))
}

// Approve sets the allowance spender may draw from owner's balance.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *uint256.Int) error {
	if _, err := l.Token(token); err != nil {
		return err
	}
	return l.st.KVPut(allowanceKey(token, owner, spender), cloneAmount(amount))
}

// TransferFrom moves amount of token from one holder to another. The spender
// must either be the owner of the funds or hold a sufficient allowance.
func (l *Ledger) TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error {
	if _, err := l.Token(token); err != nil {
		return err
	}
	amt := cloneAmount(amount)
	if amt.IsZero() {
		return nil
	}
	if spender != from {
		allowance, err := l.amountAt(allowanceKey(token, from, spender))
		if err != nil {
			return err
		}
		if allowance.Lt(amt) {
			return ErrInsufficientAllow
		}
		remaining := new(uint256.Int).Sub(allowance, amt)
		if err := l.st.KVPut(allowanceKey(token, from, spender), remaining); err != nil {
			return err
		}
	}
	fromBal, err := l.amountAt(balanceKey(token, from))
	if err != nil {
		return err
	}
	if fromBal.Lt(amt) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal.Dec(), amt.Dec())
	}
	if from == to {
		return nil
	}
	toBal, err := l.amountAt(balanceKey(token, to))
	if err != nil {
		return err
	}
	newTo, overflow := new(uint256.Int).AddOverflow(toBal, amt)
	if overflow {
		return ErrOverflow
	}
	if err := l.st.KVPut(balanceKey(token, from), new(uint256.Int).Sub(fromBal, amt)); err != nil {
		return err
	}
	return l.st.KVPut(balanceKey(token, to), newTo)
}

// Mint creates amount of token for the recipient. Only the configured mint
// authority may mint.
func (l *Ledger) Mint(token, minter, to common.Address, amount *uint256.Int) error {
	meta, err := l.Token(token)
	if err != nil {
		return err
	}
	if minter != meta.MintAuthority {
		return ErrUnauthorized
	}
	if meta.MintPaused {
		return ErrMintPaused
	}
	amt := cloneAmount(amount)
	if amt.IsZero() {
		return nil
	}
	bal, err := l.amountAt(balanceKey(token, to))
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amt)
	if overflow {
		return ErrOverflow
	}
	return l.st.KVPut(balanceKey(token, to), next)
}

// SetHolder records the current owner of a non-fungible asset.
func (l *Ledger) SetHolder(asset, holder common.Address) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.st.KVPut(holderKey(asset), holder)
}

// HolderOf returns the recorded owner of the asset.
func (l *Ledger) HolderOf(asset common.Address) (common.Address, bool, error) {
	if err := l.ready(); err != nil {
		return common.Address{}, false, err
	}
	var holder common.Address
	ok, err := l.st.KVGet(holderKey(asset), &holder)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return holder, true, nil
}

// IsAuthorizedHolder reports whether identity currently owns the asset.
func (l *Ledger) IsAuthorizedHolder(asset, identity common.Address) (bool, error) {
	holder, ok, err := l.HolderOf(asset)
	if err != nil || !ok {
		return false, err
	}
	return holder == identity, nil
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
