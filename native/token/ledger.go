package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"primenumbers/core/events"
	nativecommon "primenumbers/native/common"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidToken        = errors.New("token: token identifier required")
	ErrInvalidAmount       = errors.New("token: amount must not be negative")
	errNilStore            = errors.New("token: store not configured")
)

var (
	balancePrefix = "token/balance"
	supplyPrefix  = "token/supply"
)

// Ledger tracks fungible balances for every token the protocol touches. Module
// accounts (pools, reserves, distributors) hold balances here exactly like
// users do.
type Ledger struct {
	store nativecommon.Store
}

// NewLedger binds the ledger to the shared state store.
func NewLedger(store nativecommon.Store) *Ledger {
	return &Ledger{store: store}
}

// Normalize upper-cases and trims a token identifier.
func Normalize(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func balanceKey(token string, addr common.Address) []byte {
	return nativecommon.Key(balancePrefix, []byte(token), addr.Bytes())
}

func supplyKey(token string) []byte {
	return nativecommon.Key(supplyPrefix, []byte(token))
}

func (l *Ledger) read(key []byte) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	value := new(big.Int)
	ok, err := l.store.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) write(key []byte, value *big.Int) error {
	if value.Sign() == 0 {
		return l.store.KVDelete(key)
	}
	return l.store.KVPut(key, value)
}

// Balance returns the balance of addr in token.
func (l *Ledger) Balance(token string, addr common.Address) (*big.Int, error) {
	token = Normalize(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return l.read(balanceKey(token, addr))
}

// TotalSupply returns the circulating supply of token.
func (l *Ledger) TotalSupply(token string) (*big.Int, error) {
	token = Normalize(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return l.read(supplyKey(token))
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(token string, from, to common.Address, amount *big.Int) error {
	token = Normalize(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if from == to {
		bal, err := l.Balance(token, from)
		if err != nil {
			return err
		}
		if bal.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, token, bal, amount)
		}
		return nil
	}
	fromBal, err := l.read(balanceKey(token, from))
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, token, fromBal, amount)
	}
	toBal, err := l.read(balanceKey(token, to))
	if err != nil {
		return err
	}
	next, err := nativecommon.CheckedAdd(toBal, amount)
	if err != nil {
		return err
	}
	if err := l.write(balanceKey(token, from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := l.write(balanceKey(token, to), next); err != nil {
		return err
	}
	l.emit(token, from, to, amount)
	return nil
}

// Mint creates amount of token in the to account.
func (l *Ledger) Mint(token string, to common.Address, amount *big.Int) error {
	token = Normalize(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	supply, err := l.read(supplyKey(token))
	if err != nil {
		return err
	}
	nextSupply, err := nativecommon.CheckedAdd(supply, amount)
	if err != nil {
		return err
	}
	bal, err := l.read(balanceKey(token, to))
	if err != nil {
		return err
	}
	if err := l.write(supplyKey(token), nextSupply); err != nil {
		return err
	}
	if err := l.write(balanceKey(token, to), new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	l.emit(token, common.Address{}, to, amount)
	return nil
}

// Burn destroys amount of token held by from.
func (l *Ledger) Burn(token string, from common.Address, amount *big.Int) error {
	token = Normalize(token)
	if token == "" {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	bal, err := l.read(balanceKey(token, from))
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, token, bal, amount)
	}
	supply, err := l.read(supplyKey(token))
	if err != nil {
		return err
	}
	nextSupply, err := nativecommon.CheckedSub(supply, amount)
	if err != nil {
		return err
	}
	if err := l.write(balanceKey(token, from), new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if err := l.write(supplyKey(token), nextSupply); err != nil {
		return err
	}
	l.emit(token, from, common.Address{}, amount)
	return nil
}

func (l *Ledger) emit(token string, from, to common.Address, amount *big.Int) {
	l.store.AppendEvent(events.TokenTransfer{
		Token:  token,
		From:   from,
		To:     to,
		Amount: new(big.Int).Set(amount),
	}.Event())
}
