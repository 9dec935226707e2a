// Package bank is an in-process token ledger implementing the settlement
// executor. It backs local nodes and tests; production deployments plug in
// an executor that submits real transfers.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotTokenOwner       = errors.New("not the token owner")
	ErrBadTransferAmount   = errors.New("bad transfer amount")
)

// asset identifies one fungible balance bucket. ERC721 ownership is tracked
// separately since each identifier has exactly one owner.
type asset struct {
	itemType   order.ItemType
	token      common.Address
	identifier string
}

type Bank struct {
	mu       sync.Mutex
	balances map[asset]map[common.Address]*big.Int
	owners   map[asset]common.Address
}

func New() *Bank {
	return &Bank{
		balances: make(map[asset]map[common.Address]*big.Int),
		owners:   make(map[asset]common.Address),
	}
}

func fungibleAsset(itemType order.ItemType, token common.Address, identifier *big.Int) asset {
	a := asset{itemType: itemType, token: token}
	if itemType == order.ERC1155 {
		a.identifier = identifier.String()
	}
	return a
}

func nftAsset(token common.Address, identifier *big.Int) asset {
	return asset{itemType: order.ERC721, token: token, identifier: identifier.String()}
}

// Mint credits an account, creating the balance or ownership record.
func (b *Bank) Mint(account common.Address, itemType order.ItemType, token common.Address, identifier, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch itemType {
	case order.ERC721:
		if amount.Cmp(big.NewInt(1)) != 0 {
			return ErrBadTransferAmount
		}
		b.owners[nftAsset(token, identifier)] = account
		return nil
	case order.Native, order.ERC20, order.ERC1155:
		b.credit(fungibleAsset(itemType, token, identifier), account, amount)
		return nil
	default:
		return fmt.Errorf("cannot mint item type %s", itemType)
	}
}

// Transfer moves item.Amount of the item from from to item.Recipient.
func (b *Bank) Transfer(_ context.Context, item order.ReceivedItem, from common.Address, _ common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if item.Amount.Sign() == 0 {
		return nil
	}

	switch item.ItemType {
	case order.ERC721:
		if item.Amount.Cmp(big.NewInt(1)) != 0 {
			return ErrBadTransferAmount
		}
		key := nftAsset(item.Token, item.Identifier)
		if b.owners[key] != from {
			return fmt.Errorf("token %s id %s: %w", item.Token, item.Identifier, ErrNotTokenOwner)
		}
		b.owners[key] = item.Recipient
		return nil

	case order.Native, order.ERC20, order.ERC1155:
		key := fungibleAsset(item.ItemType, item.Token, item.Identifier)
		balance := b.balanceLocked(key, from)
		if balance.Cmp(item.Amount) < 0 {
			return fmt.Errorf("%s balance %s below %s: %w",
				item.ItemType, balance, item.Amount, ErrInsufficientBalance)
		}
		balance.Sub(balance, item.Amount)
		b.credit(key, item.Recipient, item.Amount)
		return nil

	default:
		return fmt.Errorf("cannot transfer item type %s", item.ItemType)
	}
}

// BalanceOf returns the fungible balance of an account.
func (b *Bank) BalanceOf(account common.Address, itemType order.ItemType, token common.Address, identifier *big.Int) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balanceLocked(fungibleAsset(itemType, token, identifier), account))
}

// OwnerOf returns the owner of an ERC721 token, or the zero address.
func (b *Bank) OwnerOf(token common.Address, identifier *big.Int) common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owners[nftAsset(token, identifier)]
}

func (b *Bank) balanceLocked(key asset, account common.Address) *big.Int {
	accounts, ok := b.balances[key]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		b.balances[key] = accounts
	}
	balance, ok := accounts[account]
	if !ok {
		balance = new(big.Int)
		accounts[account] = balance
	}
	return balance
}

func (b *Bank) credit(key asset, account common.Address, amount *big.Int) {
	b.balanceLocked(key, account).Add(b.balanceLocked(key, account), amount)
}
