package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudx-io/auctionledger/core"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPaymentRefused      = errors.New("payment refused by recipient")
)

// Bank is an in-memory account book. It escrows funds collected from
// bidders and credits accounts when the ledger pays out.
type Bank struct {
	mu       sync.Mutex
	balances map[core.Identity]core.Amount
	refusing map[core.Identity]bool
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[core.Identity]core.Amount),
		refusing: make(map[core.Identity]bool),
	}
}

// Deposit funds an account.
func (b *Bank) Deposit(id core.Identity, amount core.Amount) (core.Amount, error) {
	if id == "" {
		return 0, fmt.Errorf("deposit: empty account")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[id]
	if balance+amount < balance {
		return balance, fmt.Errorf("deposit: balance overflow for %s", id)
	}
	b.balances[id] = balance + amount
	return b.balances[id], nil
}

// SetRefusePayments makes Pay to id fail until cleared.
func (b *Bank) SetRefusePayments(id core.Identity, refuse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if refuse {
		b.refusing[id] = true
	} else {
		delete(b.refusing, id)
	}
}

func (b *Bank) Balance(id core.Identity) core.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

// Collect debits the bidder's account. Funds move into the ledger's custody.
func (b *Bank) Collect(_ context.Context, from core.Identity, amount core.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balances[from]
	if balance < amount {
		return fmt.Errorf("collect %d from %s: %w (balance %d)", amount, from, ErrInsufficientBalance, balance)
	}
	b.balances[from] = balance - amount
	return nil
}

// Pay credits the recipient's account.
func (b *Bank) Pay(_ context.Context, to core.Identity, amount core.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refusing[to] {
		return fmt.Errorf("pay %d to %s: %w", amount, to, ErrPaymentRefused)
	}
	balance := b.balances[to]
	if balance+amount < balance {
		return fmt.Errorf("pay %d to %s: balance overflow", amount, to)
	}
	b.balances[to] = balance + amount
	return nil
}
