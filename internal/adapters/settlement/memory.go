// Package settlement provides an in-memory SettlementMedium: a ledger of
// per-account balances and a venue treasury, with transfer-failure
// injection for tests. Production deployments bind the same interface to a
// native-currency or token transfer capability.
package settlement

import (
	"context"
	"fmt"
	"sync"

	"geoVenue/internal/domain"
)

// Memory is an in-memory settlement medium. Pay moves value from the
// treasury to an account, Collect the other way; both fail when the source
// lacks funds, observable synchronously like the real medium.
type Memory struct {
	mu       sync.Mutex
	treasury uint64
	accounts map[domain.Account]uint64

	// failPay/failCollect inject transfer failures per account, for tests.
	failPay     map[domain.Account]bool
	failCollect map[domain.Account]bool
}

// NewMemory creates an empty in-memory settlement medium.
func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[domain.Account]uint64),
		failPay:     make(map[domain.Account]bool),
		failCollect: make(map[domain.Account]bool),
	}
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (m *Memory) Mint(account domain.Account, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account] += amount
}

// Pay transfers amount from the venue treasury to the account.
func (m *Memory) Pay(ctx context.Context, to domain.Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPay[to] {
		return fmt.Errorf("injected pay failure for %s", to)
	}
	if m.treasury < amount {
		return fmt.Errorf("treasury balance %d cannot cover payment of %d", m.treasury, amount)
	}
	m.treasury -= amount
	m.accounts[to] += amount
	return nil
}

// Collect transfers amount from the account to the venue treasury.
func (m *Memory) Collect(ctx context.Context, from domain.Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCollect[from] {
		return fmt.Errorf("injected collect failure for %s", from)
	}
	if m.accounts[from] < amount {
		return fmt.Errorf("account %s balance %d cannot cover collection of %d", from, m.accounts[from], amount)
	}
	m.accounts[from] -= amount
	m.treasury += amount
	return nil
}

// BalanceOf returns the account's balance.
func (m *Memory) BalanceOf(account domain.Account) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[account]
}

// Treasury returns the venue treasury balance.
func (m *Memory) Treasury() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.treasury
}

// FailPaymentsTo makes subsequent Pay calls to the account fail.
func (m *Memory) FailPaymentsTo(account domain.Account, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPay[account] = fail
}

// FailCollectionsFrom makes subsequent Collect calls from the account fail.
func (m *Memory) FailCollectionsFrom(account domain.Account, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCollect[account] = fail
}
