// Package storetest provides an in-memory store.Repository for service and handler tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/google/uuid"
)

type contributionRow struct {
	contribution  domain.Contribution
	balancesAfter domain.Balances
}

type transactionRow struct {
	txn    domain.Transaction
	method domain.PaymentMethod
}

type interestKey struct {
	subscriberID uuid.UUID
	year         int
}

type state struct {
	subscribers   map[uuid.UUID]domain.Subscriber
	contributions []contributionRow
	transactions  map[uuid.UUID]transactionRow
	references    map[string]time.Time
	interest      map[interestKey]ledger.Money
	charges       map[string]domain.GatewayCharge
	adminWallet   ledger.Money
}

func (s *state) clone() state {
	c := state{
		subscribers:   make(map[uuid.UUID]domain.Subscriber, len(s.subscribers)),
		contributions: append([]contributionRow(nil), s.contributions...),
		transactions:  make(map[uuid.UUID]transactionRow, len(s.transactions)),
		references:    make(map[string]time.Time, len(s.references)),
		interest:      make(map[interestKey]ledger.Money, len(s.interest)),
		charges:       make(map[string]domain.GatewayCharge, len(s.charges)),
		adminWallet:   s.adminWallet,
	}
	for k, v := range s.subscribers {
		c.subscribers[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.references {
		c.references[k] = v
	}
	for k, v := range s.interest {
		c.interest[k] = v
	}
	for k, v := range s.charges {
		c.charges[k] = v
	}
	return c
}

// Memory is a mutex-guarded Repository. WithinTx runs callbacks one at a time and
// restores the previous state when the callback fails.
type Memory struct {
	mu    sync.Mutex
	state state

	// TxErrors are returned, in order, by the next WithinTx calls before fn runs.
	TxErrors []error
	// TxCalls counts WithinTx invocations.
	TxCalls int
}

var _ store.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{state: state{
		subscribers:  make(map[uuid.UUID]domain.Subscriber),
		transactions: make(map[uuid.UUID]transactionRow),
		references:   make(map[string]time.Time),
		interest:     make(map[interestKey]ledger.Money),
		charges:      make(map[string]domain.GatewayCharge),
	}}
}

// AddSubscriber stores s, filling in an id and AUTO mode when absent.
func (m *Memory) AddSubscriber(s domain.Subscriber) domain.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.OverrideMode == "" {
		s.OverrideMode = domain.OverrideAuto
	}
	if s.AuthSubject == "" {
		s.AuthSubject = "user_" + s.ID.String()
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.state.subscribers[s.ID] = s
	return s
}

func (m *Memory) Subscriber(id uuid.UUID) domain.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.subscribers[id]
}

func (m *Memory) AdminWallet() ledger.Money {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.adminWallet
}

func (m *Memory) SetAdminWallet(balance ledger.Money) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.adminWallet = balance
}

func (m *Memory) Contributions() []domain.Contribution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Contribution, 0, len(m.state.contributions))
	for _, row := range m.state.contributions {
		out = append(out, row.contribution)
	}
	return out
}

func (m *Memory) Transactions() []domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, 0, len(m.state.transactions))
	for _, row := range m.state.transactions {
		out = append(out, row.txn)
	}
	return out
}

func (m *Memory) ProcessedReferenceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.references)
}

func (m *Memory) FindSubscriberIDByAuthSubject(_ context.Context, authSubject string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.state.subscribers {
		if s.AuthSubject == authSubject && s.DeletedAt == nil {
			return s.ID, nil
		}
	}
	return uuid.Nil, store.ErrSubscriberNotFound
}

func (m *Memory) FindSubscriberByID(_ context.Context, subscriberID uuid.UUID) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.activeSubscriber(subscriberID)
}

func (s *state) activeSubscriber(id uuid.UUID) (*domain.Subscriber, error) {
	sub, ok := s.subscribers[id]
	if !ok || sub.DeletedAt != nil {
		return nil, store.ErrSubscriberNotFound
	}
	return &sub, nil
}

func (m *Memory) UpdateOverrideMode(_ context.Context, subscriberID uuid.UUID, mode domain.OverrideMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, err := m.state.activeSubscriber(subscriberID)
	if err != nil {
		return err
	}
	sub.OverrideMode = mode
	sub.UpdatedAt = time.Now()
	m.state.subscribers[subscriberID] = *sub
	return nil
}

func (m *Memory) ListContributions(_ context.Context, subscriberID uuid.UUID, opts domain.ContributionListOptions) ([]domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.Contribution
	for i := len(m.state.contributions) - 1; i >= 0; i-- {
		c := m.state.contributions[i].contribution
		if c.SubscriberID != subscriberID {
			continue
		}
		if opts.Type != nil && c.Type != *opts.Type {
			continue
		}
		matched = append(matched, c)
	}
	out := make([]domain.Contribution, 0)
	if opts.Offset >= len(matched) {
		return out, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return append(out, matched...), nil
}

func (m *Memory) FindContributionResultByReference(_ context.Context, reference string) (*domain.ContributionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.resultByReference(reference)
}

func (s *state) resultByReference(reference string) (*domain.ContributionResult, error) {
	for _, row := range s.contributions {
		txn, ok := s.transactions[row.contribution.TransactionID]
		if !ok || txn.txn.ExternalReference == nil || *txn.txn.ExternalReference != reference {
			continue
		}
		return &domain.ContributionResult{
			ContributionID: row.contribution.ID,
			TransactionID:  txn.txn.ID,
			Type:           row.contribution.Type,
			Amount:         row.contribution.Amount,
			PaymentMethod:  txn.method,
			Balances:       row.balancesAfter,
		}, nil
	}
	return nil, store.ErrContributionNotFound
}

func (m *Memory) CreateGatewayCharge(_ context.Context, charge *domain.GatewayCharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.charges[charge.Reference]; exists {
		return store.ErrDuplicateGatewayCharge
	}
	now := time.Now()
	charge.CreatedAt, charge.UpdatedAt = now, now
	m.state.charges[charge.Reference] = *charge
	return nil
}

func (m *Memory) FindGatewayCharge(_ context.Context, reference string) (*domain.GatewayCharge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	charge, ok := m.state.charges[reference]
	if !ok {
		return nil, store.ErrGatewayChargeNotFound
	}
	return &charge, nil
}

func (m *Memory) AttachGatewayAuthorization(_ context.Context, reference, authorizationURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	charge, ok := m.state.charges[reference]
	if !ok {
		return store.ErrGatewayChargeNotFound
	}
	charge.AuthorizationURL = authorizationURL
	charge.UpdatedAt = time.Now()
	m.state.charges[reference] = charge
	return nil
}

func (m *Memory) UpdateGatewayChargeStatus(_ context.Context, reference, status string, failureReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.updateCharge(reference, status, failureReason)
	return nil
}

func (s *state) updateCharge(reference, status string, failureReason *string) {
	charge, ok := s.charges[reference]
	if !ok || charge.Status == domain.GatewayChargeCompleted || charge.Status == domain.GatewayChargeMismatch {
		return
	}
	charge.Status = status
	charge.FailureReason = failureReason
	charge.UpdatedAt = time.Now()
	s.charges[reference] = charge
}

func (m *Memory) ListSubscriberIDsWithICABalance(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range m.state.subscribers {
		if s.DeletedAt == nil && s.Balances.ICA > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *Memory) AdminSummary(_ context.Context) (*domain.AdminSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := domain.AdminSummary{AdminWalletBalance: m.state.adminWallet}
	for _, s := range m.state.subscribers {
		if s.DeletedAt != nil {
			continue
		}
		summary.SubscriberCount++
		summary.TotalICA += s.Balances.ICA
		summary.TotalPiggy += s.Balances.Piggy
	}
	return &summary, nil
}

func (m *Memory) WithinTx(_ context.Context, fn func(tx store.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TxCalls++
	if len(m.TxErrors) > 0 {
		err := m.TxErrors[0]
		m.TxErrors = m.TxErrors[1:]
		if err != nil {
			return err
		}
	}

	snapshot := m.state.clone()
	if err := fn(&memTx{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

type memTx struct {
	s *state
}

func (t *memTx) LockSubscriber(_ context.Context, subscriberID uuid.UUID) (*domain.Subscriber, error) {
	return t.s.activeSubscriber(subscriberID)
}

func (t *memTx) UpdateSubscriberBalances(_ context.Context, subscriberID uuid.UUID, balances domain.Balances) error {
	sub, ok := t.s.subscribers[subscriberID]
	if !ok {
		return store.ErrSubscriberNotFound
	}
	sub.Balances = balances
	sub.UpdatedAt = time.Now()
	t.s.subscribers[subscriberID] = sub
	return nil
}

func (t *memTx) CreditAdminWallet(_ context.Context, amount ledger.Money) (ledger.Money, error) {
	balance, err := ledger.Credit(t.s.adminWallet, amount)
	if err != nil {
		return 0, err
	}
	t.s.adminWallet = balance
	return balance, nil
}

func (t *memTx) MarkReferenceProcessed(_ context.Context, reference string) (bool, error) {
	if _, exists := t.s.references[reference]; exists {
		return false, nil
	}
	t.s.references[reference] = time.Now()
	return true, nil
}

func (t *memTx) MarkInterestApplied(_ context.Context, subscriberID uuid.UUID, year int, amount ledger.Money) (bool, error) {
	key := interestKey{subscriberID: subscriberID, year: year}
	if _, exists := t.s.interest[key]; exists {
		return false, nil
	}
	t.s.interest[key] = amount
	return true, nil
}

func (t *memTx) FindContributionResultByReference(_ context.Context, reference string) (*domain.ContributionResult, error) {
	return t.s.resultByReference(reference)
}

func (t *memTx) InsertTransaction(_ context.Context, txn *domain.Transaction, method domain.PaymentMethod) error {
	if txn.ExternalReference != nil {
		for _, row := range t.s.transactions {
			if row.txn.ExternalReference != nil && *row.txn.ExternalReference == *txn.ExternalReference {
				return store.ErrDuplicateReference
			}
		}
	}
	txn.CreatedAt = time.Now()
	t.s.transactions[txn.ID] = transactionRow{txn: *txn, method: method}
	return nil
}

func (t *memTx) InsertContribution(_ context.Context, c *domain.Contribution, balancesAfter domain.Balances) error {
	c.CreatedAt = time.Now()
	t.s.contributions = append(t.s.contributions, contributionRow{contribution: *c, balancesAfter: balancesAfter})
	return nil
}

func (t *memTx) UpdateGatewayChargeStatus(_ context.Context, reference, status string, failureReason *string) error {
	t.s.updateCharge(reference, status, failureReason)
	return nil
}
