/**
 * @description
 * This file contains the core business logic for the contribution-service. The `Service`
 * struct coordinates the classification policy, the ledger unit of work in the store, the
 * Paystack gateway, and the event bus.
 *
 * Key features:
 * - Contribute: classify, move money between buckets, and record the ledger rows atomically.
 * - Gateway flow: initialize a checkout, then credit exactly once per confirmed reference.
 * - Yearly interest on ICA balances and the admin summary.
 *
 * @dependencies
 * - log/slog: Structured logging injected from main.
 * - internal/domain, internal/store, internal/policy, internal/ledger.
 * - pkg/paystack: Payment gateway client types.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/policy"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/dewbox/contribution-service/pkg/paystack"
	"github.com/google/uuid"
)

var (
	ErrInvalidAmount        = errors.New("amount must be a positive number of kobo")
	ErrInvalidPaymentMethod = errors.New("payment method must be WALLET or GATEWAY")
	ErrInvalidOverrideMode  = errors.New("override mode must be AUTO or ALL_ICA")
	ErrMissingReference     = errors.New("gateway contributions require an external reference")
	ErrContentionExhausted  = errors.New("ledger is busy, retry the request")
	ErrGatewayUnavailable   = errors.New("payment gateway is not configured")
	ErrInvalidInterestRate  = errors.New("interest rate must be greater than 0 and at most 100")
	ErrInvalidInterestYear  = errors.New("interest year is out of range")
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// PaymentGateway is the subset of the Paystack client the service calls.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// Options tunes classification and the unit of work.
type Options struct {
	Policy   policy.Policy
	Location *time.Location
	// PiggyWalletTransfer debits main for WALLET PIGGY contributions instead of only checking it.
	PiggyWalletTransfer bool
	MaxAttempts         int
	RetryBaseDelay      time.Duration
	GatewayCallbackURL  string
}

// Service provides the business logic for contributions.
type Service struct {
	repo      store.Repository
	gateway   PaymentGateway
	publisher EventPublisher
	logger    *slog.Logger

	policy        policy.Policy
	loc           *time.Location
	piggyTransfer bool
	maxAttempts   int
	baseDelay     time.Duration
	callbackURL   string
	now           func() time.Time
}

// NewService creates a new contribution service. gateway and publisher may be nil.
func NewService(repo store.Repository, gateway PaymentGateway, publisher EventPublisher, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Policy == (policy.Policy{}) {
		opts.Policy = policy.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 25 * time.Millisecond
	}
	return &Service{
		repo:          repo,
		gateway:       gateway,
		publisher:     publisher,
		logger:        logger,
		policy:        opts.Policy,
		loc:           opts.Location,
		piggyTransfer: opts.PiggyWalletTransfer,
		maxAttempts:   opts.MaxAttempts,
		baseDelay:     opts.RetryBaseDelay,
		callbackURL:   opts.GatewayCallbackURL,
		now:           time.Now,
	}
}

// SetClock replaces the wall clock. Tests use it to pin the business date.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the current date in the business timezone.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// Policy returns the classification policy in effect.
func (s *Service) Policy() policy.Policy {
	return s.policy
}

// ResolveSubscriberID converts the identity provider's subject into the internal subscriber id.
func (s *Service) ResolveSubscriberID(ctx context.Context, authSubject string) (uuid.UUID, error) {
	return s.repo.FindSubscriberIDByAuthSubject(ctx, authSubject)
}

// GetBalances returns the subscriber's three buckets.
func (s *Service) GetBalances(ctx context.Context, subscriberID uuid.UUID) (*domain.Balances, error) {
	sub, err := s.repo.FindSubscriberByID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return &sub.Balances, nil
}

// GetSettings returns the subscriber's contribution settings.
func (s *Service) GetSettings(ctx context.Context, subscriberID uuid.UUID) (*domain.ContributionSettings, error) {
	sub, err := s.repo.FindSubscriberByID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return &domain.ContributionSettings{OverrideMode: sub.OverrideMode, RegistrationDay: sub.RegistrationDay}, nil
}

// UpdateOverrideMode stores the subscriber's classification preference.
func (s *Service) UpdateOverrideMode(ctx context.Context, subscriberID uuid.UUID, mode domain.OverrideMode) (*domain.ContributionSettings, error) {
	if !mode.Valid() {
		return nil, ErrInvalidOverrideMode
	}
	if err := s.repo.UpdateOverrideMode(ctx, subscriberID, mode); err != nil {
		return nil, fmt.Errorf("failed to update override mode: %w", err)
	}
	s.logger.Info("override mode updated", "subscriber_id", subscriberID, "override_mode", mode)
	return s.GetSettings(ctx, subscriberID)
}

// ListContributions returns the subscriber's history, newest first.
func (s *Service) ListContributions(ctx context.Context, subscriberID uuid.UUID, opts domain.ContributionListOptions) ([]domain.Contribution, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > maxHistoryLimit {
		opts.Limit = maxHistoryLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.ListContributions(ctx, subscriberID, opts)
}

// publish is best effort: the ledger has already committed.
func (s *Service) publish(ctx context.Context, routingKey string, event interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.EventsExchange, routingKey, event); err != nil {
		s.logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}
