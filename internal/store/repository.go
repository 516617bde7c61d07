/**
 * @description
 * This file defines the `Repository` and `TxRepository` interfaces, the contract for all
 * data access required by the contribution-service. Every balance mutation goes through
 * a `TxRepository` handed out by `WithinTx`, so a contribution or interest credit either
 * commits all of its rows or none of them.
 *
 * @dependencies
 * - github.com/google/uuid: For subscriber and ledger identifiers.
 * - internal/domain, internal/ledger: Domain models and money type.
 */

package store

import (
	"context"
	"errors"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
)

var (
	ErrSubscriberNotFound    = errors.New("subscriber not found")
	ErrContributionNotFound  = errors.New("contribution not found")
	ErrGatewayChargeNotFound = errors.New("gateway charge not found")
	ErrAdminWalletMissing    = errors.New("admin wallet row missing")
)

// Repository defines the read paths and the unit-of-work entry point.
type Repository interface {
	// Subscriber methods
	FindSubscriberIDByAuthSubject(ctx context.Context, authSubject string) (uuid.UUID, error)
	FindSubscriberByID(ctx context.Context, subscriberID uuid.UUID) (*domain.Subscriber, error)
	UpdateOverrideMode(ctx context.Context, subscriberID uuid.UUID, mode domain.OverrideMode) error

	// Contribution history
	ListContributions(ctx context.Context, subscriberID uuid.UUID, opts domain.ContributionListOptions) ([]domain.Contribution, error)
	FindContributionResultByReference(ctx context.Context, reference string) (*domain.ContributionResult, error)

	// Gateway charges
	CreateGatewayCharge(ctx context.Context, charge *domain.GatewayCharge) error
	FindGatewayCharge(ctx context.Context, reference string) (*domain.GatewayCharge, error)
	AttachGatewayAuthorization(ctx context.Context, reference, authorizationURL string) error
	UpdateGatewayChargeStatus(ctx context.Context, reference, status string, failureReason *string) error

	// Admin aggregation
	ListSubscriberIDsWithICABalance(ctx context.Context) ([]uuid.UUID, error)
	AdminSummary(ctx context.Context) (*domain.AdminSummary, error)

	// WithinTx runs fn in one database transaction. fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is the set of operations available inside a unit of work.
type TxRepository interface {
	// LockSubscriber reads an active subscriber and holds its row lock until commit.
	LockSubscriber(ctx context.Context, subscriberID uuid.UUID) (*domain.Subscriber, error)
	UpdateSubscriberBalances(ctx context.Context, subscriberID uuid.UUID, balances domain.Balances) error
	// CreditAdminWallet adds amount to the admin wallet and returns the new balance.
	CreditAdminWallet(ctx context.Context, amount ledger.Money) (ledger.Money, error)

	// MarkReferenceProcessed inserts reference and reports whether it was new.
	MarkReferenceProcessed(ctx context.Context, reference string) (bool, error)
	// MarkInterestApplied records the (subscriber, year) credit and reports whether it was new.
	MarkInterestApplied(ctx context.Context, subscriberID uuid.UUID, year int, amount ledger.Money) (bool, error)
	FindContributionResultByReference(ctx context.Context, reference string) (*domain.ContributionResult, error)

	InsertTransaction(ctx context.Context, txn *domain.Transaction, method domain.PaymentMethod) error
	InsertContribution(ctx context.Context, contribution *domain.Contribution, balancesAfter domain.Balances) error
	UpdateGatewayChargeStatus(ctx context.Context, reference, status string, failureReason *string) error
}
