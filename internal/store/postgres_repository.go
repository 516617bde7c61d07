/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * Ledger writes run inside `WithinTx`, which opens a transaction, bounds lock waits
 * with `SET LOCAL lock_timeout`, and hands the callback a `pgTx` bound to it.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/google/uuid: Identifiers.
 * - internal/domain, internal/ledger: Domain models and money type.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDuplicateReference     = errors.New("external reference already recorded")
	ErrDuplicateGatewayCharge = errors.New("gateway charge reference already exists")
)

const subscriberColumns = `
	id, auth_subject, email, registration_day, override_mode,
	main_balance, ica_balance, piggy_balance, deleted_at, created_at, updated_at
`

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresRepository creates a new instance of PostgresRepository. A zero lockTimeout
// leaves the server default in place.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, lockTimeout: lockTimeout}
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var s domain.Subscriber
	err := row.Scan(
		&s.ID,
		&s.AuthSubject,
		&s.Email,
		&s.RegistrationDay,
		&s.OverrideMode,
		&s.Balances.Main,
		&s.Balances.ICA,
		&s.Balances.Piggy,
		&s.DeletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindSubscriberIDByAuthSubject resolves the internal UUID from the identity provider's subject.
func (r *PostgresRepository) FindSubscriberIDByAuthSubject(ctx context.Context, authSubject string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, "SELECT id FROM subscribers WHERE auth_subject = $1 AND deleted_at IS NULL", authSubject).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrSubscriberNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresRepository) FindSubscriberByID(ctx context.Context, subscriberID uuid.UUID) (*domain.Subscriber, error) {
	query := `SELECT` + subscriberColumns + `FROM subscribers WHERE id = $1 AND deleted_at IS NULL`
	return scanSubscriber(r.db.QueryRow(ctx, query, subscriberID))
}

func (r *PostgresRepository) UpdateOverrideMode(ctx context.Context, subscriberID uuid.UUID, mode domain.OverrideMode) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE subscribers SET override_mode = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL",
		mode, subscriberID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// ListContributions returns a page of a subscriber's contributions, newest first.
func (r *PostgresRepository) ListContributions(ctx context.Context, subscriberID uuid.UUID, opts domain.ContributionListOptions) ([]domain.Contribution, error) {
	var typeFilter *string
	if opts.Type != nil {
		s := string(*opts.Type)
		typeFilter = &s
	}
	query := `
		SELECT id, subscriber_id, type, amount, contribution_date, year, month, transaction_id, created_at
		FROM contributions
		WHERE subscriber_id = $1
		  AND ($2::TEXT IS NULL OR type = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, subscriberID, typeFilter, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contributions := make([]domain.Contribution, 0)
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(
			&c.ID,
			&c.SubscriberID,
			&c.Type,
			&c.Amount,
			&c.Date,
			&c.Year,
			&c.Month,
			&c.TransactionID,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

func (r *PostgresRepository) FindContributionResultByReference(ctx context.Context, reference string) (*domain.ContributionResult, error) {
	return findContributionResultByReference(ctx, r.db, reference)
}

func findContributionResultByReference(ctx context.Context, q queryer, reference string) (*domain.ContributionResult, error) {
	query := `
		SELECT c.id, t.id, c.type, c.amount, t.payment_method,
		       c.main_balance_after, c.ica_balance_after, c.piggy_balance_after
		FROM transactions t
		JOIN contributions c ON c.transaction_id = t.id
		WHERE t.external_reference = $1
	`
	var res domain.ContributionResult
	err := q.QueryRow(ctx, query, reference).Scan(
		&res.ContributionID,
		&res.TransactionID,
		&res.Type,
		&res.Amount,
		&res.PaymentMethod,
		&res.Balances.Main,
		&res.Balances.ICA,
		&res.Balances.Piggy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *PostgresRepository) CreateGatewayCharge(ctx context.Context, charge *domain.GatewayCharge) error {
	query := `
		INSERT INTO gateway_charges (reference, subscriber_id, amount, currency, status, authorization_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		charge.Reference,
		charge.SubscriberID,
		charge.Amount,
		charge.Currency,
		charge.Status,
		charge.AuthorizationURL,
	).Scan(&charge.CreatedAt, &charge.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateGatewayCharge
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindGatewayCharge(ctx context.Context, reference string) (*domain.GatewayCharge, error) {
	query := `
		SELECT reference, subscriber_id, amount, currency, status, authorization_url, failure_reason, created_at, updated_at
		FROM gateway_charges
		WHERE reference = $1
	`
	var charge domain.GatewayCharge
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&charge.Reference,
		&charge.SubscriberID,
		&charge.Amount,
		&charge.Currency,
		&charge.Status,
		&charge.AuthorizationURL,
		&charge.FailureReason,
		&charge.CreatedAt,
		&charge.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGatewayChargeNotFound
		}
		return nil, err
	}
	return &charge, nil
}

func (r *PostgresRepository) AttachGatewayAuthorization(ctx context.Context, reference, authorizationURL string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE gateway_charges SET authorization_url = $2, updated_at = NOW() WHERE reference = $1",
		reference, authorizationURL,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGatewayChargeNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateGatewayChargeStatus(ctx context.Context, reference, status string, failureReason *string) error {
	return updateGatewayChargeStatus(ctx, r.db, reference, status, failureReason)
}

// updateGatewayChargeStatus never moves a completed or mismatched charge to another status.
// Mismatches stay flagged until someone reconciles them by hand.
func updateGatewayChargeStatus(ctx context.Context, q queryer, reference, status string, failureReason *string) error {
	query := `
		UPDATE gateway_charges
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE reference = $1 AND status NOT IN ('completed', 'mismatch')
	`
	_, err := q.Exec(ctx, query, reference, status, failureReason)
	return err
}

// ListSubscriberIDsWithICABalance returns active subscribers eligible for an interest run.
func (r *PostgresRepository) ListSubscriberIDsWithICABalance(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, "SELECT id FROM subscribers WHERE ica_balance > 0 AND deleted_at IS NULL ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) AdminSummary(ctx context.Context) (*domain.AdminSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(ica_balance), 0)::BIGINT,
		       COALESCE(SUM(piggy_balance), 0)::BIGINT,
		       (SELECT balance FROM admin_wallet WHERE id = 1)
		FROM subscribers
		WHERE deleted_at IS NULL
	`
	var summary domain.AdminSummary
	var adminBalance *int64
	err := r.db.QueryRow(ctx, query).Scan(
		&summary.SubscriberCount,
		&summary.TotalICA,
		&summary.TotalPiggy,
		&adminBalance,
	)
	if err != nil {
		if isUndefinedTableError(err) {
			return nil, fmt.Errorf("schema not migrated: %w", err)
		}
		return nil, err
	}
	if adminBalance == nil {
		return nil, ErrAdminWalletMissing
	}
	summary.AdminWalletBalance = ledger.Money(*adminBalance)
	return &summary, nil
}

// WithinTx opens a transaction, applies the lock timeout, and commits when fn succeeds.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx TxRepository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.lockTimeout > 0 {
		// SET does not accept bind parameters.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgTx implements TxRepository on an open pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockSubscriber(ctx context.Context, subscriberID uuid.UUID) (*domain.Subscriber, error) {
	query := `SELECT` + subscriberColumns + `FROM subscribers WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanSubscriber(t.tx.QueryRow(ctx, query, subscriberID))
}

func (t *pgTx) UpdateSubscriberBalances(ctx context.Context, subscriberID uuid.UUID, balances domain.Balances) error {
	query := `
		UPDATE subscribers
		SET main_balance = $2, ica_balance = $3, piggy_balance = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, subscriberID, balances.Main, balances.ICA, balances.Piggy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (t *pgTx) CreditAdminWallet(ctx context.Context, amount ledger.Money) (ledger.Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("admin wallet credit must not be negative: %d", amount)
	}
	var balance ledger.Money
	err := t.tx.QueryRow(ctx,
		"UPDATE admin_wallet SET balance = balance + $1, updated_at = NOW() WHERE id = 1 RETURNING balance",
		amount,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAdminWalletMissing
		}
		return 0, err
	}
	return balance, nil
}

func (t *pgTx) MarkReferenceProcessed(ctx context.Context, reference string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		"INSERT INTO processed_references (reference) VALUES ($1) ON CONFLICT (reference) DO NOTHING",
		reference,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) MarkInterestApplied(ctx context.Context, subscriberID uuid.UUID, year int, amount ledger.Money) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		"INSERT INTO interest_applications (subscriber_id, year, amount) VALUES ($1, $2, $3) ON CONFLICT (subscriber_id, year) DO NOTHING",
		subscriberID, year, amount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) FindContributionResultByReference(ctx context.Context, reference string) (*domain.ContributionResult, error) {
	return findContributionResultByReference(ctx, t.tx, reference)
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *domain.Transaction, method domain.PaymentMethod) error {
	query := `
		INSERT INTO transactions (id, subscriber_id, kind, payment_method, amount, currency, status, external_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query,
		txn.ID,
		txn.SubscriberID,
		txn.Kind,
		method,
		txn.Amount,
		txn.Currency,
		txn.Status,
		txn.ExternalReference,
	).Scan(&txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (t *pgTx) InsertContribution(ctx context.Context, c *domain.Contribution, balancesAfter domain.Balances) error {
	query := `
		INSERT INTO contributions (
			id, subscriber_id, type, amount, contribution_date, year, month, transaction_id,
			main_balance_after, ica_balance_after, piggy_balance_after
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	return t.tx.QueryRow(ctx, query,
		c.ID,
		c.SubscriberID,
		c.Type,
		c.Amount,
		c.Date,
		c.Year,
		c.Month,
		c.TransactionID,
		balancesAfter.Main,
		balancesAfter.ICA,
		balancesAfter.Piggy,
	).Scan(&c.CreatedAt)
}

func (t *pgTx) UpdateGatewayChargeStatus(ctx context.Context, reference, status string, failureReason *string) error {
	return updateGatewayChargeStatus(ctx, t.tx, reference, status, failureReason)
}
