package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/metrics"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/google/uuid"
)

const (
	minInterestYear = 2000
	maxInterestYear = 9999
)

// ApplyYearlyInterest credits rate% of every positive ICA balance for the given year. Each
// subscriber is credited in its own unit of work and at most once per year, so a failed or
// repeated run can simply be started again. year 0 means the current business year.
func (s *Service) ApplyYearlyInterest(ctx context.Context, rate ledger.Percentage, year int) ([]domain.InterestCredit, error) {
	if rate.IsZero() {
		return nil, ErrInvalidInterestRate
	}
	if year == 0 {
		year = s.Today().Year()
	}
	if year < minInterestYear || year > maxInterestYear {
		return nil, ErrInvalidInterestYear
	}

	ids, err := s.repo.ListSubscriberIDsWithICABalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ICA balances: %w", err)
	}

	s.logger.Info("applying yearly interest", "rate", rate.String(), "year", year, "candidates", len(ids))

	credits := make([]domain.InterestCredit, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return credits, err
		}

		var credit *domain.InterestCredit
		err := s.withinTx(ctx, "interest", func(tx store.TxRepository) error {
			var txErr error
			credit, txErr = s.applyInterestTx(ctx, tx, id, rate, year)
			return txErr
		})
		if err != nil {
			if errors.Is(err, store.ErrSubscriberNotFound) {
				continue
			}
			s.logger.Error("interest credit failed", "subscriber_id", id, "year", year, "error", err)
			return credits, fmt.Errorf("failed to apply interest for subscriber %s: %w", id, err)
		}
		if credit == nil {
			continue
		}

		credits = append(credits, *credit)
		metrics.InterestCredits.Inc()
		s.publish(ctx, domain.RoutingInterestApplied, domain.InterestAppliedEvent{
			SubscriberID:   credit.SubscriberID,
			Year:           credit.Year,
			InterestAmount: credit.InterestAmount,
			Timestamp:      s.now().UTC(),
		})
	}

	s.logger.Info("yearly interest applied", "year", year, "credited", len(credits))
	return credits, nil
}

// applyInterestTx returns nil when the subscriber earns nothing or was already credited.
func (s *Service) applyInterestTx(ctx context.Context, tx store.TxRepository, subscriberID uuid.UUID, rate ledger.Percentage, year int) (*domain.InterestCredit, error) {
	sub, err := tx.LockSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	interest := rate.Apply(sub.Balances.ICA)
	if interest <= 0 {
		return nil, nil
	}

	fresh, err := tx.MarkInterestApplied(ctx, sub.ID, year, interest)
	if err != nil {
		return nil, fmt.Errorf("failed to mark interest applied: %w", err)
	}
	if !fresh {
		return nil, nil
	}

	balances := sub.Balances
	if balances.ICA, err = ledger.Credit(balances.ICA, interest); err != nil {
		return nil, err
	}
	if err := tx.UpdateSubscriberBalances(ctx, sub.ID, balances); err != nil {
		return nil, fmt.Errorf("failed to update balances: %w", err)
	}
	if _, err := tx.CreditAdminWallet(ctx, interest); err != nil {
		return nil, fmt.Errorf("failed to credit admin wallet: %w", err)
	}

	txn := domain.Transaction{
		ID:           uuid.New(),
		SubscriberID: sub.ID,
		Kind:         domain.TransactionKindFor(domain.ContributionInterest),
		Amount:       interest,
		Currency:     domain.CurrencyNGN,
		Status:       domain.TransactionStatusCompleted,
	}
	if err := tx.InsertTransaction(ctx, &txn, domain.PaymentWallet); err != nil {
		return nil, fmt.Errorf("failed to record interest transaction: %w", err)
	}

	contribution := newContribution(sub.ID, domain.ContributionInterest, interest, s.interestDate(year), txn.ID)
	if err := tx.InsertContribution(ctx, &contribution, balances); err != nil {
		return nil, fmt.Errorf("failed to record interest contribution: %w", err)
	}

	return &domain.InterestCredit{
		SubscriberID:   sub.ID,
		InterestAmount: interest,
		NewICABalance:  balances.ICA,
		Year:           year,
	}, nil
}

// interestDate is today for the current business year and December 31st for any other
// year, so the contribution row is stamped with the year it pays interest for.
func (s *Service) interestDate(year int) time.Time {
	today := s.Today()
	if today.Year() == year {
		return today
	}
	return time.Date(year, time.December, 31, 0, 0, 0, 0, s.loc)
}

// AdminSummary returns ICA and piggy totals across active subscribers with the admin wallet balance.
func (s *Service) AdminSummary(ctx context.Context) (*domain.AdminSummary, error) {
	return s.repo.AdminSummary(ctx)
}
