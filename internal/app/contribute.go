package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/metrics"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/google/uuid"
)

// Contribute classifies a contribution by the subscriber's day of cycle and applies it to
// the ledger in one unit of work. A reference that was already processed returns the
// original result with Duplicate set and changes nothing.
func (s *Service) Contribute(ctx context.Context, in domain.ContributeInput) (*domain.ContributionResult, error) {
	in.ExternalReference = strings.TrimSpace(in.ExternalReference)
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !in.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if in.PaymentMethod == domain.PaymentGateway && in.ExternalReference == "" {
		return nil, ErrMissingReference
	}
	if in.OverrideMode != nil && !in.OverrideMode.Valid() {
		return nil, ErrInvalidOverrideMode
	}

	var result *domain.ContributionResult
	var contribution domain.Contribution
	err := s.withinTx(ctx, "contribute", func(tx store.TxRepository) error {
		var txErr error
		result, contribution, txErr = s.contributeTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		s.logger.Warn("contribution rejected",
			"subscriber_id", in.SubscriberID,
			"payment_method", in.PaymentMethod,
			"amount", int64(in.Amount),
			"reference", in.ExternalReference,
			"error", err,
		)
		return nil, err
	}

	if result.Duplicate {
		metrics.DuplicateReferences.Inc()
		s.logger.Info("duplicate contribution reference ignored", "subscriber_id", in.SubscriberID, "reference", in.ExternalReference)
		return result, nil
	}

	metrics.ContributionsRecorded.WithLabelValues(string(result.Type), string(result.PaymentMethod)).Inc()
	metrics.ContributionAmount.WithLabelValues(string(result.Type)).Add(float64(result.Amount))
	s.logger.Info("contribution recorded",
		"subscriber_id", in.SubscriberID,
		"contribution_id", result.ContributionID,
		"type", result.Type,
		"payment_method", result.PaymentMethod,
		"amount", int64(result.Amount),
	)

	s.publish(ctx, domain.RoutingContributionRecorded, domain.ContributionRecordedEvent{
		ContributionID:    result.ContributionID,
		SubscriberID:      in.SubscriberID,
		Type:              result.Type,
		Amount:            result.Amount,
		PaymentMethod:     result.PaymentMethod,
		ExternalReference: in.ExternalReference,
		Timestamp:         contribution.CreatedAt,
	})

	return result, nil
}

func (s *Service) contributeTx(ctx context.Context, tx store.TxRepository, in domain.ContributeInput) (*domain.ContributionResult, domain.Contribution, error) {
	var none domain.Contribution

	if in.ExternalReference != "" {
		fresh, err := tx.MarkReferenceProcessed(ctx, in.ExternalReference)
		if err != nil {
			return nil, none, fmt.Errorf("failed to mark reference processed: %w", err)
		}
		if !fresh {
			prior, err := tx.FindContributionResultByReference(ctx, in.ExternalReference)
			if err != nil {
				return nil, none, fmt.Errorf("failed to load prior result for reference %s: %w", in.ExternalReference, err)
			}
			prior.Duplicate = true
			return prior, none, nil
		}
	}

	sub, err := tx.LockSubscriber(ctx, in.SubscriberID)
	if err != nil {
		return nil, none, fmt.Errorf("failed to lock subscriber: %w", err)
	}

	mode := sub.OverrideMode
	if in.OverrideMode != nil {
		mode = *in.OverrideMode
	}

	today := s.Today()
	ctype, err := s.policy.Classify(sub.RegistrationDay, today, mode)
	if err != nil {
		return nil, none, err
	}

	balances, adminCredit, err := s.applyContribution(sub.Balances, ctype, in.PaymentMethod, in.Amount)
	if err != nil {
		return nil, none, err
	}

	if err := tx.UpdateSubscriberBalances(ctx, sub.ID, balances); err != nil {
		return nil, none, fmt.Errorf("failed to update balances: %w", err)
	}
	if adminCredit > 0 {
		if _, err := tx.CreditAdminWallet(ctx, adminCredit); err != nil {
			return nil, none, fmt.Errorf("failed to credit admin wallet: %w", err)
		}
	}

	var reference *string
	if in.ExternalReference != "" {
		ref := in.ExternalReference
		reference = &ref
	}
	txn := domain.Transaction{
		ID:                uuid.New(),
		SubscriberID:      sub.ID,
		Kind:              domain.TransactionKindFor(ctype),
		Amount:            in.Amount,
		Currency:          domain.CurrencyNGN,
		Status:            domain.TransactionStatusCompleted,
		ExternalReference: reference,
	}
	if err := tx.InsertTransaction(ctx, &txn, in.PaymentMethod); err != nil {
		return nil, none, fmt.Errorf("failed to record transaction: %w", err)
	}

	contribution := newContribution(sub.ID, ctype, in.Amount, today, txn.ID)
	if err := tx.InsertContribution(ctx, &contribution, balances); err != nil {
		return nil, none, fmt.Errorf("failed to record contribution: %w", err)
	}

	if in.PaymentMethod == domain.PaymentGateway {
		if err := tx.UpdateGatewayChargeStatus(ctx, in.ExternalReference, domain.GatewayChargeCompleted, nil); err != nil {
			return nil, none, fmt.Errorf("failed to complete gateway charge: %w", err)
		}
	}

	return &domain.ContributionResult{
		ContributionID: contribution.ID,
		TransactionID:  txn.ID,
		Type:           ctype,
		Amount:         in.Amount,
		PaymentMethod:  in.PaymentMethod,
		Balances:       balances,
	}, contribution, nil
}

// applyContribution returns the subscriber's buckets after the contribution and the amount
// owed to the admin wallet. FEE and ICA both fund the admin wallet; PIGGY never does.
func (s *Service) applyContribution(b domain.Balances, ctype domain.ContributionType, method domain.PaymentMethod, amount ledger.Money) (domain.Balances, ledger.Money, error) {
	var err error
	fromWallet := method == domain.PaymentWallet

	switch ctype {
	case domain.ContributionFee:
		if fromWallet {
			if b.Main, err = ledger.Debit(b.Main, amount); err != nil {
				return b, 0, err
			}
		}
		return b, amount, nil

	case domain.ContributionICA:
		if fromWallet {
			if b.Main, err = ledger.Debit(b.Main, amount); err != nil {
				return b, 0, err
			}
		}
		if b.ICA, err = ledger.Credit(b.ICA, amount); err != nil {
			return b, 0, err
		}
		return b, amount, nil

	case domain.ContributionPiggy:
		if fromWallet {
			debited, debitErr := ledger.Debit(b.Main, amount)
			if debitErr != nil {
				return b, 0, debitErr
			}
			if s.piggyTransfer {
				b.Main = debited
			}
		}
		if b.Piggy, err = ledger.Credit(b.Piggy, amount); err != nil {
			return b, 0, err
		}
		return b, 0, nil
	}

	return b, 0, errors.New("unsupported contribution type " + string(ctype))
}

func newContribution(subscriberID uuid.UUID, ctype domain.ContributionType, amount ledger.Money, today time.Time, transactionID uuid.UUID) domain.Contribution {
	y, m, d := today.Date()
	return domain.Contribution{
		ID:            uuid.New(),
		SubscriberID:  subscriberID,
		Type:          ctype,
		Amount:        amount,
		Date:          time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Year:          y,
		Month:         int(m),
		TransactionID: transactionID,
	}
}
