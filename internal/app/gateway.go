package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/metrics"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/dewbox/contribution-service/pkg/paystack"
	"github.com/google/uuid"
)

const gatewayReferencePrefix = "DBX-"

var (
	ErrGatewayMismatch          = errors.New("gateway confirmation does not match the charge")
	ErrUnknownGatewayReference  = errors.New("gateway reference is not known to this service")
	ErrGatewayPaymentFailed     = errors.New("gateway reported the payment as unsuccessful")
	ErrGatewayPaymentPending    = errors.New("gateway payment has not completed yet")
	ErrGatewayChargeNotYours    = errors.New("gateway charge belongs to another subscriber")
)

// GatewayConfirmationMismatchError is returned when the gateway confirms a different amount
// or currency than the charge was created for. The charge is flagged and never credited.
type GatewayConfirmationMismatchError struct {
	Reference        string
	ExpectedAmount   ledger.Money
	ReceivedAmount   ledger.Money
	ExpectedCurrency string
	ReceivedCurrency string
}

func (e *GatewayConfirmationMismatchError) Error() string {
	return fmt.Sprintf("gateway confirmation mismatch for %s: expected %s %s, received %s %s",
		e.Reference, e.ExpectedAmount, e.ExpectedCurrency, e.ReceivedAmount, e.ReceivedCurrency)
}

func (e *GatewayConfirmationMismatchError) Is(target error) bool {
	return target == ErrGatewayMismatch
}

// IsSettledGatewayOutcome reports whether err is a final answer for a confirmation, so the
// webhook or queue delivery should be acknowledged instead of retried.
func IsSettledGatewayOutcome(err error) bool {
	return errors.Is(err, ErrUnknownGatewayReference) ||
		errors.Is(err, ErrGatewayPaymentFailed) ||
		errors.Is(err, ErrGatewayPaymentPending) ||
		errors.Is(err, ErrGatewayMismatch)
}

// InitializeGatewayContribution records a pending charge and opens a Paystack checkout for it.
func (s *Service) InitializeGatewayContribution(ctx context.Context, subscriberID uuid.UUID, amount ledger.Money) (*domain.GatewayInitialization, error) {
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sub, err := s.repo.FindSubscriberByID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	charge := &domain.GatewayCharge{
		Reference:    gatewayReferencePrefix + uuid.NewString(),
		SubscriberID: sub.ID,
		Amount:       amount,
		Currency:     domain.CurrencyNGN,
		Status:       domain.GatewayChargePending,
	}
	if err := s.repo.CreateGatewayCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("failed to record gateway charge: %w", err)
	}

	resp, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       sub.Email,
		Amount:      int64(amount),
		Currency:    domain.CurrencyNGN,
		Reference:   charge.Reference,
		CallbackURL: s.callbackURL,
		Metadata:    map[string]string{"subscriber_id": sub.ID.String()},
	})
	if err != nil {
		reason := err.Error()
		if markErr := s.repo.UpdateGatewayChargeStatus(ctx, charge.Reference, domain.GatewayChargeFailed, &reason); markErr != nil {
			s.logger.Error("failed to mark gateway charge failed", "reference", charge.Reference, "error", markErr)
		}
		return nil, fmt.Errorf("failed to initialize gateway checkout: %w", err)
	}

	if err := s.repo.AttachGatewayAuthorization(ctx, charge.Reference, resp.AuthorizationURL); err != nil {
		s.logger.Warn("failed to store authorization url", "reference", charge.Reference, "error", err)
	}

	s.logger.Info("gateway charge initialized", "subscriber_id", sub.ID, "reference", charge.Reference, "amount", int64(amount))
	return &domain.GatewayInitialization{
		Reference:        charge.Reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		Amount:           amount,
	}, nil
}

// ConfirmGatewayPayment credits a confirmed gateway charge exactly once. Confirmations for
// unknown references, failed or pending payments, and mismatched amounts return errors that
// IsSettledGatewayOutcome recognizes and leave the ledger untouched.
func (s *Service) ConfirmGatewayPayment(ctx context.Context, confirmation domain.GatewayConfirmation) (*domain.ContributionResult, error) {
	reference := strings.TrimSpace(confirmation.Reference)
	if reference == "" {
		return nil, ErrMissingReference
	}

	charge, err := s.repo.FindGatewayCharge(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrGatewayChargeNotFound) {
			s.logger.Warn("gateway confirmation for unknown reference ignored", "reference", reference)
			return nil, ErrUnknownGatewayReference
		}
		return nil, fmt.Errorf("failed to load gateway charge: %w", err)
	}
	if charge.Status == domain.GatewayChargeMismatch {
		s.logger.Warn("gateway confirmation for flagged charge ignored", "reference", reference, "status", confirmation.Status)
		return nil, ErrGatewayMismatch
	}

	if confirmation.Pending() {
		return nil, ErrGatewayPaymentPending
	}

	if !confirmation.Successful() {
		reason := "gateway status " + confirmation.Status
		if err := s.repo.UpdateGatewayChargeStatus(ctx, reference, domain.GatewayChargeFailed, &reason); err != nil {
			return nil, fmt.Errorf("failed to mark gateway charge failed: %w", err)
		}
		s.logger.Info("gateway charge failed", "reference", reference, "status", confirmation.Status)
		return nil, ErrGatewayPaymentFailed
	}

	currency := strings.ToUpper(strings.TrimSpace(confirmation.Currency))
	if currency == "" {
		currency = charge.Currency
	}
	if confirmation.Amount != charge.Amount || currency != charge.Currency {
		mismatch := &GatewayConfirmationMismatchError{
			Reference:        reference,
			ExpectedAmount:   charge.Amount,
			ReceivedAmount:   confirmation.Amount,
			ExpectedCurrency: charge.Currency,
			ReceivedCurrency: currency,
		}
		reason := mismatch.Error()
		if err := s.repo.UpdateGatewayChargeStatus(ctx, reference, domain.GatewayChargeMismatch, &reason); err != nil {
			return nil, fmt.Errorf("failed to flag gateway charge: %w", err)
		}
		metrics.GatewayMismatches.Inc()
		s.logger.Error("gateway confirmation mismatch; charge flagged for review",
			"reference", reference,
			"expected_amount", int64(charge.Amount),
			"received_amount", int64(confirmation.Amount),
			"expected_currency", charge.Currency,
			"received_currency", currency,
		)
		return nil, mismatch
	}

	return s.Contribute(ctx, domain.ContributeInput{
		SubscriberID:      charge.SubscriberID,
		Amount:            charge.Amount,
		PaymentMethod:     domain.PaymentGateway,
		ExternalReference: reference,
	})
}

// VerifyGatewayContribution asks the gateway for the charge state and applies it. It is the
// path for clients returning from checkout before the webhook has arrived.
func (s *Service) VerifyGatewayContribution(ctx context.Context, subscriberID uuid.UUID, reference string) (*domain.ContributionResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrMissingReference
	}

	charge, err := s.repo.FindGatewayCharge(ctx, reference)
	if err != nil {
		return nil, err
	}
	if charge.SubscriberID != subscriberID {
		return nil, ErrGatewayChargeNotYours
	}

	if charge.Status == domain.GatewayChargeCompleted {
		return s.repo.FindContributionResultByReference(ctx, reference)
	}
	if charge.Status == domain.GatewayChargeMismatch {
		return nil, ErrGatewayMismatch
	}
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	txn, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to verify gateway charge: %w", err)
	}
	return s.ConfirmGatewayPayment(ctx, confirmationFromTransaction(reference, txn))
}

func confirmationFromTransaction(reference string, txn *paystack.Transaction) domain.GatewayConfirmation {
	if txn.Reference != "" {
		reference = txn.Reference
	}
	return domain.GatewayConfirmation{
		Reference: reference,
		Status:    txn.Status,
		Amount:    ledger.Money(txn.Amount),
		Currency:  txn.Currency,
	}
}
