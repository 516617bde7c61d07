package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/pkg/paystack"
	"github.com/google/uuid"
)

func seedCharge(t *testing.T, env *testEnv, subscriberID uuid.UUID, reference string, amount ledger.Money) {
	t.Helper()
	err := env.repo.CreateGatewayCharge(context.Background(), &domain.GatewayCharge{
		Reference:    reference,
		SubscriberID: subscriberID,
		Amount:       amount,
		Currency:     domain.CurrencyNGN,
		Status:       domain.GatewayChargePending,
	})
	if err != nil {
		t.Fatalf("CreateGatewayCharge returned error: %v", err)
	}
}

func chargeStatus(t *testing.T, env *testEnv, reference string) string {
	t.Helper()
	charge, err := env.repo.FindGatewayCharge(context.Background(), reference)
	if err != nil {
		t.Fatalf("FindGatewayCharge returned error: %v", err)
	}
	return charge.Status
}

func TestInitializeGatewayContribution(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{GatewayCallbackURL: "https://app.dewbox.test/return"})
	env.gateway.initResp = &paystack.InitializeResponse{AuthorizationURL: "https://checkout.paystack.com/abc", AccessCode: "abc"}
	sub := env.addSubscriber(0, 0, 0)

	init, err := env.svc.InitializeGatewayContribution(context.Background(), sub.ID, 250000)
	if err != nil {
		t.Fatalf("InitializeGatewayContribution returned error: %v", err)
	}
	if !strings.HasPrefix(init.Reference, "DBX-") || init.AuthorizationURL != "https://checkout.paystack.com/abc" || init.Amount != 250000 {
		t.Fatalf("unexpected initialization %+v", init)
	}

	if len(env.gateway.initReqs) != 1 {
		t.Fatalf("expected one initialize call, got %d", len(env.gateway.initReqs))
	}
	req := env.gateway.initReqs[0]
	if req.Reference != init.Reference || req.Amount != 250000 || req.Currency != "NGN" || req.Email != "member@dewbox.test" {
		t.Fatalf("unexpected initialize request %+v", req)
	}
	if req.CallbackURL != "https://app.dewbox.test/return" || req.Metadata["subscriber_id"] != sub.ID.String() {
		t.Fatalf("unexpected callback or metadata in %+v", req)
	}

	charge, err := env.repo.FindGatewayCharge(context.Background(), init.Reference)
	if err != nil {
		t.Fatalf("FindGatewayCharge returned error: %v", err)
	}
	if charge.Status != domain.GatewayChargePending || charge.SubscriberID != sub.ID || charge.AuthorizationURL != init.AuthorizationURL {
		t.Fatalf("unexpected charge %+v", charge)
	}
	if len(env.repo.Transactions()) != 0 {
		t.Fatalf("initialization must not touch the ledger")
	}
}

func TestInitializeGatewayContribution_GatewayErrorMarksChargeFailed(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	env.gateway.initErr = &paystack.ErrorResponse{StatusCode: 400, Message: "Invalid key"}
	sub := env.addSubscriber(0, 0, 0)

	if _, err := env.svc.InitializeGatewayContribution(context.Background(), sub.ID, 1000); err == nil {
		t.Fatalf("expected gateway error")
	}
	if len(env.gateway.initReqs) != 1 {
		t.Fatalf("expected one initialize call")
	}
	if status := chargeStatus(t, env, env.gateway.initReqs[0].Reference); status != domain.GatewayChargeFailed {
		t.Fatalf("expected failed charge, got %s", status)
	}
}

func TestInitializeGatewayContribution_Validation(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	if _, err := env.svc.InitializeGatewayContribution(context.Background(), sub.ID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	noGateway := NewService(env.repo, nil, nil, nil, Options{})
	if _, err := noGateway.InitializeGatewayContribution(context.Background(), sub.ID, 100); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}
}

func TestConfirmGatewayPayment_CreditsOnceForRepeatedDeliveries(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	seedCharge(t, env, sub.ID, "PSK-123", 2000)

	confirmation := domain.GatewayConfirmation{Reference: "PSK-123", Status: "success", Amount: 2000, Currency: "NGN"}
	first, err := env.svc.ConfirmGatewayPayment(context.Background(), confirmation)
	if err != nil {
		t.Fatalf("first confirmation returned error: %v", err)
	}
	second, err := env.svc.ConfirmGatewayPayment(context.Background(), confirmation)
	if err != nil {
		t.Fatalf("second confirmation returned error: %v", err)
	}

	if first.Duplicate || !second.Duplicate || first.ContributionID != second.ContributionID {
		t.Fatalf("expected replay of the first result: first=%+v second=%+v", first, second)
	}
	if first.PaymentMethod != domain.PaymentGateway || first.Type != domain.ContributionICA {
		t.Fatalf("unexpected result %+v", first)
	}
	if got := env.repo.Subscriber(sub.ID).Balances.ICA; got != 2000 {
		t.Fatalf("expected ICA 2000, got %d", got)
	}
	if len(env.repo.Transactions()) != 1 || len(env.repo.Contributions()) != 1 {
		t.Fatalf("expected exactly one transaction and contribution")
	}
	if status := chargeStatus(t, env, "PSK-123"); status != domain.GatewayChargeCompleted {
		t.Fatalf("expected completed charge, got %s", status)
	}
}

func TestConfirmGatewayPayment_EmptyCurrencyUsesChargeCurrency(t *testing.T) {
	env := newTestEnv(t, piggyDay, Options{})
	sub := env.addSubscriber(100, 0, 0)
	seedCharge(t, env, sub.ID, "PSK-9", 700)

	result, err := env.svc.ConfirmGatewayPayment(context.Background(), domain.GatewayConfirmation{Reference: "PSK-9", Status: "success", Amount: 700})
	if err != nil {
		t.Fatalf("ConfirmGatewayPayment returned error: %v", err)
	}
	if result.Balances != (domain.Balances{Main: 100, Piggy: 700}) {
		t.Fatalf("unexpected balances %+v", result.Balances)
	}
}

func TestConfirmGatewayPayment_SettledOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		confirmation domain.GatewayConfirmation
		wantErr      error
		wantStatus   string
	}{
		{
			name:         "amount mismatch",
			confirmation: domain.GatewayConfirmation{Reference: "PSK-1", Status: "success", Amount: 1999, Currency: "NGN"},
			wantErr:      ErrGatewayMismatch,
			wantStatus:   domain.GatewayChargeMismatch,
		},
		{
			name:         "currency mismatch",
			confirmation: domain.GatewayConfirmation{Reference: "PSK-1", Status: "success", Amount: 2000, Currency: "USD"},
			wantErr:      ErrGatewayMismatch,
			wantStatus:   domain.GatewayChargeMismatch,
		},
		{
			name:         "failed payment",
			confirmation: domain.GatewayConfirmation{Reference: "PSK-1", Status: "failed", Amount: 2000, Currency: "NGN"},
			wantErr:      ErrGatewayPaymentFailed,
			wantStatus:   domain.GatewayChargeFailed,
		},
		{
			name:         "abandoned checkout",
			confirmation: domain.GatewayConfirmation{Reference: "PSK-1", Status: "abandoned", Amount: 2000, Currency: "NGN"},
			wantErr:      ErrGatewayPaymentPending,
			wantStatus:   domain.GatewayChargePending,
		},
		{
			name:         "unknown reference",
			confirmation: domain.GatewayConfirmation{Reference: "PSK-404", Status: "success", Amount: 2000, Currency: "NGN"},
			wantErr:      ErrUnknownGatewayReference,
			wantStatus:   domain.GatewayChargePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, icaDay, Options{})
			sub := env.addSubscriber(0, 0, 0)
			seedCharge(t, env, sub.ID, "PSK-1", 2000)

			_, err := env.svc.ConfirmGatewayPayment(context.Background(), tt.confirmation)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !IsSettledGatewayOutcome(err) {
				t.Fatalf("expected %v to be a settled outcome", err)
			}
			if status := chargeStatus(t, env, "PSK-1"); status != tt.wantStatus {
				t.Fatalf("expected charge status %s, got %s", tt.wantStatus, status)
			}
			if len(env.repo.Transactions()) != 0 || env.repo.AdminWallet() != 0 || env.repo.ProcessedReferenceCount() != 0 {
				t.Fatalf("settled outcome must leave no ledger trace")
			}
		})
	}
}

func TestConfirmGatewayPayment_MismatchDetails(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	seedCharge(t, env, sub.ID, "PSK-2", 5000)

	_, err := env.svc.ConfirmGatewayPayment(context.Background(), domain.GatewayConfirmation{Reference: "PSK-2", Status: "success", Amount: 500, Currency: "ngn"})
	var mismatch *GatewayConfirmationMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if mismatch.ExpectedAmount != 5000 || mismatch.ReceivedAmount != 500 || mismatch.ReceivedCurrency != "NGN" {
		t.Fatalf("unexpected mismatch %+v", mismatch)
	}

	// Replays of the bad confirmation stay flagged.
	if _, err := env.svc.ConfirmGatewayPayment(context.Background(), domain.GatewayConfirmation{Reference: "PSK-2", Status: "success", Amount: 500}); !errors.Is(err, ErrGatewayMismatch) {
		t.Fatalf("expected mismatch again, got %v", err)
	}
}

func TestConfirmGatewayPayment_MismatchedChargeIsNeverCredited(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	seedCharge(t, env, sub.ID, "PSK-3", 2000)

	short := domain.GatewayConfirmation{Reference: "PSK-3", Status: "success", Amount: 1500, Currency: "NGN"}
	if _, err := env.svc.ConfirmGatewayPayment(context.Background(), short); !errors.Is(err, ErrGatewayMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	exact := domain.GatewayConfirmation{Reference: "PSK-3", Status: "success", Amount: 2000, Currency: "NGN"}
	_, err := env.svc.ConfirmGatewayPayment(context.Background(), exact)
	if !errors.Is(err, ErrGatewayMismatch) || !IsSettledGatewayOutcome(err) {
		t.Fatalf("expected flagged charge to stay a settled mismatch, got %v", err)
	}

	if got := env.repo.Subscriber(sub.ID).Balances; got != (domain.Balances{}) {
		t.Fatalf("flagged charge moved balances: %+v", got)
	}
	if env.repo.AdminWallet() != 0 || len(env.repo.Contributions()) != 0 || env.repo.ProcessedReferenceCount() != 0 {
		t.Fatalf("flagged charge left a ledger trace")
	}
	if status := chargeStatus(t, env, "PSK-3"); status != domain.GatewayChargeMismatch {
		t.Fatalf("expected charge to stay flagged, got %s", status)
	}
}

func TestGatewayChargeStatus_MismatchIsSticky(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	seedCharge(t, env, sub.ID, "PSK-4", 2000)

	ctx := context.Background()
	reason := "amount differs"
	if err := env.repo.UpdateGatewayChargeStatus(ctx, "PSK-4", domain.GatewayChargeMismatch, &reason); err != nil {
		t.Fatalf("UpdateGatewayChargeStatus returned error: %v", err)
	}
	for _, status := range []string{domain.GatewayChargeCompleted, domain.GatewayChargeFailed, domain.GatewayChargePending} {
		if err := env.repo.UpdateGatewayChargeStatus(ctx, "PSK-4", status, nil); err != nil {
			t.Fatalf("UpdateGatewayChargeStatus(%s) returned error: %v", status, err)
		}
		if got := chargeStatus(t, env, "PSK-4"); got != domain.GatewayChargeMismatch {
			t.Fatalf("status %s overwrote the mismatch flag, got %s", status, got)
		}
	}
}

func TestConfirmGatewayPayment_MissingReference(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	if _, err := env.svc.ConfirmGatewayPayment(context.Background(), domain.GatewayConfirmation{Status: "success"}); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected missing reference, got %v", err)
	}
}

func TestVerifyGatewayContribution(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	seedCharge(t, env, sub.ID, "DBX-1", 3000)
	env.gateway.verifyTxn = &paystack.Transaction{Reference: "DBX-1", Status: "success", Amount: 3000, Currency: "NGN"}

	result, err := env.svc.VerifyGatewayContribution(context.Background(), sub.ID, "DBX-1")
	if err != nil {
		t.Fatalf("VerifyGatewayContribution returned error: %v", err)
	}
	if result.Balances.ICA != 3000 || result.Duplicate {
		t.Fatalf("unexpected result %+v", result)
	}

	again, err := env.svc.VerifyGatewayContribution(context.Background(), sub.ID, "DBX-1")
	if err != nil {
		t.Fatalf("second verify returned error: %v", err)
	}
	if again.ContributionID != result.ContributionID {
		t.Fatalf("expected stored result on second verify")
	}
	if env.gateway.verifyCalls != 1 {
		t.Fatalf("completed charges must not be re-verified, got %d calls", env.gateway.verifyCalls)
	}

	if _, err := env.svc.VerifyGatewayContribution(context.Background(), uuid.New(), "DBX-1"); !errors.Is(err, ErrGatewayChargeNotYours) {
		t.Fatalf("expected ownership error, got %v", err)
	}
}

func TestVerifyGatewayContribution_PendingCheckout(t *testing.T) {
	env := newTestEnv(t, icaDay, Options{})
	sub := env.addSubscriber(0, 0, 0)
	seedCharge(t, env, sub.ID, "DBX-2", 3000)
	env.gateway.verifyTxn = &paystack.Transaction{Reference: "DBX-2", Status: "ongoing", Amount: 3000, Currency: "NGN"}

	if _, err := env.svc.VerifyGatewayContribution(context.Background(), sub.ID, "DBX-2"); !errors.Is(err, ErrGatewayPaymentPending) {
		t.Fatalf("expected pending, got %v", err)
	}
	if env.repo.Subscriber(sub.ID).Balances.ICA != 0 {
		t.Fatalf("pending checkout must not credit")
	}
}
