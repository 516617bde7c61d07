/**
 * @description
 * Core domain models for the contribution-service: the contribution classification
 * enums, the immutable contribution and transaction ledger rows, and the DTOs passed
 * between the API, application, and store layers.
 *
 * @notes
 * - Amounts are `ledger.Money` (kobo) so balances never see floating point.
 * - Contribution and Transaction rows are append-only facts.
 */
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
)

// ContributionType is the bucket a contribution is classified into.
type ContributionType string

const (
	ContributionFee      ContributionType = "FEE"
	ContributionICA      ContributionType = "ICA"
	ContributionPiggy    ContributionType = "PIGGY"
	ContributionInterest ContributionType = "INTEREST"
)

// Valid reports whether t is a known contribution type.
func (t ContributionType) Valid() bool {
	switch t {
	case ContributionFee, ContributionICA, ContributionPiggy, ContributionInterest:
		return true
	}
	return false
}

// ParseContributionType normalizes user input such as "ica" into a ContributionType.
func ParseContributionType(raw string) (ContributionType, error) {
	t := ContributionType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown contribution type %q", raw)
	}
	return t, nil
}

// OverrideMode is the subscriber's classification preference.
type OverrideMode string

const (
	OverrideAuto   OverrideMode = "AUTO"
	OverrideAllICA OverrideMode = "ALL_ICA"
)

func (m OverrideMode) Valid() bool {
	return m == OverrideAuto || m == OverrideAllICA
}

func ParseOverrideMode(raw string) (OverrideMode, error) {
	m := OverrideMode(strings.ToUpper(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown override mode %q", raw)
	}
	return m, nil
}

// PaymentMethod is how the contribution amount is funded.
type PaymentMethod string

const (
	PaymentWallet  PaymentMethod = "WALLET"
	PaymentGateway PaymentMethod = "GATEWAY"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentWallet || p == PaymentGateway
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	p := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
	return p, nil
}

// Contribution maps to the `contributions` table.
type Contribution struct {
	ID            uuid.UUID        `json:"id"`
	SubscriberID  uuid.UUID        `json:"subscriber_id"`
	Type          ContributionType `json:"type"`
	Amount        ledger.Money     `json:"amount"` // in kobo
	Date          time.Time        `json:"date"`
	Year          int              `json:"year"`
	Month         int              `json:"month"`
	TransactionID uuid.UUID        `json:"transaction_id"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ContributeInput is the orchestrator's request.
type ContributeInput struct {
	SubscriberID      uuid.UUID
	Amount            ledger.Money
	PaymentMethod     PaymentMethod
	ExternalReference string
	// OverrideMode replaces the subscriber's stored mode for this call when set.
	OverrideMode *OverrideMode
}

// ContributionResult is what the orchestrator returns for a new or replayed contribution.
type ContributionResult struct {
	ContributionID uuid.UUID        `json:"contribution_id"`
	TransactionID  uuid.UUID        `json:"transaction_id"`
	Type           ContributionType `json:"type"`
	Amount         ledger.Money     `json:"amount"`
	PaymentMethod  PaymentMethod    `json:"payment_method"`
	Balances       Balances         `json:"new_balance"`
	Duplicate      bool             `json:"duplicate"`
}

// ContributionListOptions pages through a subscriber's history.
type ContributionListOptions struct {
	Limit  int
	Offset int
	Type   *ContributionType
}

// InterestCredit is one subscriber's share of a yearly interest run.
type InterestCredit struct {
	SubscriberID   uuid.UUID    `json:"subscriber_id"`
	InterestAmount ledger.Money `json:"interest_amount"`
	NewICABalance  ledger.Money `json:"new_ica_balance"`
	Year           int          `json:"year"`
}

// AdminSummary aggregates the buckets across all active subscribers.
type AdminSummary struct {
	SubscriberCount    int64        `json:"subscriber_count"`
	TotalICA           ledger.Money `json:"total_ica"`
	TotalPiggy         ledger.Money `json:"total_piggy"`
	AdminWalletBalance ledger.Money `json:"admin_wallet_balance"`
}
