package domain

import (
	"strings"
	"time"

	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
)

const CurrencyNGN = "NGN"

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

const TransactionKindInterest = "interest"

// TransactionKindFor returns the ledger kind recorded for a contribution type, e.g. "contribution_ica".
func TransactionKindFor(t ContributionType) string {
	if t == ContributionInterest {
		return TransactionKindInterest
	}
	return "contribution_" + strings.ToLower(string(t))
}

// Transaction is an immutable ledger entry in the `transactions` table.
type Transaction struct {
	ID                uuid.UUID    `json:"id"`
	SubscriberID      uuid.UUID    `json:"subscriber_id"`
	Kind              string       `json:"kind"`
	Amount            ledger.Money `json:"amount"` // in kobo
	Currency          string       `json:"currency"`
	Status            string       `json:"status"`
	ExternalReference *string      `json:"external_reference,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}
