package domain

import (
	"time"

	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
)

// Balances are the three buckets held per subscriber.
type Balances struct {
	Main  ledger.Money `json:"main"`
	ICA   ledger.Money `json:"ica"`
	Piggy ledger.Money `json:"piggy"`
}

// Subscriber maps to the `subscribers` table. Rows are soft-deleted only.
type Subscriber struct {
	ID              uuid.UUID    `json:"id"`
	AuthSubject     string       `json:"-"`
	Email           string       `json:"email"`
	RegistrationDay int          `json:"registration_day"`
	OverrideMode    OverrideMode `json:"override_mode"`
	Balances        Balances     `json:"balances"`
	DeletedAt       *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ContributionSettings is the user-editable part of a subscriber.
type ContributionSettings struct {
	OverrideMode    OverrideMode `json:"override_mode"`
	RegistrationDay int          `json:"registration_day"`
}
