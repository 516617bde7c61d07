package domain

import (
	"time"

	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
)

const EventsExchange = "dewbox.events"

const (
	RoutingContributionRecorded = "contribution.recorded"
	RoutingInterestApplied      = "interest.applied"
	RoutingGatewayConfirmed     = "payment.gateway.confirmed"
)

// ContributionRecordedEvent is published after a contribution commits.
type ContributionRecordedEvent struct {
	ContributionID    uuid.UUID        `json:"contribution_id"`
	SubscriberID      uuid.UUID        `json:"subscriber_id"`
	Type              ContributionType `json:"type"`
	Amount            ledger.Money     `json:"amount"`
	PaymentMethod     PaymentMethod    `json:"payment_method"`
	ExternalReference string           `json:"external_reference,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
}

// InterestAppliedEvent is published once per credited subscriber.
type InterestAppliedEvent struct {
	SubscriberID   uuid.UUID    `json:"subscriber_id"`
	Year           int          `json:"year"`
	InterestAmount ledger.Money `json:"interest_amount"`
	Timestamp      time.Time    `json:"timestamp"`
}
