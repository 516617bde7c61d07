/**
 * @description
 * Models for contributions funded through the payment gateway (Paystack). A
 * GatewayCharge is written when a checkout is initialized so that an inbound
 * confirmation can be matched to its owner and expected amount.
 */
package domain

import (
	"strings"
	"time"

	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/google/uuid"
)

const (
	GatewayChargePending   = "pending"
	GatewayChargeCompleted = "completed"
	GatewayChargeFailed    = "failed"
	// GatewayChargeMismatch marks a confirmation whose amount or currency differed from
	// the charge. Such charges are never credited automatically.
	GatewayChargeMismatch = "mismatch"
)

// GatewayCharge maps to the `gateway_charges` table.
type GatewayCharge struct {
	Reference        string       `json:"reference"`
	SubscriberID     uuid.UUID    `json:"subscriber_id"`
	Amount           ledger.Money `json:"amount"`
	Currency         string       `json:"currency"`
	Status           string       `json:"status"`
	AuthorizationURL string       `json:"authorization_url,omitempty"`
	FailureReason    *string      `json:"failure_reason,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// GatewayInitialization is returned to the client so it can complete checkout.
type GatewayInitialization struct {
	Reference        string       `json:"reference"`
	AuthorizationURL string       `json:"authorization_url"`
	AccessCode       string       `json:"access_code,omitempty"`
	Amount           ledger.Money `json:"amount"`
}

// GatewayConfirmation is the gateway's statement about a charge, from a webhook,
// a verify call, or the event bus.
type GatewayConfirmation struct {
	Reference string       `json:"reference"`
	Status    string       `json:"status"`
	Amount    ledger.Money `json:"amount"`
	Currency  string       `json:"currency"`
}

// Successful reports whether the gateway settled the charge.
func (c GatewayConfirmation) Successful() bool {
	switch strings.ToLower(strings.TrimSpace(c.Status)) {
	case "success", "successful", "completed":
		return true
	}
	return false
}

// Pending reports whether the customer may still complete the charge.
func (c GatewayConfirmation) Pending() bool {
	switch strings.ToLower(strings.TrimSpace(c.Status)) {
	case "pending", "ongoing", "processing", "queued", "abandoned":
		return true
	}
	return false
}
