/**
 * @description
 * HTTP handlers for the contribution-service. Handlers parse requests, resolve the
 * authenticated subscriber, call the application service, and map domain errors to
 * status codes.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameters.
 * - internal/app, internal/domain, internal/store, internal/ledger, internal/policy.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dewbox/contribution-service/internal/app"
	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/policy"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader lets clients retry a WALLET contribution without double charging.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

// Handler holds the application service that handlers will use.
type Handler struct {
	service       *app.Service
	logger        *slog.Logger
	webhookSecret string
}

// NewHandler creates a new Handler. webhookSecret is the Paystack secret key used to
// verify webhook signatures.
func NewHandler(service *app.Service, logger *slog.Logger, webhookSecret string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, webhookSecret: webhookSecret}
}

type contributeRequest struct {
	Amount        int64                `json:"amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	OverrideMode  *domain.OverrideMode `json:"override_mode,omitempty"`
}

type updateSettingsRequest struct {
	OverrideMode domain.OverrideMode `json:"override_mode"`
}

type applyInterestRequest struct {
	Rate json.Number `json:"rate"`
	Year int         `json:"year"`
}

type applyInterestResponse struct {
	Year    int                     `json:"year"`
	Rate    string                  `json:"rate"`
	Credits []domain.InterestCredit `json:"credits"`
}

type historyResponse struct {
	Contributions []domain.Contribution `json:"contributions"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// subscriberID resolves the token subject to the internal subscriber id, writing the error
// response itself when that fails.
func (h *Handler) subscriberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subject, ok := AuthSubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}

	id, err := h.service.ResolveSubscriberID(r.Context(), subject)
	if err != nil {
		if errors.Is(err, store.ErrSubscriberNotFound) {
			writeError(w, http.StatusNotFound, "Subscriber not found")
			return uuid.Nil, false
		}
		h.logger.Error("failed to resolve subscriber", "auth_subject", subject, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleContribute(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.subscriberID(w, r)
	if !ok {
		return
	}

	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	method, err := domain.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidPaymentMethod.Error())
		return
	}
	amount := ledger.Money(req.Amount)

	if method == domain.PaymentGateway {
		init, err := h.service.InitializeGatewayContribution(r.Context(), subscriberID, amount)
		if err != nil {
			h.respondWithServiceError(w, "initialize_gateway", err)
			return
		}
		respondWithJSON(w, http.StatusAccepted, init)
		return
	}

	var reference string
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		if len(key) > maxIdempotencyKeyLength {
			writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}
		reference = "wallet:" + subscriberID.String() + ":" + key
	}

	result, err := h.service.Contribute(r.Context(), domain.ContributeInput{
		SubscriberID:      subscriberID,
		Amount:            amount,
		PaymentMethod:     method,
		ExternalReference: reference,
		OverrideMode:      req.OverrideMode,
	})
	if err != nil {
		h.respondWithServiceError(w, "contribute", err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	respondWithJSON(w, status, result)
}

func (h *Handler) handleVerifyGatewayContribution(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.subscriberID(w, r)
	if !ok {
		return
	}

	reference := chi.URLParam(r, "reference")
	result, err := h.service.VerifyGatewayContribution(r.Context(), subscriberID, reference)
	if err != nil {
		h.respondWithServiceError(w, "verify_gateway", err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListContributions(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.subscriberID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := domain.ContributionListOptions{}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = offset
	}
	if raw := query.Get("type"); raw != "" {
		ctype, err := domain.ParseContributionType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Type = &ctype
	}

	contributions, err := h.service.ListContributions(r.Context(), subscriberID, opts)
	if err != nil {
		h.respondWithServiceError(w, "list_contributions", err)
		return
	}
	if contributions == nil {
		contributions = []domain.Contribution{}
	}
	respondWithJSON(w, http.StatusOK, historyResponse{Contributions: contributions, Limit: opts.Limit, Offset: opts.Offset})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.subscriberID(w, r)
	if !ok {
		return
	}

	settings, err := h.service.GetSettings(r.Context(), subscriberID)
	if err != nil {
		h.respondWithServiceError(w, "get_settings", err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.subscriberID(w, r)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	mode, err := domain.ParseOverrideMode(string(req.OverrideMode))
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidOverrideMode.Error())
		return
	}

	settings, err := h.service.UpdateOverrideMode(r.Context(), subscriberID, mode)
	if err != nil {
		h.respondWithServiceError(w, "update_settings", err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := h.subscriberID(w, r)
	if !ok {
		return
	}

	balances, err := h.service.GetBalances(r.Context(), subscriberID)
	if err != nil {
		h.respondWithServiceError(w, "get_balances", err)
		return
	}
	respondWithJSON(w, http.StatusOK, balances)
}

func (h *Handler) handleApplyInterest(w http.ResponseWriter, r *http.Request) {
	var req applyInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rate, err := ledger.ParsePercentage(req.Rate.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, app.ErrInvalidInterestRate.Error())
		return
	}

	credits, err := h.service.ApplyYearlyInterest(r.Context(), rate, req.Year)
	if err != nil {
		h.respondWithServiceError(w, "apply_interest", err)
		return
	}

	year := req.Year
	if year == 0 {
		year = h.service.Today().Year()
	}
	respondWithJSON(w, http.StatusOK, applyInterestResponse{Year: year, Rate: rate.String(), Credits: credits})
}

func (h *Handler) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.AdminSummary(r.Context())
	if err != nil {
		h.respondWithServiceError(w, "admin_summary", err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// respondWithServiceError maps service errors to HTTP responses.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, endpoint string, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "endpoint", endpoint, "error", err)
	} else {
		h.logger.Warn("request rejected", "endpoint", endpoint, "status", status, "error", err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, message)
}

func statusForError(err error) (int, string) {
	var insufficient *ledger.InsufficientFundsError
	var mismatch *app.GatewayConfirmationMismatchError

	switch {
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, "Insufficient funds in main balance"
	case errors.Is(err, store.ErrSubscriberNotFound):
		return http.StatusNotFound, "Subscriber not found"
	case errors.Is(err, store.ErrGatewayChargeNotFound), errors.Is(err, app.ErrGatewayChargeNotYours):
		return http.StatusNotFound, "Gateway charge not found"
	case errors.Is(err, store.ErrContributionNotFound):
		return http.StatusNotFound, "Contribution not found"
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidPaymentMethod),
		errors.Is(err, app.ErrInvalidOverrideMode),
		errors.Is(err, app.ErrMissingReference),
		errors.Is(err, app.ErrInvalidInterestRate),
		errors.Is(err, app.ErrInvalidInterestYear),
		errors.Is(err, ledger.ErrAmountOverflow):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &mismatch):
		return http.StatusConflict, "Gateway payment does not match the charge and is under review"
	case errors.Is(err, app.ErrGatewayPaymentPending):
		return http.StatusAccepted, app.ErrGatewayPaymentPending.Error()
	case errors.Is(err, app.ErrGatewayPaymentFailed):
		return http.StatusPaymentRequired, app.ErrGatewayPaymentFailed.Error()
	case errors.Is(err, app.ErrContentionExhausted):
		return http.StatusServiceUnavailable, app.ErrContentionExhausted.Error()
	case errors.Is(err, app.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, app.ErrGatewayUnavailable.Error()
	case errors.Is(err, policy.ErrClassificationInput):
		return http.StatusInternalServerError, "Contribution could not be classified"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}
