// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"loyalty-redemption-core/internal/domain"
	"loyalty-redemption-core/internal/domain/model"
)

// ===== DTOs =====

type redeemRequest struct {
	EntitlementID string `json:"entitlement_id"`
}

type redeemResponse struct {
	TokenID   string    `json:"token_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type consumeRequest struct {
	Code string `json:"code"`
	// OutletID may override the terminal's default outlet, e.g. a
	// roaming partner device.
	OutletID string `json:"outlet_id,omitempty"`
}

type memberSummaryDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

type entitlementSummaryDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	CashValue int64  `json:"cash_value"`
}

type consumeResponse struct {
	Member      memberSummaryDTO      `json:"member"`
	Entitlement entitlementSummaryDTO `json:"entitlement"`
	ConsumedAt  time.Time             `json:"consumed_at"`
}

type meResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Class   string `json:"class"`
	Balance int64  `json:"balance"`
}

type entitlementDTO struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Kind       string     `json:"kind"`
	PointsCost int64      `json:"points_cost"`
	CashValue  int64      `json:"cash_value"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	ValidDays  int        `json:"valid_days,omitempty"`
}

type redemptionHistoryEntry struct {
	EntitlementID string    `json:"entitlement_id"`
	TokenID       string    `json:"token_id"`
	OutletID      string    `json:"outlet_id"`
	CashValue     int64     `json:"cash_value"`
	PointsSpent   int64     `json:"points_spent"`
	RedeemedAt    time.Time `json:"redeemed_at"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ===== Handlers =====

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ctxMember).(*MemberClaims)

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntitlementID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "entitlement_id is required")
		return
	}

	tok, err := s.redemptionUC.Request(r.Context(), claims.Subject, req.EntitlementID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, redeemResponse{
		TokenID:   tok.ID,
		Code:      tok.Code,
		ExpiresAt: tok.ExpiresAt,
	})
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ctxStaff).(*StaffClaims)

	var req consumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "code is required")
		return
	}
	outletID := claims.OutletID
	if req.OutletID != "" {
		outletID = req.OutletID
	}

	res, err := s.verifierUC.Consume(r.Context(), req.Code, claims.Subject, outletID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, consumeResponse{
		Member: memberSummaryDTO{
			ID:    res.Member.ID,
			Name:  res.Member.Name,
			Class: string(res.Member.Class),
		},
		Entitlement: entitlementSummaryDTO{
			ID:        res.Entitlement.ID,
			Title:     res.Entitlement.Title,
			Kind:      string(res.Entitlement.Kind),
			CashValue: res.Entitlement.CashValue,
		},
		ConsumedAt: *res.Token.ConsumedAt,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ctxMember).(*MemberClaims)

	m, err := s.ledgerUC.Member(r.Context(), claims.Subject)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:      m.ID,
		Name:    m.Name,
		Class:   string(m.Class),
		Balance: m.Balance,
	})
}

func (s *Server) handleRedemptionHistory(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ctxMember).(*MemberClaims)

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.redemptionUC.History(r.Context(), claims.Subject, offset, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]redemptionHistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, redemptionHistoryEntry{
			EntitlementID: rec.EntitlementID,
			TokenID:       rec.TokenID,
			OutletID:      rec.OutletID,
			CashValue:     rec.CashValue,
			PointsSpent:   rec.PointsSpent,
			RedeemedAt:    rec.RedeemedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListEntitlements(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(ctxMember).(*MemberClaims)

	list, err := s.catalogUC.ListRedeemable(r.Context(), model.MemberClass(claims.Class))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]entitlementDTO, 0, len(list))
	for _, e := range list {
		out = append(out, entitlementDTO{
			ID:         e.ID,
			Title:      e.Title,
			Kind:       string(e.Kind),
			PointsCost: e.PointsCost,
			CashValue:  e.CashValue,
			ValidUntil: e.ValidUntil,
			ValidDays:  e.ValidDays,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== Error mapping =====

// writeDomainError translates domain sentinels into typed client
// responses. Business ineligibility keeps its distinct code; only
// storage and transport faults collapse into a generic retryable 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request")
	case errors.Is(err, domain.ErrEntitlementUnavailable):
		writeError(w, http.StatusConflict, "entitlement_unavailable", "offer is not available to you right now")
	case errors.Is(err, domain.ErrQuotaExceededGlobal):
		writeError(w, http.StatusConflict, "quota_exceeded_global", "offer is fully redeemed")
	case errors.Is(err, domain.ErrQuotaExceededLifetime):
		writeError(w, http.StatusConflict, "quota_exceeded_lifetime", "you have already redeemed this offer")
	case errors.Is(err, domain.ErrQuotaExceededDaily):
		writeError(w, http.StatusConflict, "quota_exceeded_daily", "already redeemed today")
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", "not enough points")
	case errors.Is(err, domain.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", "invalid code")
	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusGone, "token_expired", "code has expired")
	case errors.Is(err, domain.ErrTokenAlreadyConsumed):
		writeError(w, http.StatusConflict, "token_already_consumed", "code was already redeemed")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "conflict", "lost a race, please retry")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong, try again")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
