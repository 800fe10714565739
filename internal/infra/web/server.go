// File: internal/infra/web/server.go
package web

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"loyalty-redemption-core/internal/infra/logging"
	"loyalty-redemption-core/internal/infra/realtime"
	red "loyalty-redemption-core/internal/infra/redis"
	"loyalty-redemption-core/internal/usecase"
)

type ctxKey string

const (
	ctxMember ctxKey = "member_claims"
	ctxStaff  ctxKey = "staff_claims"
)

// Server exposes the member-facing and staff-facing HTTP surface plus
// the websocket endpoint for the real-time channel.
type Server struct {
	redemptionUC *usecase.RedemptionUseCase
	verifierUC   *usecase.VerifierUseCase
	ledgerUC     *usecase.LedgerUseCase
	catalogUC    *usecase.CatalogUseCase
	hub          *realtime.Hub
	auth         *AuthManager
	limiter      *red.RateLimiter
	redeemLimit  int
	log          *zerolog.Logger
}

func NewServer(
	redemptionUC *usecase.RedemptionUseCase,
	verifierUC *usecase.VerifierUseCase,
	ledgerUC *usecase.LedgerUseCase,
	catalogUC *usecase.CatalogUseCase,
	hub *realtime.Hub,
	auth *AuthManager,
	limiter *red.RateLimiter,
	redeemLimit int,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		redemptionUC: redemptionUC,
		verifierUC:   verifierUC,
		ledgerUC:     ledgerUC,
		catalogUC:    catalogUC,
		hub:          hub,
		auth:         auth,
		limiter:      limiter,
		redeemLimit:  redeemLimit,
		log:          &l,
	}
}

// Router assembles the route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.traceID, s.requestLog, s.recoverPanic)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.memberAuth)
			r.Get("/entitlements", s.handleListEntitlements)
			r.Get("/members/me", s.handleMe)
			r.Get("/members/me/redemptions", s.handleRedemptionHistory)
			r.With(s.redeemRateLimit).Post("/redemptions", s.handleRedeem)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.staffAuth)
			r.Post("/tokens/consume", s.handleConsume)
		})
	})

	r.Get("/ws", s.handleWS)
	return r
}

// ===== Middleware =====

func (s *Server) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logging.With(r.Context(), s.log)
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack delegates to the underlying writer so the websocket upgrade
// still works through the logging middleware.
func (w *respWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.With(r.Context(), s.log).Error().Interface("panic", rec).Msg("panic recovered")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// memberAuth binds verified member claims into the request context.
func (s *Server) memberAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
		claims, err := s.auth.VerifyMember(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "member credential required")
			return
		}
		ctx := context.WithValue(r.Context(), ctxMember, claims)
		ctx = logging.WithMemberID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) staffAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"), "")
		claims, err := s.auth.VerifyStaff(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "staff credential required")
			return
		}
		ctx := context.WithValue(r.Context(), ctxStaff, claims)
		ctx = logging.WithOutletID(ctx, claims.OutletID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// redeemRateLimit throttles redemption requests per member. A limiter
// outage must not take redemptions down with it, so errors fail open.
func (s *Server) redeemRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			claims := r.Context().Value(ctxMember).(*MemberClaims)
			ok, err := s.limiter.Allow(r.Context(), red.MemberRedeemKey(claims.Subject), s.redeemLimit, time.Minute)
			if err == nil && !ok {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many redemption requests")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleWS authenticates the connection, then hands it to the hub. The
// connection is bound to the member only after the credential verifies;
// anything else is torn down before the upgrade.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
	claims, err := s.auth.VerifyMember(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "member credential required")
		return
	}
	realtime.ServeWS(s.hub, w, r, claims.Subject, s.log)
}
