// Package webhook exposes the HTTP listener the payment processor delivers
// events to.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/arrears/internal/gateway"
	"github.com/felixgeelhaar/arrears/internal/reconciler"
	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/felixgeelhaar/arrears/pkg/observability"
)

const (
	signatureHeader = "X-Gateway-Signature"
	maxPayloadBytes = 1 << 20
)

// Server receives, verifies, and applies processor webhook deliveries.
type Server struct {
	reconciler *reconciler.Reconciler
	secret     string
	health     *observability.HealthRegistry
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a webhook server bound to addr.
func NewServer(addr string, rec *reconciler.Reconciler, secret string, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		reconciler: rec,
		secret:     secret,
		health:     health,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/gateway", s.handleEvent)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// ListenAndServe blocks serving webhook deliveries until the server closes.
func (s *Server) ListenAndServe() error {
	s.logger.Info("webhook listener started", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight deliveries and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleEvent verifies the signature, parses the event, and hands it to the
// reconciler. A version conflict comes back as 409 so the processor
// redelivers; the retry will apply cleanly because every mutation is
// idempotent.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := gateway.VerifySignature(payload, r.Header.Get(signatureHeader), s.secret); err != nil {
		s.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		s.logger.Warn("webhook payload rejected", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.reconciler.Apply(r.Context(), event); err != nil {
		if errors.Is(err, sharedDomain.ErrVersionConflict) {
			s.logger.Info("webhook lost a concurrent update, requesting redelivery",
				"event_id", event.ID,
			)
			http.Error(w, "conflict, retry", http.StatusConflict)
			return
		}
		s.logger.Error("webhook apply failed", "event_id", event.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.health.RunChecks(r.Context())
	body, err := observability.MarshalResults(results)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if observability.OverallStatus(results) == observability.HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(body)
}
