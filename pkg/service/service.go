// Package service exposes the claim authority over HTTP: claim
// submission, root and claimed-status reads, and a health probe.
package service

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/merkledrop-labs/merkledrop-go/pkg/authority"
	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
)

// Service handles HTTP requests for the claim gate
type Service struct {
	authority  *authority.ClaimAuthority
	store      claimstore.IClaimStore
	logger     *zap.Logger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// Config configures the HTTP claim gate.
type Config struct {
	Port int
	// ClaimsPerSecond caps claim submissions; 0 disables limiting.
	ClaimsPerSecond float64
	// ClaimBurst is the limiter burst size; defaults to 10 when limiting
	// is enabled.
	ClaimBurst int
}

// NewService creates a new service instance
func NewService(auth *authority.ClaimAuthority, store claimstore.IClaimStore, logger *zap.Logger, cfg Config) (*Service, error) {
	if auth == nil {
		return nil, fmt.Errorf("authority cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		authority: auth,
		store:     store,
		logger:    logger,
	}

	if cfg.ClaimsPerSecond > 0 {
		burst := cfg.ClaimBurst
		if burst <= 0 {
			burst = 10
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ClaimsPerSecond), burst)
	}

	mux := http.NewServeMux()

	// Claim submission
	mux.HandleFunc("/claim", s.handleClaim)

	// Read endpoints for claimers and tooling
	mux.HandleFunc("/root", s.handleRoot)
	mux.HandleFunc("/claimed/", s.handleClaimed)

	// Health probe
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Service) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Service) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Service) GetHandler() http.Handler {
	return s.httpServer.Handler
}
