/**
 * @description
 * This file defines the Service struct that orchestrates all business logic
 * for the Perch backend: ledger movements, ExtraCash advances, savings goals,
 * bill pay, purchase simulation and linked external accounts. The Service
 * coordinates between the database repository, the Redis rate limiter, the
 * bank-verification client and the message broker.
 *
 * @dependencies
 * - github.com/google/uuid: For UUID handling.
 * - internal/config, internal/store, internal/secure: Application wiring.
 * - pkg/bankclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/perchfin/perch-backend/internal/config"
	"github.com/perchfin/perch-backend/internal/secure"
	"github.com/perchfin/perch-backend/internal/store"
	"github.com/perchfin/perch-backend/pkg/bankclient"
	"github.com/perchfin/perch-backend/pkg/rabbitmq"
)

// Business rule violations surfaced by the service layer. Handlers map these
// to HTTP status codes.
var (
	ErrInvalidAmount        = errors.New("amount must be a positive value")
	ErrInvalidAccountType   = errors.New("account type must be checking or savings")
	ErrSameAccount          = errors.New("source and destination accounts must differ")
	ErrNotEligible          = errors.New("user is not eligible for an advance")
	ErrNoLinkedBank         = errors.New("a verified linked bank account is required")
	ErrAmountOutOfRange     = errors.New("requested amount is outside the approved range")
	ErrInvalidDeliverySpeed = errors.New("delivery speed must be express or standard")
	ErrAdvanceNotRepayable  = errors.New("advance is not in a repayable state")
	ErrGoalNotActive        = errors.New("goal is not active")
	ErrCheckingRequired     = errors.New("a checking account is required")
	ErrInvalidFrequency     = errors.New("unsupported billing frequency")
	ErrInvalidDueDay        = errors.New("due day must be between 1 and 31")
	ErrPINRequired          = errors.New("transaction PIN confirmation is required")
	ErrInvalidPIN           = errors.New("invalid transaction PIN")
	ErrPINLocked            = errors.New("transaction PIN is temporarily locked")
	ErrRateLimited          = errors.New("too many advance requests, try again later")
)

// RateLimiter decides whether a user may make another advance request in the
// current window.
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (allowed bool, retryAfterSeconds int, err error)
}

// BankVerifier abstracts the external bank-verification provider.
type BankVerifier interface {
	VerifyAccount(ctx context.Context, req bankclient.VerificationRequest) (*bankclient.VerificationResponse, error)
}

// Service provides the core business logic for the Perch backend.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	bankVerifier  BankVerifier
	rateLimiter   RateLimiter
	codec         *secure.Codec
	logger        *slog.Logger
	cfg           config.Config

	// now is swappable in tests for deterministic time handling.
	now func() time.Time
}

// NewService creates a new service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:          repo,
		eventProducer: producer,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// WithBankVerifier attaches the external bank-verification client. Without
// one, linked accounts are verified locally.
func (s *Service) WithBankVerifier(v BankVerifier) *Service {
	s.bankVerifier = v
	return s
}

// WithRateLimiter attaches the distributed rate limiter for advance requests.
func (s *Service) WithRateLimiter(l RateLimiter) *Service {
	s.rateLimiter = l
	return s
}

// WithCodec attaches the codec used to encrypt linked-account fields at rest.
func (s *Service) WithCodec(c *secure.Codec) *Service {
	s.codec = c
	return s
}

// publishEvent sends a domain event to the broker. Event delivery is best
// effort and never fails the calling operation.
func (s *Service) publishEvent(ctx context.Context, routingKey string, payload any) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, "perch.events", routingKey, payload); err != nil {
		s.logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}
