package newsletter

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrInvalidEmail indicates the address failed validation before any
	// network or database call.
	ErrInvalidEmail = errors.New("newsletter: invalid email address")
	noOpLogger      = zap.NewNop()
)

const (
	opServiceNew = "newsletter.service.new"
	opSubscribe  = "newsletter.subscribe"
)

// Subscription models one newsletter signup. Email uniqueness is enforced by
// the schema; Subscribe is idempotent on top of it.
type Subscription struct {
	SubscriptionID   string `gorm:"column:subscription_id;primaryKey;size:190;not null"`
	Email            string `gorm:"column:email;size:320;not null;uniqueIndex:idx_subscriptions_email"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Subscription) TableName() string {
	return "newsletter_subscriptions"
}

// Result mirrors the subscribe procedure's contract: a duplicate email is a
// non-success, not an error.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// Mailer delivers the welcome message for a fresh subscription.
type Mailer interface {
	SendWelcome(ctx context.Context, email string) error
}

// ServiceConfig describes the dependencies of the newsletter service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Mailer     Mailer
	Logger     *zap.Logger
}

// Service owns newsletter subscriptions.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	mailer     Mailer
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("%s: %w", opServiceNew, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("%s: %w", opServiceNew, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		mailer:     cfg.Mailer,
		logger:     logger,
	}, nil
}

// Subscribe registers the email address. An already-subscribed address
// returns Result{Success: false, Error: "already subscribed"} without an
// error; the welcome mail is only sent for a first-time signup, and a mail
// failure does not roll the subscription back.
func (s *Service) Subscribe(ctx context.Context, rawEmail string) (Result, error) {
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return Result{Success: false, Error: "invalid email"}, err
	}

	var existing Subscription
	lookupErr := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if lookupErr == nil {
		return Result{Success: false, Error: "already subscribed"}, nil
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		s.logger.Error("newsletter subscribe lookup failed",
			zap.String("operation", opSubscribe), zap.Error(lookupErr))
		return Result{}, fmt.Errorf("%s.lookup_failed: %w", opSubscribe, lookupErr)
	}

	subscriptionID, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Error("newsletter id generation failed",
			zap.String("operation", opSubscribe), zap.Error(err))
		return Result{}, fmt.Errorf("%s.id_generation_failed: %w", opSubscribe, err)
	}

	subscription := Subscription{
		SubscriptionID:   subscriptionID,
		Email:            email,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&subscription).Error; err != nil {
		s.logger.Error("newsletter insert failed",
			zap.String("operation", opSubscribe), zap.Error(err))
		return Result{}, fmt.Errorf("%s.insert_failed: %w", opSubscribe, err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, email); err != nil {
			// Subscription stands; the caller surfaces the mail failure.
			s.logger.Warn("welcome mail failed",
				zap.String("operation", opSubscribe),
				zap.String("email", email),
				zap.Error(err))
			return Result{Success: true, Error: "welcome email could not be sent"}, nil
		}
	}

	return Result{Success: true}, nil
}

// Count returns the number of active subscriptions.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Subscription{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%s.count_failed: %w", opSubscribe, err)
	}
	return count, nil
}

func normalizeEmail(rawEmail string) (string, error) {
	trimmed := strings.TrimSpace(rawEmail)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return strings.ToLower(parsed.Address), nil
}
