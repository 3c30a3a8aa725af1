package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
	"github.com/Matthias0x44/RyUnfair/pkg/metrics"

	"github.com/google/uuid"
)

// FlightScheduler schedules the notifications held back until a user verified
type FlightScheduler interface {
	ScheduleForUser(ctx context.Context, userID string) error
}

// AccountService handles subscriber registration, verification and opt-out
type AccountService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	scheduler     FlightScheduler
	metrics       *metrics.Metrics
	logger        logger.Logger
	now           func() time.Time
}

// NewAccountService creates a new account service. scheduler may be nil.
func NewAccountService(
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	scheduler FlightScheduler,
	m *metrics.Metrics,
	logger logger.Logger,
) *AccountService {
	return &AccountService{
		users:         users,
		notifications: notifications,
		scheduler:     scheduler,
		metrics:       m,
		logger:        logger.With("component", "account"),
		now:           time.Now,
	}
}

// RegisterUser creates a subscriber and schedules their verification notice
func (s *AccountService) RegisterUser(ctx context.Context, email string) (*entity.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return nil, fmt.Errorf("%w: email %q", entity.ErrInvalidInput, email)
	}

	user := &entity.User{
		ID:                uuid.NewString(),
		Email:             strings.ToLower(addr.Address),
		VerificationToken: uuid.NewString(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	n := &entity.Notification{
		UserID:       user.ID,
		Kind:         entity.KindVerification,
		ScheduledFor: s.now().UTC(),
		Status:       entity.NotificationPending,
		DedupeKey:    entity.DedupeKeyFor(user.ID, "", entity.KindVerification),
	}
	switch err := s.notifications.Create(ctx, n); {
	case err == nil:
		s.metrics.NotificationsScheduled.WithLabelValues(string(entity.KindVerification)).Inc()
	case errors.Is(err, entity.ErrDuplicateSchedule):
	default:
		s.metrics.ErrorsCount.WithLabelValues("schedule_notification").Inc()
		return user, fmt.Errorf("schedule verification for %s: %w", user.ID, err)
	}

	s.logger.Info("User registered", "userID", user.ID)
	return user, nil
}

// VerifyEmail confirms the address holding token and schedules the
// notifications of flights that completed before verification. Repeating it
// is harmless and repairs a schedule an earlier attempt left incomplete.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*entity.User, error) {
	user, err := s.users.FindByVerificationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		now := s.now().UTC()
		if err := s.users.MarkVerified(ctx, user.ID, now); err != nil {
			return nil, fmt.Errorf("mark verified %s: %w", user.ID, err)
		}
		user.EmailVerified = true
		user.VerifiedAt = &now
		s.logger.Info("Email verified", "userID", user.ID)
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleForUser(ctx, user.ID); err != nil {
			s.metrics.ErrorsCount.WithLabelValues("schedule_notification").Inc()
			return user, fmt.Errorf("schedule held notifications for %s: %w", user.ID, err)
		}
	}
	return user, nil
}

// Unsubscribe opts the user out and cancels everything still pending for them.
// It returns the number of cancelled notifications.
func (s *AccountService) Unsubscribe(ctx context.Context, userID string) (int64, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return 0, err
	}
	now := s.now().UTC()
	if err := s.users.MarkUnsubscribed(ctx, userID, now); err != nil {
		return 0, fmt.Errorf("mark unsubscribed %s: %w", userID, err)
	}
	return s.cancelPending(ctx, userID, now)
}

// UnsubscribeByToken is Unsubscribe for the user holding token, used by email links
func (s *AccountService) UnsubscribeByToken(ctx context.Context, token string) (int64, error) {
	user, err := s.users.FindByVerificationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return 0, err
	}
	return s.Unsubscribe(ctx, user.ID)
}

// EraseUser cancels pending notifications, then scrubs and soft-deletes the
// user. Sent notifications are kept as the delivery record.
func (s *AccountService) EraseUser(ctx context.Context, userID string) (int64, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return 0, err
	}
	now := s.now().UTC()
	cancelled, err := s.cancelPending(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if err := s.users.Erase(ctx, userID, now); err != nil {
		return cancelled, fmt.Errorf("erase user %s: %w", userID, err)
	}
	s.logger.Info("User erased", "userID", userID, "cancelled", cancelled)
	return cancelled, nil
}

func (s *AccountService) cancelPending(ctx context.Context, userID string, now time.Time) (int64, error) {
	cancelled, err := s.notifications.CancelPendingByUser(ctx, userID, now)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("cancel_notifications").Inc()
		return 0, fmt.Errorf("cancel notifications for %s: %w", userID, err)
	}
	s.logger.Info("Pending notifications cancelled", "userID", userID, "count", cancelled)
	return cancelled, nil
}
