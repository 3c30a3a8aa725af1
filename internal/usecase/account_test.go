package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountFixture(t *testing.T) (*AccountService, *memUsers, *memNotifications) {
	t.Helper()
	users := newMemUsers()
	notifications := newMemNotifications()
	svc := NewAccountService(users, notifications, nil, newTestMetrics(), logger.NewNop())
	svc.now = fixedClock(baseTime)
	return svc, users, notifications
}

func TestRegisterUser_SchedulesVerification(t *testing.T) {
	svc, users, notifications := newAccountFixture(t)

	user, err := svc.RegisterUser(context.Background(), "  Pax@Example.com ")
	require.NoError(t, err)

	assert.Equal(t, "pax@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, user.VerificationToken)
	assert.False(t, users.get(user.ID).EmailVerified)

	records := notifications.byKind(entity.KindVerification)
	require.Len(t, records, 1)
	assert.Equal(t, user.ID, records[0].UserID)
	assert.Nil(t, records[0].FlightID)
	assert.Equal(t, baseTime, records[0].ScheduledFor)
	assert.Equal(t, entity.NotificationPending, records[0].Status)
}

func TestRegisterUser_Rejects(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	for _, email := range []string{"", "not-an-email", "Pax <pax@example.com>"} {
		_, err := svc.RegisterUser(ctx, email)
		assert.ErrorIs(t, err, entity.ErrInvalidInput, email)
	}

	_, err := svc.RegisterUser(ctx, "pax@example.com")
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, "PAX@example.com")
	assert.ErrorIs(t, err, entity.ErrDuplicateUser)
}

func TestVerifyEmail(t *testing.T) {
	svc, users, _ := newAccountFixture(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "pax@example.com")
	require.NoError(t, err)

	verified, err := svc.VerifyEmail(ctx, user.VerificationToken)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	require.NotNil(t, users.get(user.ID).VerifiedAt)

	svc.now = fixedClock(baseTime.Add(time.Hour))
	again, err := svc.VerifyEmail(ctx, user.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, baseTime, *again.VerifiedAt)

	_, err = svc.VerifyEmail(ctx, "wrong")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func seedUserWithSchedule(t *testing.T, users *memUsers, notifications *memNotifications) (sentID, pendingID string) {
	t.Helper()
	require.NoError(t, users.Create(context.Background(), &entity.User{
		ID: "u1", Email: "pax@example.com", EmailVerified: true, VerificationToken: "tok-u1",
	}))
	flightID := "f1"
	var ids []string
	for _, kind := range []entity.NotificationKind{entity.KindEligibilityResult, entity.KindFollowupFirst, entity.KindFollowupFinal} {
		n := &entity.Notification{
			UserID:       "u1",
			FlightID:     &flightID,
			Kind:         kind,
			ScheduledFor: baseTime,
			DedupeKey:    entity.DedupeKeyFor("u1", flightID, kind),
		}
		require.NoError(t, notifications.Create(context.Background(), n))
		ids = append(ids, n.ID)
	}
	claimed, err := notifications.Claim(context.Background(), ids[0], baseTime)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, notifications.MarkSent(context.Background(), ids[0], "msg-1", baseTime))
	return ids[0], ids[1]
}

func TestUnsubscribe_CancelsPendingOnly(t *testing.T) {
	svc, users, notifications := newAccountFixture(t)
	sentID, pendingID := seedUserWithSchedule(t, users, notifications)

	cancelled, err := svc.Unsubscribe(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), cancelled)
	assert.Equal(t, entity.NotificationSent, notifications.status(sentID))
	assert.Equal(t, entity.NotificationCancelled, notifications.status(pendingID))
	assert.NotNil(t, users.get("u1").UnsubscribedAt)
}

func TestUnsubscribeByToken(t *testing.T) {
	svc, users, notifications := newAccountFixture(t)
	_, pendingID := seedUserWithSchedule(t, users, notifications)

	cancelled, err := svc.UnsubscribeByToken(context.Background(), "tok-u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)
	assert.Equal(t, entity.NotificationCancelled, notifications.status(pendingID))

	_, err = svc.UnsubscribeByToken(context.Background(), "")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEraseUser(t *testing.T) {
	svc, users, notifications := newAccountFixture(t)
	sentID, pendingID := seedUserWithSchedule(t, users, notifications)

	cancelled, err := svc.EraseUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)

	erased := users.get("u1")
	assert.NotNil(t, erased.DeletedAt)
	assert.NotEqual(t, "pax@example.com", erased.Email)
	assert.Equal(t, entity.NotificationSent, notifications.status(sentID))
	assert.Equal(t, entity.NotificationCancelled, notifications.status(pendingID))

	_, err = svc.EraseUser(context.Background(), "u1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

type recordingScheduler struct {
	users []string
	err   error
}

func (s *recordingScheduler) ScheduleForUser(ctx context.Context, userID string) error {
	s.users = append(s.users, userID)
	return s.err
}

func TestVerifyEmail_ReleasesHeldSchedule(t *testing.T) {
	svc, users, _ := newAccountFixture(t)
	ctx := context.Background()
	scheduler := &recordingScheduler{}
	svc.scheduler = scheduler

	user, err := svc.RegisterUser(ctx, "pax@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyEmail(ctx, user.VerificationToken)
	require.NoError(t, err)
	_, err = svc.VerifyEmail(ctx, user.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID, user.ID}, scheduler.users)

	scheduler.err = errStorageDown
	verified, err := svc.VerifyEmail(ctx, user.VerificationToken)
	assert.ErrorIs(t, err, errStorageDown)
	require.NotNil(t, verified)
	assert.True(t, verified.EmailVerified)
	assert.True(t, users.get(user.ID).EmailVerified)
}
