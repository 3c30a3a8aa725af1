package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"
	"github.com/Matthias0x44/RyUnfair/pkg/metrics"

	"golang.org/x/time/rate"
)

// RunLock keeps dispatcher runs from overlapping
type RunLock interface {
	TryAcquire(ctx context.Context) (release func(ctx context.Context) error, acquired bool, err error)
}

// ContextBuilder produces the typed message context of a notification
type ContextBuilder interface {
	Build(ctx context.Context, n *entity.Notification, user *entity.User) (entity.MessageContext, error)
}

// DispatcherConfig tunes one dispatcher run
type DispatcherConfig struct {
	// BatchSize bounds the delivery attempts of one run. Skipped records
	// do not count against it.
	BatchSize       int
	SendTimeout     time.Duration
	ClaimStaleAfter time.Duration
	// SendRatePerSecond of zero disables throttling.
	SendRatePerSecond float64
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSent
	outcomeFailed
	outcomeSkipped
)

type dueNotification struct {
	notification *entity.Notification
	user         *entity.User
}

// Dispatcher sends due notifications exactly once and records their terminal state
type Dispatcher struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	templates     TemplateRouter
	builder       ContextBuilder
	sender        repository.EmailSender
	lock          RunLock
	limiter       *rate.Limiter
	metrics       *metrics.Metrics
	logger        logger.Logger
	cfg           DispatcherConfig
	now           func() time.Time
}

// NewDispatcher creates a new dispatcher. lock may be nil when runs cannot overlap.
func NewDispatcher(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	templates TemplateRouter,
	builder ContextBuilder,
	sender repository.EmailSender,
	lock RunLock,
	m *metrics.Metrics,
	logger logger.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSecond), 1)
	}

	return &Dispatcher{
		notifications: notifications,
		users:         users,
		templates:     templates,
		builder:       builder,
		sender:        sender,
		lock:          lock,
		limiter:       limiter,
		metrics:       m,
		logger:        logger.With("component", "dispatcher"),
		cfg:           cfg,
		now:           time.Now,
	}
}

// RunOnce processes one batch of due notifications. Per-record failures are
// counted in the result; an error is returned only when the run could not
// start or the due records could not be selected.
func (d *Dispatcher) RunOnce(ctx context.Context) (entity.BatchResult, error) {
	var result entity.BatchResult
	start := time.Now()
	defer func() { d.metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()

	if d.lock != nil {
		release, acquired, err := d.lock.TryAcquire(ctx)
		if err != nil {
			return result, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return result, entity.ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				d.logger.Warn("Failed to release run lock", "error", err)
			}
		}()
	}

	now := d.now().UTC()
	if d.cfg.ClaimStaleAfter > 0 {
		stale, err := d.notifications.FailStaleClaims(ctx, now.Add(-d.cfg.ClaimStaleAfter))
		if err != nil {
			d.logger.Warn("Failed to expire stale claims", "error", err)
		} else if stale > 0 {
			d.logger.Warn("Expired stale claims", "count", stale)
		}
	}

	// Pages walk the whole due set in (scheduledFor, id) order, so records
	// that are skipped or may not be sent never hide the ones behind them.
	var (
		after    *entity.DueCursor
		attempts int
	)
	for attempts < d.cfg.BatchSize && ctx.Err() == nil {
		due, next, err := d.nextPage(ctx, now, after)
		if err != nil {
			d.metrics.ErrorsCount.WithLabelValues("select_due").Inc()
			result.Processed = result.Sent + result.Failed + result.Skipped
			return result, fmt.Errorf("%w: %v", entity.ErrSelectionFailure, err)
		}

		for _, item := range due {
			if attempts == d.cfg.BatchSize {
				break
			}
			switch d.dispatchOne(ctx, item) {
			case outcomeSent:
				result.Sent++
				attempts++
			case outcomeFailed:
				result.Failed++
				attempts++
			case outcomeSkipped:
				result.Skipped++
			default:
				attempts++
			}
		}

		if next == nil {
			break
		}
		after = next
	}
	result.Processed = result.Sent + result.Failed + result.Skipped

	if result.Processed > 0 {
		d.logger.Info("Dispatch run finished",
			"processed", result.Processed,
			"sent", result.Sent,
			"failed", result.Failed,
			"skipped", result.Skipped)
	}
	return result, nil
}

// nextPage reads one page of due records after the cursor and keeps those
// whose users may receive them. next is nil once the due set is exhausted.
func (d *Dispatcher) nextPage(ctx context.Context, now time.Time, after *entity.DueCursor) (due []dueNotification, next *entity.DueCursor, err error) {
	limit := d.cfg.BatchSize
	records, err := d.notifications.FindDue(ctx, now, after, limit)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, n := range records {
		if !seen[n.UserID] {
			seen[n.UserID] = true
			ids = append(ids, n.UserID)
		}
	}
	users, err := d.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	due = make([]dueNotification, 0, len(records))
	for _, n := range records {
		if user := users[n.UserID]; user.CanReceive(n.Kind) {
			due = append(due, dueNotification{notification: n, user: user})
		}
	}

	if len(records) == limit {
		next = records[len(records)-1].Cursor()
	}
	return due, next, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, item dueNotification) outcome {
	n := item.notification
	log := d.logger.With("notificationID", n.ID, "kind", n.Kind, "userID", n.UserID)

	tmpl := d.templates.GetTemplate(n.Kind)
	if tmpl == nil {
		log.Warn("No template registered for kind")
		return d.record(outcomeSkipped)
	}

	msg, err := d.builder.Build(ctx, n, item.user)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		log.Warn("Message context rejected", "error", err)
		return d.record(outcomeSkipped)
	}

	subject, html, err := tmpl.Render(msg)
	if err != nil {
		log.Warn("Template render failed", "error", err)
		return d.record(outcomeSkipped)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		log.Warn("Send throttle interrupted", "error", err)
		return d.record(outcomeSkipped)
	}

	claimed, err := d.notifications.Claim(ctx, n.ID, d.now().UTC())
	if err != nil {
		log.Error("Failed to claim notification", "error", err)
		return d.record(outcomeSkipped)
	}
	if !claimed {
		log.Debug("Notification no longer pending")
		return outcomeNone
	}

	// Terminal state is recorded even if the run is being cancelled.
	bookkeeping := context.WithoutCancel(ctx)

	externalID, err := d.send(ctx, entity.OutboundEmail{To: msg.Recipient(), Subject: subject, HTML: html})
	if err != nil {
		log.Error("Delivery failed", "error", err)
		if markErr := d.notifications.MarkFailed(bookkeeping, n.ID, err.Error(), d.now().UTC()); markErr != nil {
			log.Error("Failed to mark notification failed", "error", markErr)
		}
		return d.record(outcomeFailed)
	}

	if err := d.notifications.MarkSent(bookkeeping, n.ID, externalID, d.now().UTC()); err != nil {
		// Delivered; the record stays claimed and is failed as stale later, never resent.
		log.Error("Failed to mark notification sent", "externalID", externalID, "error", err)
	}
	log.Info("Notification sent", "externalID", externalID)
	return d.record(outcomeSent)
}

// send bounds one delivery attempt by SendTimeout even if the provider ignores ctx.
func (d *Dispatcher) send(ctx context.Context, email entity.OutboundEmail) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	type sendResult struct {
		id  string
		err error
	}
	done := make(chan sendResult, 1)
	go func() {
		id, err := d.sender.Send(sendCtx, email)
		done <- sendResult{id: id, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("%w: %v", entity.ErrDeliveryFailure, r.err)
		}
		return r.id, nil
	case <-sendCtx.Done():
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", entity.ErrDeliveryFailure, d.cfg.SendTimeout)
		}
		return "", fmt.Errorf("%w: %v", entity.ErrDeliveryFailure, sendCtx.Err())
	}
}

func (d *Dispatcher) record(o outcome) outcome {
	switch o {
	case outcomeSent:
		d.metrics.DispatchOutcomes.WithLabelValues(metrics.OutcomeSent).Inc()
	case outcomeFailed:
		d.metrics.DispatchOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
	case outcomeSkipped:
		d.metrics.DispatchOutcomes.WithLabelValues(metrics.OutcomeSkipped).Inc()
	}
	return o
}

// Requeue moves a failed notification back to pending so the next run sends it.
// It is never called by the dispatcher itself.
func (d *Dispatcher) Requeue(ctx context.Context, notificationID string) error {
	if err := d.notifications.Requeue(ctx, notificationID, d.now().UTC()); err != nil {
		return err
	}
	d.logger.Info("Notification requeued", "notificationID", notificationID)
	return nil
}
