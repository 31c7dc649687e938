package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/pkg/config"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/jobs"
)

type notificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

type livePublisher interface {
	Publish(userID int64, payload interface{})
}

type fanOutPayload struct {
	UserIDs   []int64
	Type      models.NotificationType
	Message   string
	RelatedID *int64
}

// NotificationService persists notifications and pushes them to connected
// clients. The row is written first; the live push is best effort, so an
// offline user still finds the notification on next poll.
type NotificationService struct {
	repo    notificationRepository
	hub     livePublisher
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service and its fan-out queue. Call
// Start before dispatching to many users and Stop on shutdown.
func NewNotificationService(repo notificationRepository, hub livePublisher, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, hub: hub, logger: logger}
	s.queue = jobs.NewQueue("notification-fanout", s.handleFanOut, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// WithMetrics attaches dispatch instrumentation.
func (s *NotificationService) WithMetrics(m *MetricsService) *NotificationService {
	s.metrics = m
	return s
}

// Start launches the fan-out workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the fan-out workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch stores one notification and pushes it to the user's live
// connections if any exist.
func (s *NotificationService) Dispatch(ctx context.Context, userID int64, nType models.NotificationType, message string, relatedID *int64) (*models.Notification, error) {
	n := &models.Notification{
		UserID:    userID,
		Type:      nType,
		Message:   message,
		RelatedID: relatedID,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notification")
	}
	s.metrics.RecordNotification(string(nType))
	if s.hub != nil {
		s.hub.Publish(userID, n)
	}
	return n, nil
}

// DispatchToMany fans a notification out to every listed user asynchronously.
// Persisting per recipient happens on the worker pool so a wide audience does
// not hold the originating request.
func (s *NotificationService) DispatchToMany(userIDs []int64, nType models.NotificationType, message string, relatedID *int64) {
	if len(userIDs) == 0 {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: string(nType),
		Payload: fanOutPayload{
			UserIDs:   userIDs,
			Type:      nType,
			Message:   message,
			RelatedID: relatedID,
		},
	})
	if err != nil {
		s.logger.Sugar().Errorw("failed to enqueue notification fan-out", "type", nType, "recipients", len(userIDs), "error", err)
	}
}

func (s *NotificationService) handleFanOut(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(fanOutPayload)
	if !ok {
		s.logger.Sugar().Errorw("unexpected fan-out payload", "job_id", job.ID, "type", job.Type)
		return nil
	}
	var failed int
	for _, userID := range payload.UserIDs {
		if _, err := s.Dispatch(ctx, userID, payload.Type, payload.Message, payload.RelatedID); err != nil {
			failed++
			s.logger.Sugar().Warnw("failed to dispatch notification", "user_id", userID, "type", payload.Type, "error", err)
		}
	}
	if failed > 0 {
		s.logger.Sugar().Warnw("fan-out completed with failures", "job_id", job.ID, "failed", failed, "total", len(payload.UserIDs))
	}
	return nil
}

// List returns the user's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	rows, err := s.repo.ListForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return rows, nil
}

// MarkRead flips one notification; NotFound covers both a missing row and a
// row owned by someone else, so ids cannot be probed.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	ok, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flips every unread notification and reports how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return count, nil
}
