package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/pkg/config"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
	"github.com/collegeportal/portal-api/pkg/jobs"
)

type fakeNotificationRepo struct {
	inserted  []models.Notification
	insertErr error
	listed    []models.Notification
	readOK    bool
	readCount int64
}

func (f *fakeNotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	n.ID = int64(len(f.inserted) + 1)
	n.CreatedAt = time.Now()
	f.inserted = append(f.inserted, *n)
	return nil
}

func (f *fakeNotificationRepo) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	return f.listed, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, notificationID, userID int64) (bool, error) {
	return f.readOK, nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return f.readCount, nil
}

type publishedEvent struct {
	userID  int64
	payload interface{}
}

type fakeHub struct {
	published []publishedEvent
}

func (f *fakeHub) Publish(userID int64, payload interface{}) {
	f.published = append(f.published, publishedEvent{userID: userID, payload: payload})
}

func notificationTestConfig() config.NotificationsConfig {
	return config.NotificationsConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	}
}

func TestDispatchStoresBeforePublishing(t *testing.T) {
	repo := &fakeNotificationRepo{}
	hub := &fakeHub{}
	svc := NewNotificationService(repo, hub, notificationTestConfig(), nil)

	relatedID := int64(12)
	n, err := svc.Dispatch(context.Background(), 7, models.NotificationNewCircular, "New circular: Holiday notice", &relatedID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.ID)

	require.Len(t, repo.inserted, 1)
	require.Len(t, hub.published, 1)
	assert.Equal(t, int64(7), hub.published[0].userID)
	assert.Same(t, n, hub.published[0].payload)
}

func TestDispatchStoreFailureSkipsPublish(t *testing.T) {
	repo := &fakeNotificationRepo{insertErr: assert.AnError}
	hub := &fakeHub{}
	svc := NewNotificationService(repo, hub, notificationTestConfig(), nil)

	_, err := svc.Dispatch(context.Background(), 7, models.NotificationNewNote, "New notes for CS101", nil)
	require.Error(t, err)
	assert.Empty(t, hub.published)
}

func TestFanOutDeliversToEveryRecipient(t *testing.T) {
	repo := &fakeNotificationRepo{}
	hub := &fakeHub{}
	svc := NewNotificationService(repo, hub, notificationTestConfig(), nil)

	err := svc.handleFanOut(context.Background(), jobs.Job{
		ID:   "job-1",
		Type: string(models.NotificationTimetableUpdate),
		Payload: fanOutPayload{
			UserIDs: []int64{10, 20, 30},
			Type:    models.NotificationTimetableUpdate,
			Message: "Timetable updated for CS semester 3",
		},
	})
	require.NoError(t, err)
	assert.Len(t, repo.inserted, 3)
	assert.Len(t, hub.published, 3)
}

func TestFanOutKeepsGoingPastFailures(t *testing.T) {
	// All inserts fail; the handler still finishes without surfacing an
	// error, so the job is not retried forever.
	repo := &fakeNotificationRepo{insertErr: assert.AnError}
	svc := NewNotificationService(repo, &fakeHub{}, notificationTestConfig(), nil)

	err := svc.handleFanOut(context.Background(), jobs.Job{
		ID:      "job-2",
		Type:    string(models.NotificationNewCircular),
		Payload: fanOutPayload{UserIDs: []int64{10, 20}, Type: models.NotificationNewCircular, Message: "x"},
	})
	require.NoError(t, err)
}

func TestMarkReadNotFound(t *testing.T) {
	svc := NewNotificationService(&fakeNotificationRepo{readOK: false}, &fakeHub{}, notificationTestConfig(), nil)

	err := svc.MarkRead(context.Background(), 55, 7)
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestListNeverReturnsNil(t *testing.T) {
	svc := NewNotificationService(&fakeNotificationRepo{}, &fakeHub{}, notificationTestConfig(), nil)

	list, err := svc.List(context.Background(), 7, false)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
