package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pushnotif "habitSocialAPI/internal/notification"
	"habitSocialAPI/internal/types/notification"
)

const (
	defaultDispatchWorkers = 5
	dispatchQueueSize      = 100
	enqueueTimeout         = 2 * time.Second
	deliveryTimeout        = 10 * time.Second
)

// DeliveryStore is what the dispatcher needs from persistent storage.
type DeliveryStore interface {
	DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// NotificationDispatcher delivers queued notifications on a fixed pool of
// workers.
type NotificationDispatcher struct {
	store        DeliveryStore
	pushProvider pushnotif.PushProvider
	workers      int
	jobQueue     chan *notification.Notification
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	log          *zap.Logger
}

func NewNotificationDispatcher(store DeliveryStore, provider pushnotif.PushProvider, workers int, logger *zap.Logger) *NotificationDispatcher {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = pushnotif.LogProvider{Logger: logger}
	}
	d := &NotificationDispatcher{
		store:        store,
		pushProvider: provider,
		workers:      workers,
		jobQueue:     make(chan *notification.Notification, dispatchQueueSize),
		stopChan:     make(chan struct{}),
		log:          logger.Named("dispatcher"),
	}
	d.startWorkers()
	return d
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.jobQueue:
			d.processJob(n)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(n *notification.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	tokens, err := d.store.DeviceTokens(ctx, n.UserID)
	if err != nil {
		d.log.Warn("device lookup failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
		d.markFailed(ctx, n.ID, err)
		return
	}
	if len(tokens) > 0 {
		if err := d.pushProvider.SendPush(ctx, tokens, n.Title, n.Body, n.Data); err != nil {
			d.log.Warn("push failed", zap.String("user_id", n.UserID.String()), zap.Error(err))
			d.markFailed(ctx, n.ID, err)
			return
		}
	}

	if err := d.store.MarkSent(ctx, n.ID); err != nil {
		d.log.Warn("mark sent failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
}

func (d *NotificationDispatcher) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	if err := d.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		d.log.Warn("mark failed failed", zap.String("notification_id", id.String()), zap.Error(err))
	}
}

// Dispatch queues n. It reports false when the queue stays full past the
// enqueue timeout or the dispatcher has stopped.
func (d *NotificationDispatcher) Dispatch(n *notification.Notification) bool {
	select {
	case <-d.stopChan:
		return false
	default:
	}

	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()
	select {
	case d.jobQueue <- n:
		return true
	case <-d.stopChan:
		return false
	case <-timer.C:
		d.log.Warn("notification queue full", zap.String("notification_id", n.ID.String()))
		return false
	}
}

// Stop ends the workers. Queued jobs that were not picked up are dropped.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.log.Info("stopping notification dispatcher")
		close(d.stopChan)
		d.wg.Wait()
	})
}
