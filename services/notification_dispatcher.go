package services

import (
	"context"
	"log"
	"sync"
	"time"

	"coveyTownAPI/internal/notification"
)

const (
	defaultDispatchWorkers = 5
	defaultDispatchQueue   = 100
	dispatchJobTimeout     = 10 * time.Second
	defaultEnqueueTimeout  = 5 * time.Second
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// DeviceTokenSource looks up where a user's pushes should go.
type DeviceTokenSource interface {
	GetDeviceTokens(ctx context.Context, userID string) ([]notification.DeviceToken, error)
}

// NotificationDispatcher delivers notifications on a fixed pool of workers.
type NotificationDispatcher struct {
	tokens         DeviceTokenSource
	pushProvider   PushNotificationProvider
	workers        int
	jobQueue       chan *notification.Notification
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	enqueueTimeout time.Duration
}

func NewNotificationDispatcher(tokens DeviceTokenSource, push PushNotificationProvider, workers, queueSize int) *NotificationDispatcher {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultDispatchQueue
	}

	dispatcher := &NotificationDispatcher{
		tokens:         tokens,
		pushProvider:   push,
		workers:        workers,
		jobQueue:       make(chan *notification.Notification, queueSize),
		stopChan:       make(chan struct{}),
		enqueueTimeout: defaultEnqueueTimeout,
	}

	dispatcher.startWorkers()
	return dispatcher
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
		case notif := <-d.jobQueue:
			d.processJob(notif)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(notif *notification.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchJobTimeout)
	defer cancel()

	if d.pushProvider == nil {
		notificationDispatchTotal.WithLabelValues("skipped").Inc()
		return
	}

	tokens, err := d.tokens.GetDeviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Failed to load device tokens for user %s: %v", notif.UserID, err)
		notificationDispatchTotal.WithLabelValues("failed").Inc()
		return
	}
	if len(tokens) == 0 {
		notificationDispatchTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := d.pushProvider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
		log.Printf("Push failed for user %s: %v", notif.UserID, err)
		notificationDispatchTotal.WithLabelValues("failed").Inc()
		return
	}

	notificationDispatchTotal.WithLabelValues("sent").Inc()
}

// Dispatch queues notif for delivery. It gives up when the queue stays full past the
// enqueue timeout or the dispatcher is stopped.
func (d *NotificationDispatcher) Dispatch(notif *notification.Notification) {
	select {
	case <-d.stopChan:
		notificationDispatchTotal.WithLabelValues("dropped").Inc()
		return
	default:
	}

	timer := time.NewTimer(d.enqueueTimeout)
	defer timer.Stop()

	select {
	case d.jobQueue <- notif:
	case <-d.stopChan:
		notificationDispatchTotal.WithLabelValues("dropped").Inc()
	case <-timer.C:
		log.Printf("Failed to queue %s notification for user %s: queue full", notif.Type, notif.UserID)
		notificationDispatchTotal.WithLabelValues("dropped").Inc()
	}
}

// Stop the dispatcher gracefully. Queued jobs that no worker picked up are discarded.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}

// LogPushProvider logs pushes instead of sending them. Used when FCM is not configured.
type LogPushProvider struct{}

func (LogPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	log.Printf("PUSH: Sending to %d devices: %s - %s", len(tokens), title, body)
	return nil
}
