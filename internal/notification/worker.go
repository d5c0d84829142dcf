// Package notification surfaces check-ins made at other stations: on the
// operator board and, when enabled, as web push alerts.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"seat-checkin-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is what the operator page's service worker receives.
type pushPayload struct {
	Title        string             `json:"title"`
	Body         string             `json:"body"`
	Notification model.Notification `json:"notification"`
}

// WorkerPool manages a pool of workers for sending push alerts.
type WorkerPool struct {
	size    int
	jobs    chan model.Notification
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Notification, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Push worker %d started", id)
	for {
		select {
		case n := <-wp.jobs:
			wp.sendNotificationsFor(ctx, n)
		case <-ctx.Done():
			log.Printf("Push worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues n without blocking. It reports false when the queue is full
// and the alert was dropped.
func (wp *WorkerPool) Dispatch(n model.Notification) bool {
	select {
	case wp.jobs <- n:
		return true
	default:
		log.Printf("Push queue full, dropping alert for attendee %s", n.AttendeeID)
		return false
	}
}

// sendNotificationsFor pushes n to every subscription of its group and to
// subscriptions without a group.
func (wp *WorkerPool) sendNotificationsFor(ctx context.Context, n model.Notification) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("group_label = '' OR group_label = ?", n.GroupLabel).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for group %q: %v", n.GroupLabel, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{
		Title:        "Check-in",
		Body:         alertBody(n),
		Notification: n,
	})
	if err != nil {
		log.Printf("Error encoding alert for attendee %s: %v", n.AttendeeID, err)
		return
	}

	log.Printf("Sending %d push alerts for attendee %s", len(subscriptions), n.AttendeeID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func alertBody(n model.Notification) string {
	name := n.DisplayName
	if name == "" {
		name = n.CredentialCode
	}
	if n.SeatID == "" {
		return fmt.Sprintf("%s checked in", name)
	}
	return fmt.Sprintf("%s checked in, seat %s", name, n.SeatID)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
