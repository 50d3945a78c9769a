// Package pushnotification delivers alert notifications to the recipient's
// browsers over Web Push.
package pushnotification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/metrics"
	"github.com/kazz187/workguild/internal/pushsubscription"
)

const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliveryExpired = "expired"
	DeliverySkipped = "skipped"
)

type NotificationPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Pusher performs one delivery and returns the push service's status code.
type Pusher interface {
	Push(ctx context.Context, sub *pushsubscription.Subscription, data []byte) (int, error)
}

type webPusher struct {
	vapid *config.VAPIDEnv
}

func (p *webPusher) Push(ctx context.Context, sub *pushsubscription.Subscription, data []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  p.vapid.PublicKey,
		VAPIDPrivateKey: p.vapid.PrivateKey,
		Subscriber:      p.vapid.Contact,
		TTL:             86400,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

type Sender struct {
	vapid   *config.VAPIDEnv
	repo    pushsubscription.Repository
	pusher  Pusher
	metrics *metrics.Metrics
}

type Option func(*Sender)

// WithPusher replaces the Web Push transport.
func WithPusher(p Pusher) Option {
	return func(s *Sender) { s.pusher = p }
}

func NewSender(vapid *config.VAPIDEnv, repo pushsubscription.Repository, m *metrics.Metrics, opts ...Option) *Sender {
	s := &Sender{
		vapid:   vapid,
		repo:    repo,
		pusher:  &webPusher{vapid: vapid},
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) Enabled() bool {
	return s.vapid.PublicKey != "" && s.vapid.PrivateKey != ""
}

// SendToUser delivers payload to every subscription of userID and returns
// how many deliveries were accepted.
func (s *Sender) SendToUser(ctx context.Context, userID string, payload *NotificationPayload) int {
	if !s.Enabled() {
		slog.WarnContext(ctx, "push notification: VAPID keys not configured, skipping")
		s.record(DeliverySkipped)
		return 0
	}

	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to list subscriptions", "user_id", userID, "error", err)
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to marshal payload", "error", err)
		return 0
	}

	sent := 0
	for _, sub := range subs {
		if s.sendToSubscription(ctx, sub, data) {
			sent++
		}
	}
	return sent
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) bool {
	status, err := s.pusher.Push(ctx, sub, data)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		s.record(DeliveryFailed)
		return false
	}

	switch {
	case status == http.StatusGone || status == http.StatusNotFound:
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		s.record(DeliveryExpired)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push notification: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return false
	case status >= 400:
		slog.WarnContext(ctx, "push notification: unexpected status", "endpoint", sub.Endpoint, "status", status)
		s.record(DeliveryFailed)
		return false
	}
	s.record(DeliverySent)
	return true
}

func (s *Sender) record(result string) {
	if s.metrics != nil {
		s.metrics.AddPushDelivery(result)
	}
}
