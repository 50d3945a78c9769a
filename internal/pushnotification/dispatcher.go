package pushnotification

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/kazz187/workguild/internal/eventbus"
	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/pkg/clog"
)

// Dispatcher pushes every newly created alert to the recipient's browsers.
type Dispatcher struct {
	eventBus      *eventbus.Bus
	notifications notification.Repository
	sender        *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, notifications notification.Repository, sender *Sender) *Dispatcher {
	return &Dispatcher{eventBus: eventBus, notifications: notifications, sender: sender}
}

// Start blocks until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256, eventbus.TypeAlertCreated)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("push dispatcher started", "enabled", d.sender.Enabled())
	defer slog.Info("push dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(clog.ContextWithOperation(ctx, "push"), event.ResourceID)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, notificationID string) {
	clog.AddAttribute(ctx, "notification_id", notificationID)
	n, err := d.notifications.Get(ctx, notificationID)
	if err != nil {
		slog.ErrorContext(ctx, "load notification for push", "error", err)
		return
	}
	sent := d.sender.SendToUser(ctx, n.UserID, payloadFor(n))
	slog.DebugContext(ctx, "alert pushed", "recipient_id", n.UserID, "devices", sent)
}

// payloadFor links a task alert to the task and every other alert to the
// recipient's inbox.
func payloadFor(n *notification.Notification) *NotificationPayload {
	link := "/users/" + url.PathEscape(n.UserID) + "/notifications"
	if n.RelatedTaskID != "" {
		link = "/tasks/" + url.PathEscape(n.RelatedTaskID)
	}
	return &NotificationPayload{
		Title:    n.Title,
		Body:     n.Message,
		URL:      link,
		Tag:      n.ID,
		Priority: string(n.Priority),
	}
}
