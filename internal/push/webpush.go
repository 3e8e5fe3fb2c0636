// Package push delivers reminder payloads over the Web Push protocol.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"aquora-hydration-api/internal/model"
)

// ErrSubscriptionGone marks a subscription the push service reports as no
// longer valid (404/410). Callers prune it from the store instead of
// retrying.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Sender delivers one composed message to one subscription. The context
// bounds the attempt; a timeout counts as a normal delivery failure.
type Sender interface {
	Send(ctx context.Context, sub model.PushSubscription, msg *model.ReminderMessage) error
}

// WebPushSender sends VAPID-signed messages through the subscription's
// push service endpoint.
type WebPushSender struct {
	subject    string
	publicKey  string
	privateKey string
}

// NewWebPushSender creates a sender with the given VAPID identity.
func NewWebPushSender(subject, publicKey, privateKey string) *WebPushSender {
	return &WebPushSender{
		subject:    subject,
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

// Send delivers the message. 404 and 410 map to ErrSubscriptionGone; any
// other non-success status is a plain delivery failure.
func (s *WebPushSender) Send(ctx context.Context, sub model.PushSubscription, msg *model.ReminderMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             3600,
	})
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
}

// Ensure WebPushSender implements Sender
var _ Sender = (*WebPushSender)(nil)
