// Package fcm delivers appointment notifications as push messages to the
// user's registered devices. Push delivery is best-effort and optional; the
// in-app notification list is the record of truth.
package fcm

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"
)

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
}

// NewClient wraps the shared Admin SDK messaging client.
func NewClient(messagingClient *messaging.Client) *Client {
	return &Client{messagingClient: messagingClient}
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string // Custom data payload
}

// SendToDevices sends a push notification to multiple device tokens.
// Returns a list of tokens that failed to receive the notification so the
// caller can unregister them.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: notification.Title,
				Body:  notification.Body,
				Icon:  "/icon-192.svg",
			},
		},
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	log.Printf("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	var failedTokens []string
	for i, resp := range response.Responses {
		if !resp.Success {
			failedTokens = append(failedTokens, tokens[i])
			log.Printf("[FCM] Failed to send to token %s: %v", tokens[i], resp.Error)
		}
	}

	return failedTokens, nil
}
