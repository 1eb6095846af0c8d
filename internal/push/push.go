// Package push delivers push notifications to device tokens.
package push

import (
	"context"
	"errors"
)

// ErrEmptyToken is returned when a message has no device token.
var ErrEmptyToken = errors.New("push token is empty")

// Message is a push notification addressed to one device token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string

	// Android options.
	ChannelID string
	Icon      string

	// Sound is used on both platforms. Empty means the platform default.
	Sound string

	// Badge sets the iOS badge count when non-nil.
	Badge *int
}

// Sender delivers a push message and returns the transport's delivery ID.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// TokenPreview returns the first 10 characters of a token followed by "...",
// suitable for logs and API responses.
func TokenPreview(token string) string {
	const visible = 10
	if len(token) <= visible {
		return token + "..."
	}
	return token[:visible] + "..."
}
