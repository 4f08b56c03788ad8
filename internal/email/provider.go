// Package email renders and sends transactional order mail.
package email

import (
	"context"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// NewProvider returns the Resend-backed provider, or a no-op sender when no
// API key is configured so local development works without one.
func NewProvider(apiKey, from string) Provider {
	if apiKey == "" {
		return noopProvider{}
	}
	return NewResendProvider(apiKey, from)
}

type noopProvider struct{}

func (noopProvider) SendEmail(ctx context.Context, email *Email) error { return nil }
