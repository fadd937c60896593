package notifier

import "context"

// TextNotifier delivers a plain text message.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
