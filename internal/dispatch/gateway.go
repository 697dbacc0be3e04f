package dispatch

import "context"

// Gateway broadcasts a notification to every subscribed device.
type Gateway interface {
	Send(ctx context.Context, n Notification) error
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, n Notification) error

// Send calls f(ctx, n).
func (f GatewayFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
