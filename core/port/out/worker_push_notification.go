package out

import "context"

// PushNotifier delivers a push payload to a device endpoint. The
// fanout service treats every error from this port as non-fatal to
// the mutation that produced the payload.
type PushNotifier interface {
	Send(ctx context.Context, deviceID string, title, body string, data map[string]string) error
}
