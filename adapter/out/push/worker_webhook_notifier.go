package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"calndr/core/port/out"
	"calndr/pkg/httputil"
)

// WebhookNotifier is the C9 PushNotifier adapter: it POSTs a JSON
// payload to a per-device push endpoint templated from endpointFormat,
// where "%s" is replaced with the device id. A real deployment points
// this at FCM/APNs gateway or an internal push-relay service.
type WebhookNotifier struct {
	client         *http.Client
	endpointFormat string
	timeout        time.Duration
}

func NewWebhookNotifier(endpointFormat string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		client:         httputil.NewOptimizedClient(httputil.PushGatewayConfig()),
		endpointFormat: endpointFormat,
		timeout:        timeout,
	}
}

var _ out.PushNotifier = (*WebhookNotifier)(nil)

type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (n *WebhookNotifier) Send(ctx context.Context, deviceID string, title, body string, data map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	payload, err := json.Marshal(pushPayload{Title: title, Body: body, Data: data})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	url := fmt.Sprintf(n.endpointFormat, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push to %s: %w", deviceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push endpoint %s returned %d: %s", deviceID, resp.StatusCode, string(b))
	}
	return nil
}
