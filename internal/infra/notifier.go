package infra

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers a committed lot change event to the downstream
// notification collaborator. What the collaborator does with it (email, chat,
// ERP sync) is its own business — the core only guarantees the handoff.
type Notifier interface {
	Notify(ctx context.Context, payload []byte) error
}

// WebhookNotifier POSTs change events to a configured endpoint, routed through
// the circuit breaker so a downed receiver fast-fails instead of tying up
// workers.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewWebhookNotifier(url string, cb *CircuitBreaker) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, payload []byte) error {
	return n.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("notify: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("notify: webhook unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
		}
		return nil
	})
}

// LogNotifier is the fallback when no webhook is configured: events land in
// the structured log and nowhere else. Useful for development and for
// deployments where a log shipper is the integration point.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, payload []byte) error {
	log.Info().RawJSON("event", payload).Msg("lot event")
	return nil
}
