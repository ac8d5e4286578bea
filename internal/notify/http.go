package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	SignatureHeader = "X-Facefind-Signature"
	EventHeader     = "X-Facefind-Event"
	userAgent       = "Facefind-Webhook/1.0"
)

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

// Discord posts Event.Message to a Discord webhook.
type Discord struct {
	url    string
	client *http.Client
}

func NewDiscord(url string) *Discord {
	return &Discord{url: url, client: defaultHTTPClient()}
}

func (d *Discord) Notify(ctx context.Context, e Event) error {
	payload, err := json.Marshal(map[string]string{"content": e.Message()})
	if err != nil {
		return fmt.Errorf("marshal discord message: %w", err)
	}
	if err := post(ctx, d.client, d.url, payload, nil); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Webhook posts the JSON event, signed with HMAC-SHA256 when a secret is set.
type Webhook struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhook(url, secret string) *Webhook {
	return &Webhook{url: url, secret: secret, client: defaultHTTPClient()}
}

func (w *Webhook) Notify(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := map[string]string{EventHeader: e.Type}
	if w.secret != "" {
		headers[SignatureHeader] = Sign(w.secret, payload)
	}

	if err := post(ctx, w.client, w.url, payload, headers); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func post(ctx context.Context, client *http.Client, url string, payload []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
