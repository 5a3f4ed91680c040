// Package sender pushes activated leads to the external sending platform.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/httpretry"
	"github.com/ignite/sendguard/internal/pkg/logger"
)

// Pusher hands a lead to the sending platform for a campaign.
type Pusher interface {
	PushLead(ctx context.Context, campaignID string, l domain.Lead) error
}

// NoopPusher accepts every lead without calling anything.
type NoopPusher struct{}

// PushLead implements Pusher.
func (NoopPusher) PushLead(_ context.Context, campaignID string, l domain.Lead) error {
	logger.Debug("sender not configured, skipping push", "campaign_id", campaignID, "lead_id", l.ID)
	return nil
}

// Client talks to the sender API over HTTP with retries.
type Client struct {
	baseURL string
	apiKey  string
	http    httpretry.HTTPDoer
}

// NewClient creates a sender API client. Retries cover 429 and 5xx.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpretry.NewRetryClient(&http.Client{Timeout: timeout}, maxRetries),
	}
}

// WithDoer swaps the transport, mainly for tests.
func (c *Client) WithDoer(d httpretry.HTTPDoer) *Client {
	c.http = d
	return c
}

type pushRequest struct {
	LeadID  string  `json:"lead_id"`
	Email   string  `json:"email"`
	Persona string  `json:"persona"`
	Score   float64 `json:"lead_score"`
	Source  string  `json:"source,omitempty"`
}

// PushLead implements Pusher.
func (c *Client) PushLead(ctx context.Context, campaignID string, l domain.Lead) error {
	body, err := json.Marshal(pushRequest{
		LeadID:  l.ID,
		Email:   l.Email,
		Persona: l.Persona,
		Score:   l.Score,
		Source:  l.Source,
	})
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}

	endpoint := fmt.Sprintf("%s/campaigns/%s/leads", c.baseURL, url.PathEscape(campaignID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push lead: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sender API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	io.Copy(io.Discard, resp.Body)

	logger.Info("lead pushed to sender", "campaign_id", campaignID, "lead_id", l.ID, "email", l.Email)
	return nil
}

// New picks the HTTP client when a base URL is set and NoopPusher otherwise.
func New(baseURL, apiKey string, timeout time.Duration, maxRetries int) Pusher {
	if baseURL == "" {
		return NoopPusher{}
	}
	return NewClient(baseURL, apiKey, timeout, maxRetries)
}
