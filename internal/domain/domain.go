// Package domain wires the two opaque domain callouts from SPEC_FULL.md
// §4.7a (wallet_balance, fleet_status) as HTTP GETs against configured
// endpoints, matching the teacher's habit of keeping third-party domain
// APIs behind a narrow adapter rather than baking HTTP calls into the
// orchestrator.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/voicewire/gateway/internal/tools"
)

// CalloutTimeout bounds a single domain HTTP call so it never holds a
// session's cancellation scope open past the per-tool-call budget.
const CalloutTimeout = 5 * time.Second

// Client issues opaque GET callouts against a configured domain endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client, or nil if baseURL is empty (meaning the tool
// should not be registered at all).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: CalloutTimeout}}
}

func (c *Client) get(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CalloutTimeout)
	defer cancel()

	u := fmt.Sprintf("%s?userId=%s", c.baseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("domain callout %s: status %d", c.baseURL, resp.StatusCode)
	}
	return humanize(body), nil
}

// humanize renders a JSON domain response as plain text if structured, or
// returns it verbatim otherwise — the model only needs readable text.
func humanize(body []byte) string {
	var generic map[string]any
	if err := json.Unmarshal(body, &generic); err != nil {
		return string(body)
	}
	var b []byte
	b, _ = json.MarshalIndent(generic, "", "  ")
	return string(b)
}

// RegisterWalletBalance registers wallet_balance if walletEndpoint is set.
func RegisterWalletBalance(r *tools.Registry, walletEndpoint string) {
	c := NewClient(walletEndpoint)
	if c == nil {
		return
	}
	r.Register(tools.Tool{
		Name:        "wallet_balance",
		Description: "Look up the user's wallet balance from the domain service.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, userID string, _ json.RawMessage) (string, error) {
			return c.get(ctx, userID)
		},
	})
}

// RegisterFleetStatus registers fleet_status if fleetEndpoint is set.
func RegisterFleetStatus(r *tools.Registry, fleetEndpoint string) {
	c := NewClient(fleetEndpoint)
	if c == nil {
		return
	}
	r.Register(tools.Tool{
		Name:        "fleet_status",
		Description: "Look up the user's fleet status from the domain service.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, userID string, _ json.RawMessage) (string, error) {
			return c.get(ctx, userID)
		},
	})
}
