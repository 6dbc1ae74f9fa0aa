package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MandateTerminator places the outbound termination call for a recurring
// mandate at the payment gateway.
type MandateTerminator interface {
	TerminateMandate(ctx context.Context, periodNo string) error
}

// GatewayClient is the outbound side of the gateway integration. Only
// mandate termination is placed from here; payment initiation happens via
// browser redirect and never touches this service.
type GatewayClient struct {
	client     HTTPClient
	baseURL    string
	merchantID string
	timeout    time.Duration
	log        zerolog.Logger
}

func NewGatewayClient(client HTTPClient, baseURL, merchantID string, log zerolog.Logger) *GatewayClient {
	return &GatewayClient{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		timeout:    10 * time.Second,
		log:        log.With().Str("component", "gateway_client").Logger(),
	}
}

// TerminateMandate asks the gateway to stop future charges on the mandate.
// The caller records the local cancellation regardless of the outcome here;
// the sweeper covers any divergence.
func (c *GatewayClient) TerminateMandate(ctx context.Context, periodNo string) error {
	form := url.Values{
		"MerchantID_": {c.merchantID},
		"PeriodNo":    {periodNo},
		"AlterType":   {"terminate"},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/MPG/period/AlterStatus", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building termination request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("placing termination call: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway rejected termination with status %d", resp.StatusCode)
	}
	c.log.Info().Str("period_no", periodNo).Msg("mandate termination placed")
	return nil
}
