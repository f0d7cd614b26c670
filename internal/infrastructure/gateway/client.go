// Package gateway implements the HTTP client of the external payment
// gateway. All calls go through a circuit breaker: a misbehaving gateway
// must not tie up payment workers waiting on timeouts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/enrollhub/enrollment-hub/internal/application/saga"
	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrGatewayUnavailable - the gateway could not be reached or the
	// circuit is open.
	ErrGatewayUnavailable = fmt.Errorf("gateway: %w", shared.ErrServiceUnavailable)
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds payment gateway client configuration.
type Config struct {
	// BaseURL is the gateway base URL.
	BaseURL string

	// APIKey authenticates this service with the gateway.
	APIKey string

	// Timeout is the per-request timeout. Charges are not retried at the
	// transport level: a duplicate submission could double-charge.
	Timeout time.Duration

	// FailureThreshold opens the circuit after this many consecutive
	// failures.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// chargeRequest is the gateway's wire representation of a charge.
type chargeRequest struct {
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	CardToken string  `json:"card_token"`
}

// chargeResponse is the gateway's verdict on a charge.
type chargeResponse struct {
	Accepted      bool   `json:"accepted"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// Client submits charges to the payment gateway.
// It implements saga.PaymentGateway.
type Client struct {
	http    *resty.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates the gateway client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "payment-gateway",
		FailureThreshold: cfg.FailureThreshold,
		Timeout:          cfg.OpenTimeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

// Settle submits the charge and returns the gateway's verdict. A decline is a
// successful call from the breaker's point of view; only transport failures
// and gateway 5xx responses count against the circuit.
func (c *Client) Settle(ctx context.Context, charge saga.Charge) (*saga.SettlementResult, error) {
	var verdict chargeResponse

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(chargeRequest{
				Reference: charge.StudentID + ":" + charge.CourseID,
				Amount:    charge.Amount,
				CardToken: charge.CardToken,
			}).
			SetResult(&verdict).
			Post("/charges")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}

		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("%w: unexpected status %d", ErrGatewayUnavailable, resp.StatusCode())
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	return &saga.SettlementResult{
		Accepted:      verdict.Accepted,
		TransactionID: verdict.TransactionID,
		Reason:        verdict.Reason,
	}, nil
}
