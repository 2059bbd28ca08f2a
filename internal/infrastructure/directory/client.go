package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/seatswap/escrow/internal/domain/directory"
	"github.com/seatswap/escrow/internal/infrastructure/config"
	"github.com/seatswap/escrow/pkg/retry"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client resolves user display names from the user directory service. Lookups
// are enrichment only, so the breaker fails fast instead of queueing when the
// directory is down.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*directory.User]
	retry   retry.Config
	logger  zerolog.Logger
}

// NewClient creates a directory client with circuit breaking and retries.
func NewClient(cfg *config.DirectoryConfig, logger zerolog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "user-directory",
		Timeout: cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreakerThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[*directory.User](settings),
		retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
		logger: logger,
	}
}

type userResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// FindByID looks a user up by ID. Returns nil without error when the
// directory reports no such user.
func (c *Client) FindByID(ctx context.Context, id string) (*directory.User, error) {
	return c.breaker.Execute(func() (*directory.User, error) {
		return retry.DoWithResult(ctx, c.retry, func() (*directory.User, error) {
			return c.fetch(ctx, id)
		})
	})
}

func (c *Client) fetch(ctx context.Context, id string) (*directory.User, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}
	return &directory.User{ID: body.ID, DisplayName: body.DisplayName}, nil
}
