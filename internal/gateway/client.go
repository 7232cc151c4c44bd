package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/infrastructure/resilience"
)

// Config holds backend gateway configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the REST backend: session creation and sessional-policy
// lookup. Timeouts and retries live here, at the collaborator boundary,
// so the orchestrator's decision logic stays free of them.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	limiter *rate.Limiter
	log     *logging.Logger
}

// New creates a gateway client with retry, rate limiting, and a circuit
// breaker around the backend.
func New(cfg Config, log *logging.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	// Retryable transport underneath resty, same arrangement as the
	// outbound HTTP stack elsewhere in the codebase.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "DeskRelay-Widget/1.0")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("backend", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Backend circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		resty:   restyClient,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(20), 20),
		log:     log,
	}
}

// CreateSession calls the backend's create-or-resume session operation and
// returns the identity token plus the room descriptor, with the room id
// parsed as an integer.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var (
		env    sessionEnvelope
		errEnv errorEnvelope
		resp   *resty.Response
	)
	err := c.breaker.Do(func() error {
		var err error
		resp, err = c.resty.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&env).
			SetError(&errEnv).
			Post("/api/v2/widget/session")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("create session: %s", extractMessage(&errEnv, resp.StatusCode()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	roomID, err := strconv.ParseInt(env.Data.Room.RoomID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("create session: unparsable room id %q: %w", env.Data.Room.RoomID, err)
	}

	return &SessionResult{
		IdentityToken: env.Data.IdentityToken,
		Room: RoomDescriptor{
			ID:        roomID,
			Name:      env.Data.Room.Name,
			AvatarURL: env.Data.Room.AvatarURL,
			Options:   env.Data.Room.Options,
		},
	}, nil
}

// SessionPolicy reports whether the application uses sessional
// conversation policy. The result is fetched on demand, never cached.
func (c *Client) SessionPolicy(ctx context.Context, applicationID string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}

	var (
		env    policyEnvelope
		errEnv errorEnvelope
		resp   *resty.Response
	)
	err := c.breaker.Do(func() error {
		var err error
		resp, err = c.resty.R().
			SetContext(ctx).
			SetQueryParam("app_id", applicationID).
			SetResult(&env).
			SetError(&errEnv).
			Get("/api/v2/widget/config")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("session policy: %s", extractMessage(&errEnv, resp.StatusCode()))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return env.Data.IsSessional, nil
}

// extractMessage pulls the nested message out of an error body, falling
// back to a generic description of the status.
func extractMessage(env *errorEnvelope, status int) string {
	if env != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return fmt.Sprintf("backend returned status %d", status)
}
