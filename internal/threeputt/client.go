package threeputt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/threeputt/teesync/internal/model"
)

// ErrUnauthorized is returned when the backend rejects the session token.
// The caller should prompt the user to log in again.
var ErrUnauthorized = errors.New("session token rejected")

const requestTimeout = 15 * time.Second

// Client talks to the Three Putt backend REST API. Create one with
// [NewClient]; authenticated calls require a token set via [NewClient] or
// obtained through [Client.Login].
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// NewClient creates a Client for the backend at baseURL. token may be empty
// for a client that will only call [Client.Login].
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(requestTimeout)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c, log: logger}
}

// Login exchanges credentials for a session token. The token is also
// installed on the client so subsequent calls are authenticated.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(loginRequest{Email: email, Password: password}).
		SetResult(&out).
		Post("/api/v1/auth/login")
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return "", fmt.Errorf("login rejected: %w", ErrUnauthorized)
	}
	if resp.IsError() {
		return "", fmt.Errorf("login returned status %d", resp.StatusCode())
	}
	if out.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}

	c.http.SetAuthToken(out.Token)
	return out.Token, nil
}

// Ping validates the backend connection and token with retry.
func (c *Client) Ping(ctx context.Context) error {
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.get(ctx, "/api/v1/health", nil)
	})
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	return nil
}

// Postings fetches the authenticated user's open tee-time postings.
func (c *Client) Postings(ctx context.Context) ([]*model.TeeTimePosting, error) {
	var dtos []postingDTO
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.get(ctx, "/api/v1/postings", &dtos)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch postings: %w", err)
	}

	postings := make([]*model.TeeTimePosting, 0, len(dtos))
	for i := range dtos {
		postings = append(postings, dtos[i].toModel())
	}
	c.log.Debug("fetched postings", "count", len(postings))
	return postings, nil
}

// Reservations fetches the authenticated user's reservations on other
// players' postings.
func (c *Client) Reservations(ctx context.Context) ([]*model.Reservation, error) {
	var dtos []reservationDTO
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.get(ctx, "/api/v1/reservations/mine", &dtos)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}

	reservations := make([]*model.Reservation, 0, len(dtos))
	for i := range dtos {
		reservations = append(reservations, dtos[i].toModel())
	}
	c.log.Debug("fetched reservations", "count", len(reservations))
	return reservations, nil
}

// get performs an authenticated GET, decoding the JSON body into out when
// out is non-nil.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return fmt.Errorf("GET %s: %w", path, ErrUnauthorized)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode())
	}
	return nil
}
