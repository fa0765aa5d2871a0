package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/logger"

	"golang.org/x/oauth2"
)

const (
	maxAttempts    = 4
	initialBackoff = 200 * time.Millisecond
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("telemetry provider returned %d: %s", e.Code, e.Body)
}

// invalidator is implemented by token sources that can drop a rejected token.
type invalidator interface {
	Invalidate()
}

// Client talks to the telemetry provider's REST API
type Client struct {
	baseURL string
	session *http.Client
	tokens  oauth2.TokenSource
	logger  logger.Logger
	backoff time.Duration
}

// NewClient creates a telemetry client. A nil token source sends requests
// without an Authorization header.
func NewClient(baseURL string, tokens oauth2.TokenSource, timeout time.Duration, logger logger.Logger) *Client {
	transport := http.DefaultTransport
	if tokens != nil {
		transport = &oauth2.Transport{Source: tokens, Base: http.DefaultTransport}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: &http.Client{Transport: transport, Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
		backoff: initialBackoff,
	}
}

var _ repository.TelemetryProvider = (*Client)(nil)

type organisationDTO struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

type assetDTO struct {
	ID               flexString `json:"id"`
	Code             *string    `json:"code"`
	Name             *string    `json:"name"`
	LastLatitude     *float64   `json:"lastLatitude"`
	LastLongitude    *float64   `json:"lastLongitude"`
	SpeedKmH         *float64   `json:"speedKmH"`
	Heading          *float64   `json:"heading"`
	LastConnectedUTC *string    `json:"lastConnectedUtc"`
}

// ListOrganisations returns the organisation ids visible to the session
func (c *Client) ListOrganisations(ctx context.Context) ([]string, error) {
	var orgs []organisationDTO
	if err := c.getJSON(ctx, "/api/organisationgroups", &orgs); err != nil {
		return nil, fmt.Errorf("list organisations: %w", err)
	}

	ids := make([]string, 0, len(orgs))
	for _, org := range orgs {
		if id := strings.TrimSpace(string(org.ID)); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetAssetsWithPositions fetches every asset of an organisation with its last
// known position in a single call.
func (c *Client) GetAssetsWithPositions(ctx context.Context, orgID string) ([]repository.TelemetryAsset, error) {
	var assets []assetDTO
	path := fmt.Sprintf("/api/assets/group/%s/positions", url.PathEscape(orgID))
	if err := c.getJSON(ctx, path, &assets); err != nil {
		return nil, fmt.Errorf("assets for organisation %s: %w", orgID, err)
	}

	out := make([]repository.TelemetryAsset, 0, len(assets))
	for _, a := range assets {
		id := strings.TrimSpace(string(a.ID))
		if id == "" {
			continue
		}
		asset := repository.TelemetryAsset{
			ID:               id,
			Code:             firstNonEmpty(a.Code, a.Name),
			LastLatitude:     a.LastLatitude,
			LastLongitude:    a.LastLongitude,
			SpeedKmH:         a.SpeedKmH,
			Heading:          a.Heading,
			LastConnectedUTC: parseProviderTime(a.LastConnectedUTC),
		}
		out = append(out, asset)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries network errors, 429 and 5xx with exponential backoff.
// A 401 drops the cached token and is tried once more with a fresh session;
// a second 401 is reported as entity.ErrUnauthenticated.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.backoff
	reauthenticated := false

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, entity.ErrUnauthenticated) {
			return nil, err
		}

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusUnauthorized, http.StatusForbidden:
				if inv, ok := c.tokens.(invalidator); ok && !reauthenticated && he.Code == http.StatusUnauthorized {
					inv.Invalidate()
					reauthenticated = true
					continue
				}
				return nil, fmt.Errorf("%w: %v", entity.ErrUnauthenticated, err)
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
				http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		c.logger.Debug("Retrying telemetry request", "url", req.URL.Path, "attempt", attempt, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

// flexString accepts ids the provider sends either as strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

var providerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseProviderTime reads a UTC timestamp; values without a zone are UTC.
func parseProviderTime(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(*s)); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}
