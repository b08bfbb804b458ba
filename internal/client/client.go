// Package client talks to the booking API over HTTP.  It implements the
// availability source and reservation store the booking flow needs, so a
// command-line session can drive the same workflow as the web app.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/model"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Is lets a 409 response match booking.ErrSlotUnavailable.  Conflicts
// about the Idempotency-Key itself are not slot conflicts.
func (e *APIError) Is(target error) bool {
	if target != booking.ErrSlotUnavailable || e.Status != http.StatusConflict {
		return false
	}
	return !strings.Contains(strings.ToLower(e.Message), "idempotency")
}

// Client is safe for concurrent use.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// New returns a client for the API at baseURL authenticating with token.
// token may be empty for the public endpoints.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{base: u, token: token, http: &http.Client{Timeout: 15 * time.Second}, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, hdr http.Header, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()

	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	bs, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(bs))
	if json.Unmarshal(bs, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// Slots implements booking.AvailabilitySource.  date's calendar day is
// sent as YYYY-MM-DD.
func (c *Client) Slots(ctx context.Context, resourceID string, date time.Time, duration time.Duration) ([]model.Slot, error) {
	q := url.Values{}
	q.Set("date", date.Format(model.DateLayout))
	q.Set("duration_minutes", strconv.Itoa(int(duration/time.Minute)))
	var views []model.SlotView
	if err := c.do(ctx, http.MethodGet, "/v1/resources/"+url.PathEscape(resourceID)+"/slots", q, nil, nil, &views); err != nil {
		return nil, err
	}
	slots := make([]model.Slot, 0, len(views))
	for _, v := range views {
		slots = append(slots, v.Slot())
	}
	return slots, nil
}

// CreateReservation implements booking.ReservationStore.  The key travels
// in the Idempotency-Key header so a retried call returns the reservation
// the first one created.
func (c *Client) CreateReservation(ctx context.Context, req model.CreateReservationRequest, idempotencyKey string) (*model.Reservation, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}
	hdr := http.Header{}
	hdr.Set("Idempotency-Key", idempotencyKey)
	var res model.Reservation
	if err := c.do(ctx, http.MethodPost, "/v1/reservations", nil, req, hdr, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Resources lists resources, optionally of one booking type.
func (c *Client) Resources(ctx context.Context, t model.BookingType) ([]model.Resource, error) {
	q := url.Values{}
	if t != "" {
		q.Set("type", string(t))
	}
	var out []model.Resource
	if err := c.do(ctx, http.MethodGet, "/v1/resources", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resource fetches one resource.
func (c *Client) Resource(ctx context.Context, id string) (*model.Resource, error) {
	var out model.Resource
	if err := c.do(ctx, http.MethodGet, "/v1/resources/"+url.PathEscape(id), nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Services returns the services and staff offered on a resource.
func (c *Client) Services(ctx context.Context, resourceID string) (*model.Catalog, error) {
	var out model.Catalog
	if err := c.do(ctx, http.MethodGet, "/v1/resources/"+url.PathEscape(resourceID)+"/services", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyReservations lists the caller's reservations.
func (c *Client) MyReservations(ctx context.Context) ([]model.Reservation, error) {
	var out []model.Reservation
	if err := c.do(ctx, http.MethodGet, "/v1/my-reservations", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel cancels one of the caller's reservations.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/reservations/"+url.PathEscape(id), nil, nil, nil, nil)
}
