// Package client talks to the TripAhead HTTP API. A Client is the planner's
// persistence backend when the planner runs apart from the server.
package client

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

	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/bryan-buckman/tripahead/internal/planner"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request when the caller's context does not.
const DefaultTimeout = 15 * time.Second

var _ planner.Backend = (*Client)(nil)

// Client is an HTTP client for the API. Error responses come back as the
// model error taxonomy: 400 as *model.ValidationError, 404 as
// model.ErrNotFound, 409 as model.ErrCapacityExceeded, everything else
// (including network failures) as model.ErrPersistence.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error   string   `json:"error"`
	Details string   `json:"details"`
	Missing []string `json:"missing"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(middleware.RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path),
			zap.String("request_id", reqID), zap.Error(err))
		return fmt.Errorf("%s %s: %w: %w", method, path, model.ErrPersistence, err)
	}
	defer resp.Body.Close()
	c.log.Debug("request", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 400 {
		return responseError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w: %w", method, path, model.ErrPersistence, err)
	}
	return nil
}

func responseError(method, path string, resp *http.Response) error {
	var body errorBody
	json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Details
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if len(body.Missing) > 0 {
			return &model.ValidationError{Missing: body.Missing, Message: body.Details}
		}
		return &model.ValidationError{Message: msg}
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %s: %w", method, path, msg, model.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s %s: %s: %w", method, path, msg, model.ErrCapacityExceeded)
	default:
		return fmt.Errorf("%s %s: %s: %w", method, path, msg, model.ErrPersistence)
	}
}

// Health reports the server's database backend.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Database string `json:"database"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return "", err
	}
	return out.Database, nil
}

// --- Trips ---

func (c *Client) CreateTrip(ctx context.Context, in model.TripInput) (model.Trip, error) {
	var t model.Trip
	err := c.do(ctx, http.MethodPost, "/trips", in, &t)
	return t, err
}

func (c *Client) GetTrip(ctx context.Context, tripID int64) (model.Trip, error) {
	var t model.Trip
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/trips/%d", tripID), nil, &t)
	return t, err
}

func (c *Client) ListTrips(ctx context.Context) ([]model.Trip, error) {
	var trips []model.Trip
	err := c.do(ctx, http.MethodGet, "/trips", nil, &trips)
	return trips, err
}

// --- Activities ---

func (c *Client) ListActivities(ctx context.Context, tripID int64) ([]model.Activity, error) {
	var out []model.Activity
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/trips/%d/activities", tripID), nil, &out)
	return out, err
}

func (c *Client) SearchActivities(ctx context.Context, tripID int64, query string) ([]model.Activity, error) {
	var out []model.Activity
	path := fmt.Sprintf("/trips/%d/activities/search?query=%s", tripID, url.QueryEscape(query))
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CreateActivity(ctx context.Context, tripID int64, in model.ActivityInput) (model.Activity, error) {
	var a model.Activity
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/trips/%d/activities", tripID), in, &a)
	return a, err
}

// UpdateActivity sends the full field set of a. Placement is not part of it.
func (c *Client) UpdateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	in := model.ActivityInput{
		Title:       a.Title,
		Description: a.Description,
		Address:     a.Address,
		Price:       a.Price,
		Tags:        a.Tags,
		Rating:      a.Rating,
		ImageURL:    a.ImageURL,
	}
	var out model.Activity
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/activities/%d", a.ID), in, &out)
	return out, err
}

func (c *Client) MoveActivity(ctx context.Context, tripID, activityID int64, p model.Placement) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/trips/%d/activities/%d", tripID, activityID), p, nil)
}

func (c *Client) DeleteActivity(ctx context.Context, tripID, activityID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/trips/%d/activities/%d", tripID, activityID), nil, nil)
}

// --- Days ---

type dayRequest struct {
	Title string `json:"title"`
}

func (c *Client) ListDays(ctx context.Context, tripID int64) ([]model.Day, error) {
	var out []model.Day
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/trips/%d/days", tripID), nil, &out)
	return out, err
}

func (c *Client) AddDay(ctx context.Context, tripID int64, title string) (model.Day, error) {
	var d model.Day
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/trips/%d/days", tripID), dayRequest{Title: title}, &d)
	return d, err
}

func (c *Client) UpdateDayTitle(ctx context.Context, tripID int64, day int, title string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/trips/%d/days/%d", tripID, day), dayRequest{Title: title}, nil)
}

func (c *Client) RemoveDay(ctx context.Context, tripID int64, day int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/trips/%d/days/%d", tripID, day), nil, nil)
}
