package remote

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

	"attrack/internal/attendance"
)

// TokenProvider supplies the session token attached to every
// authenticated request. Returning an empty token surfaces as an auth
// failure before any request is made.
type TokenProvider func() (string, error)

// Client implements attendance.Remote over the attendance HTTP API.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenProvider
	logger  attendance.Logger
}

var _ attendance.Remote = (*Client)(nil)

// NewClient creates a client for the API at baseURL. timeout bounds each
// request; an exceeded timeout is classified as a network failure.
func NewClient(baseURL string, timeout time.Duration, token TokenProvider, logger attendance.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		token:   token,
		logger:  logger,
	}
}

func (c *Client) FetchToday(ctx context.Context) (*attendance.Record, error) {
	var w wireRecord
	if err := c.call(ctx, http.MethodGet, "/v1/attendance/today", nil, &w, true); err != nil {
		return nil, err
	}
	return w.toRecord()
}

func (c *Client) FetchByID(ctx context.Context, id string) (*attendance.Record, error) {
	var w wireRecord
	path := "/v1/attendance/" + url.PathEscape(id)
	if err := c.call(ctx, http.MethodGet, path, nil, &w, true); err != nil {
		return nil, err
	}
	return w.toRecord()
}

func (c *Client) FetchHistory(ctx context.Context, r attendance.HistoryRange) ([]*attendance.Record, error) {
	q := url.Values{}
	q.Set("start", attendance.DayKey(r.Start))
	q.Set("end", attendance.DayKey(r.End))

	var ws []wireRecord
	if err := c.call(ctx, http.MethodGet, "/v1/attendance?"+q.Encode(), nil, &ws, true); err != nil {
		return nil, err
	}

	recs := make([]*attendance.Record, len(ws))
	for i, w := range ws {
		rec, err := w.toRecord()
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	return recs, nil
}

func (c *Client) SubmitCheckIn(ctx context.Context, coords attendance.Coordinates) (*attendance.Record, error) {
	return c.submit(ctx, "/v1/attendance/check-in", checkInRequest{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	})
}

func (c *Client) SubmitCheckOut(ctx context.Context, coords attendance.Coordinates) (*attendance.Record, error) {
	return c.submit(ctx, "/v1/attendance/check-out", checkInRequest{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	})
}

func (c *Client) SubmitPermit(ctx context.Context, reason string) (*attendance.Record, error) {
	return c.submit(ctx, "/v1/attendance/permit", permitRequest{Reason: reason})
}

// Login exchanges credentials for a session token. Unauthenticated; used
// by the app layer, not the engine.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var data loginData
	err := c.call(ctx, http.MethodPost, "/v1/auth/login", loginRequest{Email: email, Password: password}, &data, false)
	if err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", attendance.ServerError("login response carried no token")
	}
	return data.Token, nil
}

func (c *Client) submit(ctx context.Context, path string, body any) (*attendance.Record, error) {
	var w wireRecord
	if err := c.call(ctx, http.MethodPost, path, body, &w, true); err != nil {
		return nil, err
	}
	return w.toRecord()
}

// call performs one API request and decodes the enveloped payload into
// out. Failures come back classified: connectivity and timeouts as
// network, 401/403 as auth, 404 as not-found, any other non-2xx as a
// server error carrying the server's message.
func (c *Client) call(ctx context.Context, method, path string, body, out any, authenticated bool) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("reading session token: %w", err)
		}
		if token == "" {
			return attendance.AuthError("no session token; log in first")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "err", err)
		return attendance.NetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return attendance.NetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classifyStatus(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	var env struct {
		envelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return attendance.ServerError(fmt.Sprintf("malformed response: %v", err))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return attendance.ServerError(fmt.Sprintf("malformed response payload: %v", err))
	}
	return nil
}

// classifyStatus maps a non-2xx response to the failure taxonomy. The
// server's own message is preserved when it sends one.
func (c *Client) classifyStatus(code int, raw []byte) error {
	var env envelope
	message := http.StatusText(code)
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		message = env.Message
	}

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return attendance.AuthError(message)
	case code == http.StatusNotFound:
		return attendance.NotFoundError(message)
	default:
		c.logger.Debug("server rejected request", "code", code, "message", message)
		return attendance.ServerError(message)
	}
}
