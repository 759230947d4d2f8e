package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultUserAgent = "matrixsend"
	requestTimeout   = 30 * time.Second

	// cap on error bodies read from the homeserver
	maxErrorBodySize = 64 << 10

	loginPath      = "/_matrix/client/v3/login"
	loginPassword  = "m.login.password"
	identifierUser = "m.id.user"
	msgTypeText    = "m.text"

	tracerName = "github.com/jpalmerr/matrixsend/internal/matrix"
)

// ErrNoAccessToken is returned by calls that need authentication when the
// client has neither logged in nor been given a token.
var ErrNoAccessToken = errors.New("matrix: no access token (log in first)")

// Client talks to a single homeserver. It is safe for concurrent use once
// constructed, except that Login replaces the access token.
type Client struct {
	baseURL     string
	http        *http.Client
	userAgent   string
	accessToken string
	tracer      trace.Tracer
	newTxnID    func() string
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken authenticates requests with a stored token.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = strings.TrimSpace(token)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTracerProvider sets where spans are created. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient builds a Client for homeserver, which may omit the scheme.
func NewClient(homeserver string, opts ...Option) (*Client, error) {
	base, err := NormalizeHomeserver(homeserver)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
		tracer:    otel.Tracer(tracerName),
		newTxnID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeHomeserver returns homeserver as a base URL. A value without a
// scheme gets "https://"; query, fragment and trailing slashes are dropped.
func NormalizeHomeserver(homeserver string) (string, error) {
	trimmed := strings.TrimSpace(homeserver)
	if trimmed == "" {
		return "", errors.New("homeserver is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse homeserver: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("homeserver %q has no host", homeserver)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}

// Homeserver returns the normalized base URL.
func (c *Client) Homeserver() string {
	return c.baseURL
}

// AccessToken returns the token used for authenticated calls, if any.
func (c *Client) AccessToken() string {
	return c.accessToken
}

// Login authenticates userID with a password and registers the device under
// deviceName. On success the client keeps the returned access token.
func (c *Client) Login(ctx context.Context, userID, password, deviceName string) (session Session, err error) {
	if c == nil {
		return Session{}, errors.New("client is nil")
	}
	if userID == "" {
		return Session{}, errors.New("login: user id is required")
	}
	if password == "" {
		return Session{}, errors.New("login: password is required")
	}

	ctx, span := c.tracer.Start(ctx, "matrix.login",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("matrix.user_id", userID),
			attribute.String("matrix.device_name", deviceName),
		),
	)
	defer func() { endSpan(span, err) }()

	req := loginRequest{
		Type:                     loginPassword,
		Identifier:               loginIdentifier{Type: identifierUser, User: userID},
		Password:                 password,
		InitialDeviceDisplayName: deviceName,
	}
	if err = c.do(ctx, http.MethodPost, loginPath, false, req, &session); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if session.AccessToken == "" {
		err = errors.New("login: response carried no access token")
		return Session{}, err
	}

	span.SetAttributes(attribute.String("matrix.device_id", session.DeviceID))
	c.accessToken = session.AccessToken
	return session, nil
}

// SendText sends body as an m.text message to roomID and returns the event id.
func (c *Client) SendText(ctx context.Context, roomID, body string) (eventID string, err error) {
	if c == nil {
		return "", errors.New("client is nil")
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return "", errors.New("send: room id is required")
	}

	txnID := c.newTxnID()
	ctx, span := c.tracer.Start(ctx, "matrix.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("matrix.room_id", roomID),
			attribute.String("matrix.txn_id", txnID),
		),
	)
	defer func() { endSpan(span, err) }()

	path := "/_matrix/client/v3/rooms/" + url.PathEscape(roomID) +
		"/send/m.room.message/" + url.PathEscape(txnID)

	var resp sendResponse
	if err = c.do(ctx, http.MethodPut, path, true, textMessage{MsgType: msgTypeText, Body: body}, &resp); err != nil {
		return "", fmt.Errorf("send to %s: %w", roomID, err)
	}

	span.SetAttributes(attribute.String("matrix.event_id", resp.EventID))
	return resp.EventID, nil
}

// Close releases idle connections. Safe to call on a nil client.
func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if c.accessToken == "" {
			return ErrNoAccessToken
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError reads the standard {"errcode", "error"} body. Servers that
// answer with something else still yield an *Error with the status code.
func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_ = json.Unmarshal(data, apiErr)
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
