package vrops

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	acquirePath      = "/suite-api/api/auth/token/acquire"
	releasePath      = "/suite-api/api/auth/token/release"
	clusterStatePath = "/casa/sysadmin/cluster/online_state"
	resourceQuery    = "/suite-api/api/resources/query"
	resourceStats    = "/suite-api/api/resources/%s/stats"

	// TransportFailureStatus is reported when no HTTP response was received.
	TransportFailureStatus = http.StatusServiceUnavailable
	// ProtocolFailureStatus replaces a 2xx status whose body could not be parsed.
	ProtocolFailureStatus = http.StatusBadGateway

	maxBodyBytes = 64 << 20
)

type Config struct {
	Scheme             string
	Timeout            time.Duration
	InsecureSkipVerify bool
	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Client performs one HTTP call per operation against the vROps REST API
// and folds every outcome into a dto.Envelope.
type Client struct {
	http    *http.Client
	scheme  string
	limiter *rate.Limiter
	logger  *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		scheme:  cfg.Scheme,
		limiter: limiter,
		logger:  log,
	}
}

type request struct {
	method    string
	host      string
	path      string
	query     url.Values
	body      any
	token     string
	basicUser string
	basicPass string
	// statusOnly marks calls whose success body is never read.
	statusOnly bool
}

func (c *Client) AcquireToken(ctx context.Context, host string, req dto.AcquireTokenRequest) dto.Envelope[dto.AcquireTokenResponse] {
	return do[dto.AcquireTokenResponse](ctx, c, request{
		method: http.MethodPost,
		host:   host,
		path:   acquirePath,
		body:   req,
	})
}

func (c *Client) ReleaseToken(ctx context.Context, session *entity.Session) dto.Envelope[dto.ReleaseTokenResponse] {
	return do[dto.ReleaseTokenResponse](ctx, c, request{
		method:     http.MethodPost,
		host:       session.Host(),
		path:       releasePath,
		token:      session.Token(),
		statusOnly: true,
	})
}

func (c *Client) ClusterState(ctx context.Context, session *entity.Session) dto.Envelope[dto.ClusterStateResponse] {
	creds := session.Credentials()
	return do[dto.ClusterStateResponse](ctx, c, request{
		method:    http.MethodGet,
		host:      session.Host(),
		path:      clusterStatePath,
		basicUser: creds.Username(),
		basicPass: creds.Password(),
	})
}

func (c *Client) QueryResources(ctx context.Context, session *entity.Session, req dto.ResourceQueryRequest) dto.Envelope[dto.ResourceQueryResponse] {
	return do[dto.ResourceQueryResponse](ctx, c, request{
		method: http.MethodPost,
		host:   session.Host(),
		path:   resourceQuery,
		body:   req,
		token:  session.Token(),
	})
}

func (c *Client) ResourceStats(ctx context.Context, session *entity.Session, resourceID string, params url.Values) dto.Envelope[dto.StatsResponse] {
	return do[dto.StatsResponse](ctx, c, request{
		method: http.MethodGet,
		host:   session.Host(),
		path:   fmt.Sprintf(resourceStats, url.PathEscape(resourceID)),
		query:  params,
		token:  session.Token(),
	})
}

func do[T any](ctx context.Context, c *Client, r request) dto.Envelope[T] {
	startedAt := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportFailure[T](err)
		}
	}

	httpReq, err := c.newRequest(ctx, r)
	if err != nil {
		return transportFailure[T](err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("vROps request failed", "method", r.method, "path", r.path, "error", err.Error())
		return transportFailure[T](err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportFailure[T](err)
	}

	env := decode[T](resp.StatusCode, raw, r.statusOnly)
	c.logger.Debug("vROps request",
		"method", r.method,
		"path", r.path,
		"http_status", resp.StatusCode,
		"status", env.StatusCode,
		"duration", time.Since(startedAt).String(),
	)
	return env
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	target := url.URL{
		Scheme: c.scheme,
		Host:   r.host,
		Path:   r.path,
	}
	if len(r.query) > 0 {
		target.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "vRealizeOpsToken "+r.token)
	}
	if r.basicUser != "" {
		req.SetBasicAuth(r.basicUser, r.basicPass)
	}

	return req, nil
}

// statusProbe reads the status and message the platform may embed in an error body.
type statusProbe struct {
	HTTPStatusCode *int   `json:"httpStatusCode"`
	Message        string `json:"message"`
}

// decode applies the envelope rules: a declared httpStatusCode wins, a parsed body
// without one is 200 unless the HTTP status itself is non-2xx. An unparseable body keeps
// a non-2xx HTTP status; on a 2xx status it becomes ProtocolFailureStatus unless statusOnly is set.
func decode[T any](httpStatus int, raw []byte, statusOnly bool) dto.Envelope[T] {
	var env dto.Envelope[T]

	var probe statusProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return parseFailure[T](httpStatus, raw, err, statusOnly)
	}

	if err := json.Unmarshal(raw, &env.Data); err != nil {
		return parseFailure[T](httpStatus, raw, err, statusOnly)
	}

	env.Message = probe.Message
	switch {
	case probe.HTTPStatusCode != nil:
		env.StatusCode = *probe.HTTPStatusCode
	case !isSuccess(httpStatus):
		env.StatusCode = httpStatus
	default:
		env.StatusCode = http.StatusOK
	}

	return env
}

func parseFailure[T any](httpStatus int, raw []byte, err error, statusOnly bool) dto.Envelope[T] {
	env := dto.Envelope[T]{StatusCode: httpStatus}
	switch {
	case statusOnly && isSuccess(httpStatus):
		return env
	case isSuccess(httpStatus):
		env.StatusCode = ProtocolFailureStatus
		env.Message = fmt.Sprintf("HTTP %d: %s", httpStatus, parseFailureMessage(raw, err))
	default:
		env.Message = parseFailureMessage(raw, err)
	}
	return env
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func parseFailureMessage(raw []byte, err error) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "empty response body"
	}
	return fmt.Sprintf("failed to parse response body: %v", err)
}

func transportFailure[T any](err error) dto.Envelope[T] {
	return dto.Envelope[T]{
		StatusCode: TransportFailureStatus,
		Message:    fmt.Sprintf("%s: %v", transportErrorType(err), err),
		Transport:  true,
	}
}

func transportErrorType(err error) string {
	var (
		netErr      net.Error
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		certErr     x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.As(err, &unknownAuth), errors.As(err, &hostErr), errors.As(err, &certErr), errors.As(err, &recordErr):
		return "SSLError"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Timeout"
	case strings.Contains(err.Error(), "tls:"):
		return "SSLError"
	default:
		return "ConnectionError"
	}
}
