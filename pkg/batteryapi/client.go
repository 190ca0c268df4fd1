package batteryapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/types"
)

const (
	DefaultBaseURL    = "https://xiaoha.linkof.link"
	DefaultRegionCode = "0755"

	// RenderTimeout bounds a fetch on the widget refresh path.
	RenderTimeout = 5 * time.Second
	// ValidateTimeout bounds the fetch used to validate a new configuration.
	ValidateTimeout = 10 * time.Second

	maxBodySize = 1 << 20
)

// Request identifies the battery to query.
type Request struct {
	BaseURL    string
	BatteryID  string
	RegionCode string
}

// Response is the envelope returned by the battery API.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *Data  `json:"data"`
}

type Data struct {
	BatteryLife int   `json:"batteryLife"`
	ReportTime  int64 `json:"reportTime"` // epoch millis
}

// Status is a successfully parsed battery reading.
type Status struct {
	BatteryID  string `json:"batteryId"`
	Percentage int    `json:"percentage"`
	ReportedAt int64  `json:"reportedAt"`
}

// Client queries the remote battery API.
type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient is a constructor for creating a new Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchStatus performs one status query. Deadlines come from ctx; callers
// on the render path use RenderTimeout. Every error is a *FetchError.
func (c *Client) FetchStatus(ctx context.Context, req Request) (*Status, error) {
	u, err := buildURL(req)
	if err != nil {
		return nil, &FetchError{Reason: types.ReasonFailed, Err: err}
	}

	logger := logrus.WithFields(logrus.Fields{
		"batteryId":  req.BatteryID,
		"regionCode": req.RegionCode,
		"url":        u,
	})
	logger.Debug("fetching battery status")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Reason: types.ReasonFailed, Err: pkgerrors.Wrap(err, "failed to create request")}
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Reason: types.ReasonFailed, Err: pkgerrors.Wrap(err, "failed to send request")}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("failed to close response body: %v", err)
		}
	}()

	logger = logger.WithFields(logrus.Fields{
		"statusCode": resp.StatusCode,
		"latency":    time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("battery api returned non-2xx status")
		return nil, &FetchError{Reason: types.ReasonNetwork, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Reason: types.ReasonFailed, StatusCode: resp.StatusCode, Err: pkgerrors.Wrap(err, "failed to read response body")}
	}

	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, &FetchError{Reason: types.ReasonData, StatusCode: resp.StatusCode, Err: pkgerrors.Wrap(err, "failed to unmarshal response")}
	}

	if r.Code != 0 {
		logger.WithFields(logrus.Fields{
			"code":    r.Code,
			"message": r.Message,
		}).Warn("battery api returned an error code")
		return nil, &FetchError{Reason: types.ReasonData, StatusCode: resp.StatusCode, Code: r.Code, Message: r.Message}
	}

	if r.Data == nil {
		return nil, &FetchError{Reason: types.ReasonData, StatusCode: resp.StatusCode, Err: pkgerrors.New("response has no data")}
	}

	if r.Data.BatteryLife < 0 || r.Data.BatteryLife > 100 {
		return nil, &FetchError{Reason: types.ReasonData, StatusCode: resp.StatusCode, Err: pkgerrors.Errorf("battery life %d out of range", r.Data.BatteryLife)}
	}

	logger.WithField("batteryLife", r.Data.BatteryLife).Debug("battery status fetched")

	return &Status{
		BatteryID:  req.BatteryID,
		Percentage: r.Data.BatteryLife,
		ReportedAt: r.Data.ReportTime,
	}, nil
}

// Validate checks that req names a battery the API knows about. It applies
// ValidateTimeout on top of ctx.
func (c *Client) Validate(ctx context.Context, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, ValidateTimeout)
	defer cancel()

	_, err := c.FetchStatus(ctx, req)
	return err
}

func buildURL(req Request) (string, error) {
	base := req.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "invalid base url %q", base)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", pkgerrors.Errorf("unsupported scheme in base url %q", base)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set("batteryNo", req.BatteryID)
	if req.RegionCode != "" {
		q.Set("cityCode", req.RegionCode)
	}
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
