// Package sink publishes finished audit reports to an external store.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	tt "github.com/gnolang/moveaudit/internal/types"
)

const (
	// RequestIDHeader carries the id generated for every publish request.
	RequestIDHeader = "X-Request-ID"
	reportsPath     = "/reports"
	defaultTimeout  = 10 * time.Second
)

// Client saves reports through an HTTP endpoint.
type Client struct {
	httpc  *resty.Client
	logger *zap.Logger
}

// SaveResult identifies a stored report.
type SaveResult struct {
	RequestID string `json:"-"`
	ID        string `json:"id"`
}

// New creates a client for the store at baseURL. A non-empty token is sent
// as a bearer token.
func New(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json").
		SetLogger(zapAdapter{logger.Sugar()})
	if token != "" {
		httpc.SetAuthToken(token)
	}
	return &Client{httpc: httpc, logger: logger}
}

// Save posts the report as JSON. Any non-2xx answer is an error.
func (c *Client) Save(ctx context.Context, report *tt.Report) (*SaveResult, error) {
	requestID := uuid.NewString()
	result := &SaveResult{}

	resp, err := c.httpc.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, requestID).
		SetBody(report).
		SetResult(result).
		Post(reportsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to publish report %s: %w", report.ContractName, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to publish report %s: store answered %s", report.ContractName, resp.Status())
	}

	result.RequestID = requestID
	c.logger.Info("report published",
		zap.String("contract", report.ContractName),
		zap.String("request_id", requestID),
		zap.String("id", result.ID),
	)
	return result, nil
}

// zapAdapter forwards resty logs to zap.
type zapAdapter struct {
	logger *zap.SugaredLogger
}

func (a zapAdapter) Errorf(format string, v ...any) { a.logger.Errorf(format, v...) }
func (a zapAdapter) Warnf(format string, v ...any)  { a.logger.Warnf(format, v...) }
func (a zapAdapter) Debugf(format string, v ...any) { a.logger.Debugf(format, v...) }
