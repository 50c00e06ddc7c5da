// Package source fetches token records from the signal API, degrading to a
// fixed sample set when the API cannot be used.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/models"
)

var (
	ErrRequest = errors.New("signal API request failed")
	ErrStatus  = errors.New("signal API returned non-200 status")
	ErrDecode  = errors.New("signal API payload is not a JSON array of records")
)

// StatusError carries the HTTP status of a rejected request.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrStatus.Error(), e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// FetchResult is the outcome of one fetch. When Fallback is set, Records holds
// the sample set and Err explains why the API data was not used.
type FetchResult struct {
	Records  []models.TokenRecord
	Fallback bool
	Err      error
}

// ClientConfig holds optional retry settings for the signal API client.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client provides access to the token signal API
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
}

// NewClient creates a new signal API client
func NewClient(timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Fetch retrieves token records from endpoint. It never fails: any request,
// status or decode error yields the sample records with Fallback set.
func (c *Client) Fetch(ctx context.Context, endpoint string) FetchResult {
	records, err := c.fetchRecords(ctx, endpoint)
	if err != nil {
		logger.Error("Failed to fetch token data: %v", err)
		logger.Warn("Using sample token data")
		return FetchResult{
			Records:  SampleRecords(c.now()),
			Fallback: true,
			Err:      err,
		}
	}

	for i := range records {
		if vErr := records[i].Validate(); vErr != nil {
			logger.Warn("Token record %d (%q) failed validation: %v", i, records[i].Name, vErr)
		}
	}
	return FetchResult{Records: records}
}

func (c *Client) fetchRecords(ctx context.Context, endpoint string) ([]models.TokenRecord, error) {
	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	// Response is array directly, not wrapped
	var records []models.TokenRecord
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after records", ErrDecode)
	}
	if records == nil {
		// literal null
		return nil, ErrDecode
	}
	return records, nil
}

// doRequest performs the GET, retrying transport errors and 5xx responses
// with linear backoff up to maxRetries attempts.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrRequest, ctx.Err())
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequest, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrRequest, err)
			continue
		}

		if resp.StatusCode >= 500 && i < c.maxRetries-1 {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
