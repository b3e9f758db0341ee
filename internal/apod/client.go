package apod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"apodposter/internal/domain"

	"github.com/samber/lo"
)

const DefaultURL = "https://api.nasa.gov/planetary/apod"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, apiKey string, httpClient *http.Client, log *slog.Logger) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log,
	}
}

// apiError covers both error shapes the API is known to return.
type apiError struct {
	Code  any    `json:"code"`
	Msg   string `json:"msg"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e apiError) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Error != nil {
		return fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)
	}

	return ""
}

// Fetch returns the records published within w. A zero window asks the API
// for the current day only.
func (c *Client) Fetch(ctx context.Context, w domain.Window) ([]domain.FeedRecord, error) {
	reqURL, err := c.buildURL(w)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "Fetch")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.message() != "" {
			return nil, fmt.Errorf("APOD API error (status = %d): %s", resp.StatusCode, apiErr.message())
		}

		return nil, fmt.Errorf("APOD API error (status = %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}

	records = lo.Map(records, func(r domain.FeedRecord, _ int) domain.FeedRecord {
		r.Date = strings.TrimSpace(r.Date)
		r.Title = strings.TrimSpace(r.Title)
		r.URL = strings.TrimSpace(r.URL)
		r.MediaType = domain.MediaKind(strings.ToLower(strings.TrimSpace(string(r.MediaType))))
		return r
	})

	c.log.InfoContext(ctx, "APOD records are fetched",
		"startDate", formatDay(w.Start),
		"endDate", formatDay(w.End),
		"recordCount", len(records))

	return records, nil
}

func (c *Client) buildURL(w domain.Window) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("api_key", c.apiKey)
	if !w.Start.IsZero() {
		q.Set("start_date", formatDay(w.Start))
	}
	if !w.End.IsZero() {
		q.Set("end_date", formatDay(w.End))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// decodeRecords accepts either a single object or an array of objects.
func decodeRecords(body []byte) ([]domain.FeedRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty APOD response")
	}

	if trimmed[0] == '[' {
		var records []domain.FeedRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return records, nil
	}

	var record domain.FeedRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	return []domain.FeedRecord{record}, nil
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(domain.DateLayout)
}
