package twitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"
)

const (
	DefaultMediaURL  = "https://upload.twitter.com/1.1/media/upload.json"
	DefaultTweetsURL = "https://api.twitter.com/2/tweets"

	maxErrorBodyBytes = 4 << 10
)

// ErrProtocol is returned when the platform answers with an unexpected shape.
var ErrProtocol = errors.New("twitter protocol violation")

// StatusError reports a response whose status code the operation did not expect.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// NewHTTPClient returns a client that signs every request with OAuth 1.0a user context.
func NewHTTPClient(ctx context.Context, creds Credentials) *http.Client {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	return config.Client(ctx, token)
}

// Client talks to the media upload and tweet endpoints. The HTTP client is
// expected to sign requests already.
type Client struct {
	httpClient *http.Client
	mediaURL   string
	tweetsURL  string
	log        *slog.Logger
}

func NewClient(httpClient *http.Client, mediaURL string, tweetsURL string, log *slog.Logger) *Client {
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		mediaURL = DefaultMediaURL
	}

	tweetsURL = strings.TrimRight(strings.TrimSpace(tweetsURL), "/")
	if tweetsURL == "" {
		tweetsURL = DefaultTweetsURL
	}

	return &Client{
		httpClient: httpClient,
		mediaURL:   mediaURL,
		tweetsURL:  tweetsURL,
		log:        log,
	}
}

// do executes req and returns the status code and body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.ErrorContext(req.Context(), "Failed to close response body",
				"error", closeErr,
				"method", req.Method,
				"url", req.URL.Redacted())
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func statusError(op string, statusCode int, body []byte) error {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}

	return &StatusError{Op: op, StatusCode: statusCode, Body: strings.TrimSpace(string(body))}
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode <= 299
}
