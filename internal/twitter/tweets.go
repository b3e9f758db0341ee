package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createTweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type deleteTweetResponse struct {
	Data struct {
		Deleted bool `json:"deleted"`
	} `json:"data"`
}

// CreateTweet publishes text with an optional media handle and returns the
// tweet ID.
func (c *Client) CreateTweet(ctx context.Context, text string, mediaID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("tweet text is empty")
	}

	payload := createTweetRequest{Text: text}
	if mediaID = strings.TrimSpace(mediaID); mediaID != "" {
		payload.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tweetsURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	statusCode, respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !isSuccess(statusCode) {
		return "", statusError("create tweet", statusCode, respBody)
	}

	var resp createTweetResponse
	if err = json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode tweet response: %w: %w", ErrProtocol, err)
	}

	tweetID := strings.TrimSpace(resp.Data.ID)
	if tweetID == "" {
		return "", fmt.Errorf("tweet ID is missing: %w", ErrProtocol)
	}

	c.log.InfoContext(ctx, "Tweet is created",
		"tweetID", tweetID,
		"mediaID", mediaID)

	return tweetID, nil
}

// DeleteTweet removes a tweet. The platform must confirm the deletion.
func (c *Client) DeleteTweet(ctx context.Context, tweetID string) error {
	tweetID = strings.TrimSpace(tweetID)
	if tweetID == "" {
		return errors.New("tweet ID is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.tweetsURL+"/"+url.PathEscape(tweetID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	statusCode, respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if !isSuccess(statusCode) {
		return statusError("delete tweet", statusCode, respBody)
	}

	var resp deleteTweetResponse
	if err = json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("decode delete response: %w: %w", ErrProtocol, err)
	}
	if !resp.Data.Deleted {
		return fmt.Errorf("tweet %s is not deleted: %w", tweetID, ErrProtocol)
	}

	c.log.InfoContext(ctx, "Tweet is deleted",
		"tweetID", tweetID)

	return nil
}
