package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ChunkSize is the APPEND segment size.
	ChunkSize = 4 * 1024 * 1024

	videoMediaType     = "video/mp4"
	videoMediaCategory = "tweet_video"
)

type mediaResponse struct {
	MediaID        json.Number     `json:"media_id"`
	MediaIDString  string          `json:"media_id_string"`
	ProcessingInfo *processingInfo `json:"processing_info,omitempty"`
}

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	ProgressPct    int    `json:"progress_percent"`
}

func (r mediaResponse) handle() string {
	if id := strings.TrimSpace(r.MediaIDString); id != "" {
		return id
	}

	return r.MediaID.String()
}

// UploadImage sends the file in a single multipart request.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy media file: %w", err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mediaURL, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	statusCode, respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !isSuccess(statusCode) {
		return "", statusError("upload image", statusCode, respBody)
	}

	mediaID, err := decodeMediaID(respBody)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	c.log.InfoContext(ctx, "Image is uploaded",
		"mediaID", mediaID,
		"path", path)

	return mediaID, nil
}

// UploadVideo runs the INIT, APPEND and FINALIZE phases of the chunked upload.
// The handle is usable in a tweet only after FINALIZE succeeds.
func (c *Client) UploadVideo(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat media file: %w", err)
	}

	totalBytes := info.Size()
	if totalBytes == 0 {
		return "", fmt.Errorf("media file is empty (path = %s)", path)
	}

	mediaID, err := c.uploadInit(ctx, totalBytes)
	if err != nil {
		return "", err
	}

	if err = c.uploadAppend(ctx, path, mediaID, totalBytes); err != nil {
		return "", err
	}

	if err = c.uploadFinalize(ctx, mediaID); err != nil {
		return "", err
	}

	return mediaID, nil
}

func (c *Client) uploadInit(ctx context.Context, totalBytes int64) (string, error) {
	form := url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(totalBytes, 10)},
		"media_type":     {videoMediaType},
		"media_category": {videoMediaCategory},
	}

	statusCode, body, err := c.postForm(ctx, form)
	if err != nil {
		return "", err
	}
	if !isSuccess(statusCode) {
		return "", statusError("upload INIT", statusCode, body)
	}

	mediaID, err := decodeMediaID(body)
	if err != nil {
		return "", fmt.Errorf("upload INIT: %w", err)
	}

	c.log.InfoContext(ctx, "Chunked upload is initiated",
		"mediaID", mediaID,
		"totalBytes", totalBytes)

	return mediaID, nil
}

func (c *Client) uploadAppend(ctx context.Context, path string, mediaID string, totalBytes int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	var sent int64

	for segment := 0; ; segment++ {
		n, readErr := io.ReadFull(f, buf)
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read segment %d: %w", segment, readErr)
		}

		if err = c.appendSegment(ctx, mediaID, segment, buf[:n]); err != nil {
			return err
		}
		sent += int64(n)

		if errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
	}

	if sent != totalBytes {
		return fmt.Errorf("media file changed during upload (declared = %d, sent = %d)", totalBytes, sent)
	}

	c.log.InfoContext(ctx, "Chunked upload segments are appended",
		"mediaID", mediaID,
		"bytesSent", sent)

	return nil
}

func (c *Client) appendSegment(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := [][2]string{
		{"command", "APPEND"},
		{"media_id", mediaID},
		{"segment_index", strconv.Itoa(segment)},
	}
	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("write field %s: %w", field[0], err)
		}
	}

	part, err := w.CreateFormFile("media", "blob")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err = part.Write(chunk); err != nil {
		return fmt.Errorf("write segment %d: %w", segment, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mediaURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	statusCode, respBody, err := c.do(req)
	if err != nil {
		return fmt.Errorf("upload APPEND (segment = %d): %w", segment, err)
	}
	if statusCode != http.StatusNoContent {
		return statusError(fmt.Sprintf("upload APPEND (segment = %d)", segment), statusCode, respBody)
	}

	return nil
}

func (c *Client) uploadFinalize(ctx context.Context, mediaID string) error {
	form := url.Values{
		"command":  {"FINALIZE"},
		"media_id": {mediaID},
	}

	statusCode, body, err := c.postForm(ctx, form)
	if err != nil {
		return err
	}
	if statusCode != http.StatusOK {
		return statusError("upload FINALIZE", statusCode, body)
	}

	var resp mediaResponse
	if err = json.Unmarshal(body, &resp); err == nil && resp.ProcessingInfo != nil {
		// Processing continues server side; callers rely on the post delay.
		c.log.InfoContext(ctx, "Chunked upload is finalized with pending processing",
			"mediaID", mediaID,
			"state", resp.ProcessingInfo.State,
			"checkAfterSecs", resp.ProcessingInfo.CheckAfterSecs)

		return nil
	}

	c.log.InfoContext(ctx, "Chunked upload is finalized",
		"mediaID", mediaID)

	return nil
}

func (c *Client) postForm(ctx context.Context, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mediaURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func decodeMediaID(body []byte) (string, error) {
	var resp mediaResponse

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return "", fmt.Errorf("decode media response: %w: %w", ErrProtocol, err)
	}

	mediaID := resp.handle()
	if mediaID == "" {
		return "", fmt.Errorf("media ID is missing: %w", ErrProtocol)
	}

	return mediaID, nil
}
